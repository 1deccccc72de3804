package notification

import (
	"sort"
	"strconv"

	"github.com/simplesurance/regtrigger/internal/env"
)

// ParameterType defines how a parameter value is rendered into the build
// environment.
type ParameterType uint8

const (
	ParameterTypeString ParameterType = iota
	ParameterTypeNumber
	ParameterTypeBool
)

var parameterTypeStr = [...]string{
	ParameterTypeString: "string",
	ParameterTypeNumber: "number",
	ParameterTypeBool:   "boolean",
}

func (t ParameterType) String() string {
	if int(t) > len(parameterTypeStr)-1 {
		return "unknown"
	}

	return parameterTypeStr[t]
}

// Parameter is a run parameter derived from a push notification.
type Parameter interface {
	Name() string
	Value() string
	Type() ParameterType
	// Apply adds the parameter to the environment.
	Apply(env.Vars) error
}

type StringParameter struct {
	name  string
	value string
}

func NewStringParameter(name, value string) *StringParameter {
	return &StringParameter{name: name, value: value}
}

func (p *StringParameter) Name() string        { return p.name }
func (p *StringParameter) Value() string       { return p.value }
func (p *StringParameter) Type() ParameterType { return ParameterTypeString }

func (p *StringParameter) Apply(vars env.Vars) error {
	return vars.Override(p.name, p.value)
}

// NumberParameter is rendered in its shortest decimal representation,
// integral values have no fractional part.
type NumberParameter struct {
	name  string
	value float64
}

func NewNumberParameter(name string, value float64) *NumberParameter {
	return &NumberParameter{name: name, value: value}
}

func (p *NumberParameter) Name() string        { return p.name }
func (p *NumberParameter) Type() ParameterType { return ParameterTypeNumber }

func (p *NumberParameter) Value() string {
	return strconv.FormatFloat(p.value, 'f', -1, 64)
}

func (p *NumberParameter) Apply(vars env.Vars) error {
	return vars.Override(p.name, p.Value())
}

type BoolParameter struct {
	name  string
	value bool
}

func NewBoolParameter(name string, value bool) *BoolParameter {
	return &BoolParameter{name: name, value: value}
}

func (p *BoolParameter) Name() string        { return p.name }
func (p *BoolParameter) Type() ParameterType { return ParameterTypeBool }

func (p *BoolParameter) Value() string {
	return strconv.FormatBool(p.value)
}

func (p *BoolParameter) Apply(vars env.Vars) error {
	return vars.Override(p.name, p.Value())
}

// parameterSet returns params sorted by name, for duplicate names the last
// element wins.
func parameterSet(params []Parameter) []Parameter {
	byName := make(map[string]Parameter, len(params))

	for _, p := range params {
		byName[p.Name()] = p
	}

	result := make([]Parameter, 0, len(byName))
	for _, p := range byName {
		result = append(result, p)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})

	return result
}
