// Package env provides the key/value environment that is handed to
// triggered builds.
package env

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var nameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Vars is a build environment. Keys and values are plain strings.
type Vars map[string]string

// ValidateName returns an error if name can not be used as environment
// variable name.
func ValidateName(name string) error {
	if !nameRe.MatchString(name) {
		return fmt.Errorf("invalid environment variable name: %q", name)
	}

	return nil
}

// Override sets key to val, an existing value is replaced.
func (v Vars) Override(key, val string) error {
	if err := ValidateName(key); err != nil {
		return err
	}

	v[key] = val

	return nil
}

// Clone returns a copy of v. Cloning a nil Vars returns an empty Vars.
func (v Vars) Clone() Vars {
	result := make(Vars, len(v))

	for k, val := range v {
		result[k] = val
	}

	return result
}

// Merge copies all entries of other into v, existing keys are overwritten.
func (v Vars) Merge(other Vars) {
	for k, val := range other {
		v[k] = val
	}
}

// Equal returns true if v and other contain the same entries.
func (v Vars) Equal(other Vars) bool {
	if len(v) != len(other) {
		return false
	}

	for k, val := range v {
		otherVal, exist := other[k]
		if !exist || otherVal != val {
			return false
		}
	}

	return true
}

// Keys returns the keys of v in lexicographic order.
func (v Vars) Keys() []string {
	result := make([]string, 0, len(v))

	for k := range v {
		result = append(result, k)
	}

	sort.Strings(result)

	return result
}

// String returns the entries as KEY=VALUE lines, sorted by key.
func (v Vars) String() string {
	var result strings.Builder

	for _, k := range v.Keys() {
		result.WriteString(k)
		result.WriteRune('=')
		result.WriteString(v[k])
		result.WriteRune('\n')
	}

	return result.String()
}
