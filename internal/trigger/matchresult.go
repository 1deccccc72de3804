package trigger

import "fmt"

// MatchResult represents the result of matching a trigger against a
// notification.
type MatchResult uint8

const (
	MatchResultUndefined MatchResult = iota
	EventTypeMismatch
	FilterMismatch
	Match
)

var matchResultString = [...]string{
	MatchResultUndefined: "undefined",
	EventTypeMismatch:    "event type mismatch",
	FilterMismatch:       "filter query mismatch",
	Match:                "trigger matches",
}

func (m MatchResult) String() string {
	// it can not be <0 because it's type is uint8
	if int(m) > len(matchResultString)-1 {
		return fmt.Sprintf("unsupported MatchResult value: %d", m)
	}

	return matchResultString[m]
}
