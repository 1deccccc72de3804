package eventtype

import (
	"regexp"
	"strings"
)

type matcher interface {
	match(rawType string) bool
}

// nameMatcher matches if the type equals one of the names, ignoring case.
type nameMatcher map[string]struct{}

func newNameMatcher(names ...string) nameMatcher {
	result := make(nameMatcher, len(names))

	for _, n := range names {
		result[strings.ToLower(n)] = struct{}{}
	}

	return result
}

func (m nameMatcher) match(rawType string) bool {
	_, exist := m[strings.ToLower(strings.TrimSpace(rawType))]
	return exist
}

type patternMatcher struct {
	re *regexp.Regexp
}

func newPatternMatcher(pattern string) *patternMatcher {
	return &patternMatcher{re: regexp.MustCompile(pattern)}
}

func (m *patternMatcher) match(rawType string) bool {
	return m.re.MatchString(strings.ToLower(strings.TrimSpace(rawType)))
}
