package asset

import (
	"regexp"
	"strings"

	"github.com/cockroachdb/errors"
)

// MatcherKind orders matchers by precedence: exact before glob before regex.
type MatcherKind int

const (
	MatcherExact MatcherKind = iota
	MatcherGlob
	MatcherRegex
)

func (k MatcherKind) String() string {
	switch k {
	case MatcherExact:
		return "exact"
	case MatcherGlob:
		return "glob"
	default:
		return "regex"
	}
}

// Matcher decides whether a locator belongs to a registered pattern.
type Matcher interface {
	Kind() MatcherKind
	Pattern() string
	Match(locator string) bool
}

// ExactMatcher matches one literal locator.
type ExactMatcher struct {
	pattern string
}

// GlobMatcher matches shell-style patterns: "*" within a path segment, "**" across segments, "?" one character.
type GlobMatcher struct {
	pattern string
	re      *regexp.Regexp
}

// RegexMatcher matches a regular expression against the whole locator.
type RegexMatcher struct {
	pattern string
	re      *regexp.Regexp
}

var (
	_ Matcher = ExactMatcher{}
	_ Matcher = GlobMatcher{}
	_ Matcher = RegexMatcher{}
)

// NewExactMatcher creates a literal matcher.
func NewExactMatcher(pattern string) ExactMatcher {
	return ExactMatcher{pattern: pattern}
}

// NewGlobMatcher compiles a glob pattern.
//
// Parameters:
//   - pattern: the glob
//
// Returns:
//   - GlobMatcher: the matcher
//   - error: error if the converted expression does not compile
func NewGlobMatcher(pattern string) (GlobMatcher, error) {
	re, err := regexp.Compile(GlobToRegexp(pattern))
	if err != nil {
		return GlobMatcher{}, errors.Wrapf(err, "glob %q", pattern)
	}
	return GlobMatcher{pattern: pattern, re: re}, nil
}

// NewRegexMatcher compiles pattern as an anchored regular expression.
//
// Parameters:
//   - pattern: the expression
//
// Returns:
//   - RegexMatcher: the matcher
//   - error: error if the expression does not compile
func NewRegexMatcher(pattern string) (RegexMatcher, error) {
	re, err := regexp.Compile("^(?:" + pattern + ")$")
	if err != nil {
		return RegexMatcher{}, errors.Wrapf(err, "regex %q", pattern)
	}
	return RegexMatcher{pattern: pattern, re: re}, nil
}

func (m ExactMatcher) Kind() MatcherKind         { return MatcherExact }
func (m ExactMatcher) Pattern() string           { return m.pattern }
func (m ExactMatcher) Match(locator string) bool { return locator == m.pattern }

func (m GlobMatcher) Kind() MatcherKind         { return MatcherGlob }
func (m GlobMatcher) Pattern() string           { return m.pattern }
func (m GlobMatcher) Match(locator string) bool { return m.re.MatchString(locator) }

func (m RegexMatcher) Kind() MatcherKind         { return MatcherRegex }
func (m RegexMatcher) Pattern() string           { return m.pattern }
func (m RegexMatcher) Match(locator string) bool { return m.re.MatchString(locator) }

// HasGlobMeta reports whether pattern contains glob wildcards.
func HasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?")
}

// GlobToRegexp converts a glob into an anchored regular expression.
//
// Parameters:
//   - pattern: the glob
//
// Returns:
//   - string: the expression
func GlobToRegexp(pattern string) string {
	var b strings.Builder
	b.WriteByte('^')
	for i := 0; i < len(pattern); i++ {
		switch c := pattern[i]; c {
		case '*':
			if i+1 < len(pattern) && pattern[i+1] == '*' {
				b.WriteString(".*")
				i++
			} else {
				b.WriteString("[^/]*")
			}
		case '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteByte('$')
	return b.String()
}
