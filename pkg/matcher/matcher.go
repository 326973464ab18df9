// SPDX-License-Identifier: GPL-3.0-or-later

package matcher

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Matcher is an interface that wraps MatchString method.
type Matcher interface {
	// Match performs match against given []byte
	Match(b []byte) bool
	// MatchString performs match against given string
	MatchString(string) bool
}

var ErrEmptyPattern = errors.New("empty pattern")

// Parse parses a jmx.d pattern:
//
//	*         matches anything
//	/expr/    anchored regular expression, expr must match the whole value
//	other     literal, exact match
func Parse(pattern string) (Matcher, error) {
	switch {
	case pattern == "":
		return nil, ErrEmptyPattern
	case pattern == "*":
		return TRUE(), nil
	case IsRegExpPattern(pattern):
		return NewAnchoredRegExpMatcher(pattern[1 : len(pattern)-1])
	default:
		return NewStringMatcher(pattern, true, true)
	}
}

// Must is a helper that wraps a call to a function returning (Matcher, error) and panics if the error is non-nil.
func Must(m Matcher, err error) Matcher {
	if err != nil {
		panic(err)
	}
	return m
}

// IsRegExpPattern reports whether the pattern uses the /expr/ form.
func IsRegExpPattern(pattern string) bool {
	return len(pattern) >= 2 && strings.HasPrefix(pattern, "/") && strings.HasSuffix(pattern, "/")
}

// NewAnchoredRegExpMatcher compiles expr so that it must match the whole input.
func NewAnchoredRegExpMatcher(expr string) (Matcher, error) {
	expr = strings.TrimSuffix(strings.TrimPrefix(expr, "^"), "$")
	if expr == "" {
		return NewStringMatcher("", true, true)
	}
	m, err := NewRegExpMatcher("^(?:" + expr + ")$")
	if err != nil {
		return nil, fmt.Errorf("invalid regular expression '%s': %v", expr, err)
	}
	return m, nil
}

// NewRegExpMatcher creates a matcher from a regular expression. Expressions that are plain literals
// (optionally anchored) are turned into cheaper string matchers.
func NewRegExpMatcher(expr string) (Matcher, error) {
	switch expr {
	case "", "^", "$":
		return TRUE(), nil
	case "^$", "$^":
		return NewStringMatcher("", true, true)
	}

	if lit, startWith, endWith, ok := literalRegExp(expr); ok {
		return NewStringMatcher(lit, startWith, endWith)
	}

	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	return regexpMatcher{re}, nil
}

// literalRegExp reports whether expr is a literal with optional ^ and $ anchors.
func literalRegExp(expr string) (lit string, startWith, endWith, ok bool) {
	if strings.HasPrefix(expr, "^(?:") && strings.HasSuffix(expr, ")$") {
		inner := expr[len("^(?:") : len(expr)-len(")$")]
		if strings.ContainsAny(inner, "|") {
			return "", false, false, false
		}
		expr = "^" + inner + "$"
	}

	chars := []rune(expr)
	start, end := 0, len(chars)-1
	if chars[start] == '^' {
		startWith = true
		start++
	}
	if end >= start && chars[end] == '$' {
		endWith = true
		end--
	}

	var sb strings.Builder
	for i := start; i <= end; i++ {
		ch := chars[i]
		switch {
		case ch == '\\':
			if i == end || !isRegExpMeta(chars[i+1]) {
				return "", false, false, false
			}
			sb.WriteRune(chars[i+1])
			i++
		case isRegExpMeta(ch):
			return "", false, false, false
		default:
			sb.WriteRune(ch)
		}
	}
	return sb.String(), startWith, endWith, true
}

// isRegExpMeta reports whether byte b needs to be escaped by QuoteMeta.
func isRegExpMeta(b rune) bool {
	switch b {
	case '\\', '.', '+', '*', '?', '(', ')', '|', '[', ']', '{', '}', '^', '$':
		return true
	default:
		return false
	}
}

type regexpMatcher struct{ re *regexp.Regexp }

func (m regexpMatcher) Match(b []byte) bool { return m.re.Match(b) }
func (m regexpMatcher) MatchString(s string) bool { return m.re.MatchString(s) }
func (m regexpMatcher) Regexp() *regexp.Regexp { return m.re }
