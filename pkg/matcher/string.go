// SPDX-License-Identifier: GPL-3.0-or-later

package matcher

import (
	"bytes"
	"strings"
)

type (
	stringFullMatcher    string
	stringPrefixMatcher  string
	stringSuffixMatcher  string
	stringPartialMatcher string
)

// NewStringMatcher creates a new string matcher.
// startWith and endWith anchor the match to the beginning and the end of the input.
func NewStringMatcher(s string, startWith, endWith bool) (Matcher, error) {
	switch {
	case startWith && endWith:
		return stringFullMatcher(s), nil
	case startWith:
		if s == "" {
			return TRUE(), nil
		}
		return stringPrefixMatcher(s), nil
	case endWith:
		if s == "" {
			return TRUE(), nil
		}
		return stringSuffixMatcher(s), nil
	default:
		if s == "" {
			return TRUE(), nil
		}
		return stringPartialMatcher(s), nil
	}
}

func (m stringFullMatcher) Match(b []byte) bool       { return string(m) == string(b) }
func (m stringFullMatcher) MatchString(s string) bool { return string(m) == s }

func (m stringPrefixMatcher) Match(b []byte) bool { return bytes.HasPrefix(b, []byte(m)) }
func (m stringPrefixMatcher) MatchString(s string) bool {
	return strings.HasPrefix(s, string(m))
}

func (m stringSuffixMatcher) Match(b []byte) bool { return bytes.HasSuffix(b, []byte(m)) }
func (m stringSuffixMatcher) MatchString(s string) bool {
	return strings.HasSuffix(s, string(m))
}

func (m stringPartialMatcher) Match(b []byte) bool { return bytes.Contains(b, []byte(m)) }
func (m stringPartialMatcher) MatchString(s string) bool {
	return strings.Contains(s, string(m))
}
