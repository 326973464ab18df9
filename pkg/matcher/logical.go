// SPDX-License-Identifier: GPL-3.0-or-later

package matcher

type (
	trueMatcher  struct{}
	falseMatcher struct{}
	anyMatcher   []Matcher
)

// TRUE returns a matcher which always returns true
func TRUE() Matcher { return trueMatcher{} }

// FALSE returns a matcher which always returns false
func FALSE() Matcher { return falseMatcher{} }

// Or returns a matcher that matches when any of ms matches. FALSE members are dropped, a TRUE member
// makes the result TRUE, and a single remaining member is returned as is.
func Or(ms ...Matcher) Matcher {
	var out anyMatcher
	for _, m := range ms {
		switch v := m.(type) {
		case trueMatcher:
			return TRUE()
		case falseMatcher:
		case anyMatcher:
			out = append(out, v...)
		default:
			out = append(out, m)
		}
	}

	switch len(out) {
	case 0:
		return FALSE()
	case 1:
		return out[0]
	default:
		return out
	}
}

func (trueMatcher) Match(_ []byte) bool       { return true }
func (trueMatcher) MatchString(_ string) bool { return true }

func (falseMatcher) Match(_ []byte) bool       { return false }
func (falseMatcher) MatchString(_ string) bool { return false }

func (m anyMatcher) Match(b []byte) bool {
	for _, mm := range m {
		if mm.Match(b) {
			return true
		}
	}
	return false
}

func (m anyMatcher) MatchString(s string) bool {
	for _, mm := range m {
		if mm.MatchString(s) {
			return true
		}
	}
	return false
}
