// SPDX-License-Identifier: GPL-3.0-or-later

package objectname

// Matches reports whether name is selected by the query pattern p.
// Domain supports '*' and '?' wildcards. Every property of p must be present in name with an
// equal value ('*' as a value matches any value); without the property-pattern flag name must not
// have extra properties.
func (p ObjectName) Matches(name ObjectName) bool {
	if !globMatch(p.Domain, name.Domain) {
		return false
	}

	for _, pp := range p.Props {
		v, ok := name.Get(pp.Key)
		if !ok {
			return false
		}
		if pp.Value != "*" && pp.Value != v {
			return false
		}
	}

	return p.PropertyPattern || len(p.Props) == len(name.Props)
}

// globMatch matches s against a pattern where '*' matches any run of characters and '?' one character.
func globMatch(pattern, s string) bool {
	px, sx := 0, 0
	nextPx, nextSx := -1, -1
	for px < len(pattern) || sx < len(s) {
		if px < len(pattern) {
			switch c := pattern[px]; c {
			case '*':
				nextPx, nextSx = px, sx+1
				px++
				continue
			case '?':
				if sx < len(s) {
					px++
					sx++
					continue
				}
			default:
				if sx < len(s) && s[sx] == c {
					px++
					sx++
					continue
				}
			}
		}
		if nextSx > 0 && nextSx <= len(s) {
			px, sx = nextPx, nextSx
			continue
		}
		return false
	}
	return true
}
