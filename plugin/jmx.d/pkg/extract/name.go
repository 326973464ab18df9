// SPDX-License-Identifier: GPL-3.0-or-later

package extract

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/filter"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
)

// metricName resolves the name of a candidate: an explicit alias, then alias_match, then the default
// "<domain>.<type>.<attribute path>".
func (e *Extractor) metricName(req Request, path string, rule *filter.AttrRule) string {
	f := req.Match.Filter
	vars := nameVars(req, path)

	if rule != nil && rule.Alias != "" {
		return NormalizeName(expand(rule.Alias, vars, nil))
	}

	if f.AliasMatch != nil {
		for _, s := range []string{req.Bean.String() + "#" + path, req.Bean.Canonical() + "#" + path} {
			sm := f.AliasMatch.FindStringSubmatch(s)
			if sm == nil {
				continue
			}
			groups := make(map[string]string, len(sm))
			for i, name := range f.AliasMatch.SubexpNames() {
				if i == 0 {
					continue
				}
				groups[strconv.Itoa(i)] = sm[i]
				if name != "" {
					groups[name] = sm[i]
				}
			}
			return NormalizeName(expand(f.Alias, vars, groups))
		}
	}

	parts := []string{req.Bean.Domain}
	if t, ok := req.Bean.Get("type"); ok {
		parts = append(parts, objectname.Unquote(t))
	}
	parts = append(parts, path)

	return NormalizeName(strings.Join(parts, "."))
}

func nameVars(req Request, path string) map[string]string {
	vars := make(map[string]string, len(req.Bean.Props)+len(req.Match.Groups)+2)
	for _, p := range req.Bean.Props {
		vars[p.Key] = objectname.Unquote(p.Value)
	}
	for k, v := range req.Match.Groups {
		vars[k] = v
	}
	vars["domain"] = req.Bean.Domain
	vars["attribute"] = path
	return vars
}

// expand substitutes $name and ${name} placeholders. Lookups try groups first, then vars.
// Unknown placeholders are kept verbatim.
func expand(tmpl string, vars, groups map[string]string) string {
	if !strings.Contains(tmpl, "$") {
		return tmpl
	}

	var sb strings.Builder
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '$' || i+1 == len(tmpl) {
			sb.WriteByte(c)
			continue
		}

		var name string
		end := i + 1
		if tmpl[end] == '{' {
			closing := strings.IndexByte(tmpl[end:], '}')
			if closing < 0 {
				sb.WriteByte(c)
				continue
			}
			name = tmpl[end+1 : end+closing]
			end += closing + 1
		} else {
			for end < len(tmpl) && isNameByte(tmpl[end]) {
				end++
			}
			name = tmpl[i+1 : end]
		}

		v, ok := groups[name]
		if !ok {
			v, ok = vars[name]
		}
		if !ok || name == "" {
			sb.WriteString(tmpl[i:end])
		} else {
			sb.WriteString(v)
		}
		i = end - 1
	}
	return sb.String()
}

func isNameByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// NormalizeName converts camelCase to snake_case inside dot-separated segments, replaces characters
// outside [A-Za-z0-9_.] with '_', collapses repeated '_' and lowercases the result.
func NormalizeName(s string) string {
	var sb strings.Builder
	sb.Grow(len(s) + 8)

	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				sb.WriteByte('_')
			}
		}
		switch {
		case r < 128 && (isNameByte(byte(r)) || r == '.'):
			sb.WriteRune(unicode.ToLower(r))
		default:
			sb.WriteByte('_')
		}
	}

	out := sb.String()
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	out = strings.ReplaceAll(out, "._", ".")
	out = strings.ReplaceAll(out, "_.", ".")
	return strings.Trim(out, "._")
}
