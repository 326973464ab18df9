// SPDX-License-Identifier: GPL-3.0-or-later

// Package objectname implements JMX object names: a domain plus an ordered list of key properties.
package objectname

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrInvalid = errors.New("invalid object name")

// Property is a single key=value pair of an object name.
type Property struct {
	Key   string
	Value string
}

// ObjectName identifies one managed bean. Properties keep the order they were declared in;
// keys are case-sensitive.
type ObjectName struct {
	Domain string
	Props  []Property
	// PropertyPattern is set for query patterns ending with ",*" (or "domain:*").
	PropertyPattern bool
}

// New builds an object name from a domain and alternating key, value pairs.
func New(domain string, kv ...string) ObjectName {
	n := ObjectName{Domain: domain}
	for i := 0; i+1 < len(kv); i += 2 {
		n.Props = append(n.Props, Property{Key: kv[i], Value: kv[i+1]})
	}
	return n
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ObjectName {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Parse parses "domain:key1=value1,key2=value2". Values may be quoted ("a,b").
func Parse(s string) (ObjectName, error) {
	idx := strings.IndexByte(s, ':')
	if idx <= 0 {
		return ObjectName{}, fmt.Errorf("%w '%s': missing domain", ErrInvalid, s)
	}

	n := ObjectName{Domain: s[:idx]}
	rest := s[idx+1:]
	if rest == "" {
		return ObjectName{}, fmt.Errorf("%w '%s': no key properties", ErrInvalid, s)
	}

	seen := make(map[string]bool)
	for len(rest) > 0 {
		if rest == "*" {
			n.PropertyPattern = true
			break
		}

		eq := strings.IndexByte(rest, '=')
		if eq <= 0 {
			return ObjectName{}, fmt.Errorf("%w '%s': bad key property '%s'", ErrInvalid, s, rest)
		}
		key := rest[:eq]
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := closingQuote(rest)
			if end < 0 {
				return ObjectName{}, fmt.Errorf("%w '%s': unterminated quoted value", ErrInvalid, s)
			}
			value = rest[:end+1]
			rest = rest[end+1:]
		} else if comma := strings.IndexByte(rest, ','); comma >= 0 {
			value = rest[:comma]
			rest = rest[comma:]
		} else {
			value = rest
			rest = ""
		}

		if seen[key] {
			return ObjectName{}, fmt.Errorf("%w '%s': duplicate key '%s'", ErrInvalid, s, key)
		}
		seen[key] = true
		n.Props = append(n.Props, Property{Key: key, Value: value})

		if rest == "" {
			break
		}
		if rest[0] != ',' {
			return ObjectName{}, fmt.Errorf("%w '%s': expected ',' after '%s=%s'", ErrInvalid, s, key, value)
		}
		rest = rest[1:]
		if rest == "" {
			return ObjectName{}, fmt.Errorf("%w '%s': trailing ','", ErrInvalid, s)
		}
	}

	return n, nil
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// Get returns the value of key.
func (n ObjectName) Get(key string) (string, bool) {
	for _, p := range n.Props {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// Keys returns property keys in declaration order.
func (n ObjectName) Keys() []string {
	keys := make([]string, 0, len(n.Props))
	for _, p := range n.Props {
		keys = append(keys, p.Key)
	}
	return keys
}

// Map returns a copy of the key properties as a map.
func (n ObjectName) Map() map[string]string {
	m := make(map[string]string, len(n.Props))
	for _, p := range n.Props {
		m[p.Key] = p.Value
	}
	return m
}

// IsPattern reports whether the name can match more than one bean.
func (n ObjectName) IsPattern() bool {
	if n.PropertyPattern || strings.ContainsAny(n.Domain, "*?") {
		return true
	}
	for _, p := range n.Props {
		if p.Value == "*" {
			return true
		}
	}
	return false
}

// String renders the name keeping the declaration order of the properties.
func (n ObjectName) String() string {
	return n.render(n.Props)
}

// Canonical renders the name with properties sorted by key, the form registries use for identity.
func (n ObjectName) Canonical() string {
	props := make([]Property, len(n.Props))
	copy(props, n.Props)
	sort.Slice(props, func(i, j int) bool { return props[i].Key < props[j].Key })
	return n.render(props)
}

func (n ObjectName) render(props []Property) string {
	var sb strings.Builder
	sb.WriteString(n.Domain)
	sb.WriteByte(':')
	for i, p := range props {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(p.Key)
		sb.WriteByte('=')
		sb.WriteString(p.Value)
	}
	if n.PropertyPattern {
		if len(props) > 0 {
			sb.WriteByte(',')
		}
		sb.WriteByte('*')
	}
	return sb.String()
}

// Equal reports whether both names identify the same bean regardless of property order.
func (n ObjectName) Equal(other ObjectName) bool {
	return n.Canonical() == other.Canonical()
}

// Quote renders v as a quoted property value, escaping '"', '*', '?', '\\' and newlines.
func Quote(v string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(v); i++ {
		switch c := v[i]; c {
		case '"', '*', '?', '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case '\n':
			sb.WriteString(`\n`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}

// NeedsQuote reports whether v can only appear quoted in an object name.
func NeedsQuote(v string) bool {
	return strings.ContainsAny(v, ",=:\"*?\n")
}

// Unquote strips the quotes of a quoted property value.
func Unquote(v string) string {
	if len(v) < 2 || v[0] != '"' || v[len(v)-1] != '"' {
		return v
	}
	v = v[1 : len(v)-1]
	if !strings.Contains(v, `\`) {
		return v
	}
	var sb strings.Builder
	for i := 0; i < len(v); i++ {
		if v[i] == '\\' && i+1 < len(v) {
			i++
			switch v[i] {
			case 'n':
				sb.WriteByte('\n')
			default:
				sb.WriteByte(v[i])
			}
			continue
		}
		sb.WriteByte(v[i])
	}
	return sb.String()
}
