// SPDX-License-Identifier: GPL-3.0-or-later

package jolokia

import (
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
)

const tabularType = "javax.management.openmbean.TabularData"

// decodeValue converts a Jolokia JSON value into the jmx value model. The java type, when known,
// selects the statistic and tabular shapes.
func decodeValue(v gjson.Result, javaType string) any {
	if kind, ok := jmx.StatisticKindOf(javaType); ok && v.IsObject() {
		return decodeStatistic(v, kind)
	}
	if javaType == tabularType && v.IsObject() {
		return decodeTabular(v)
	}
	return decodePlain(v)
}

func decodePlain(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False:
		return false
	case gjson.True:
		return true
	case gjson.String:
		return v.Str
	case gjson.Number:
		if !strings.ContainsAny(v.Raw, ".eE") {
			if i, err := strconv.ParseInt(v.Raw, 10, 64); err == nil {
				return i
			}
		}
		return v.Num
	}

	if v.IsArray() {
		var items []any
		for _, item := range v.Array() {
			items = append(items, decodePlain(item))
		}
		return items
	}

	c := jmx.Composite{}
	v.ForEach(func(key, value gjson.Result) bool {
		c[key.String()] = decodePlain(value)
		return true
	})
	return c
}

func decodeStatistic(v gjson.Result, kind jmx.StatisticKind) jmx.Statistic {
	st := jmx.Statistic{Kind: kind, Fields: make(map[string]float64)}

	v.ForEach(func(key, value gjson.Result) bool {
		k := key.String()
		for _, field := range jmx.StatisticFields[kind] {
			if strings.EqualFold(k, field) {
				if f, ok := jmx.ToFloat(decodePlain(value)); ok {
					st.Fields[field] = f
				}
				break
			}
		}
		return true
	})
	return st
}

// decodeTabular supports both Jolokia renderings of TabularData: {"indexNames":[...],"values":[...]}
// and maps nested one level per index column.
func decodeTabular(v gjson.Result) *jmx.Tabular {
	if idx := v.Get("indexNames"); idx.IsArray() && v.Get("values").IsArray() {
		t := &jmx.Tabular{}
		for _, n := range idx.Array() {
			t.IndexNames = append(t.IndexNames, n.String())
		}
		isIndex := make(map[string]bool, len(t.IndexNames))
		for _, n := range t.IndexNames {
			isIndex[n] = true
		}

		for _, rv := range v.Get("values").Array() {
			row := jmx.TabularRow{Values: jmx.Composite{}}
			index := make(map[string]string, len(t.IndexNames))
			rv.ForEach(func(key, value gjson.Result) bool {
				if isIndex[key.String()] {
					index[key.String()], _ = jmx.FormatScalar(decodePlain(value))
				} else {
					row.Values[key.String()] = decodePlain(value)
				}
				return true
			})
			for _, n := range t.IndexNames {
				row.Index = append(row.Index, index[n])
			}
			t.Rows = append(t.Rows, row)
		}
		return t
	}

	t := &jmx.Tabular{}
	depth := collectRows(v, nil, t)
	for i := 0; i < depth; i++ {
		if i == 0 {
			t.IndexNames = append(t.IndexNames, "key")
		} else {
			t.IndexNames = append(t.IndexNames, "key"+strconv.Itoa(i+1))
		}
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		return strings.Join(t.Rows[i].Index, "\x00") < strings.Join(t.Rows[j].Index, "\x00")
	})
	return t
}

// collectRows descends through objects whose members are all objects; the first object with a scalar
// member is a row. It returns the deepest index length.
func collectRows(v gjson.Result, index []string, t *jmx.Tabular) int {
	if len(index) > 0 && hasScalarMember(v) {
		c, _ := decodePlain(v).(jmx.Composite)
		t.Rows = append(t.Rows, jmx.TabularRow{Index: append([]string(nil), index...), Values: c})
		return len(index)
	}

	depth := 0
	v.ForEach(func(key, value gjson.Result) bool {
		if value.IsObject() {
			depth = max(depth, collectRows(value, append(index, key.String()), t))
		}
		return true
	})
	return depth
}

func hasScalarMember(v gjson.Result) bool {
	found := false
	v.ForEach(func(_, value gjson.Result) bool {
		if !value.IsObject() {
			found = true
			return false
		}
		return true
	})
	return found
}
