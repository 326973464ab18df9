// SPDX-License-Identifier: GPL-3.0-or-later

package jmxtest

import (
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
)

// InferType returns the Java type a real registry would report for v.
func InferType(v any) string {
	switch value := v.(type) {
	case jmx.Composite:
		return "javax.management.openmbean.CompositeData"
	case *jmx.Tabular:
		return "javax.management.openmbean.TabularData"
	case jmx.Statistic:
		switch value.Kind {
		case jmx.CountStatistic:
			return "javax.management.j2ee.statistics.CountStatistic"
		case jmx.TimeStatistic:
			return "javax.management.j2ee.statistics.TimeStatistic"
		case jmx.RangeStatistic:
			return "javax.management.j2ee.statistics.RangeStatistic"
		default:
			return "javax.management.j2ee.statistics.BoundedRangeStatistic"
		}
	case int, int64:
		return "long"
	case int32:
		return "int"
	case float32, float64:
		return "double"
	case bool:
		return "boolean"
	case string:
		return "java.lang.String"
	default:
		return "java.lang.Object"
	}
}
