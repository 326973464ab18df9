// SPDX-License-Identifier: GPL-3.0-or-later

package jmx

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Composite is a CompositeData value: named fields, each a scalar or a nested value.
type Composite map[string]any

// Tabular is a TabularData value.
type Tabular struct {
	IndexNames []string
	Rows       []TabularRow
}

// TabularRow is one row; Index holds the values of the index columns in IndexNames order.
type TabularRow struct {
	Index  []string
	Values Composite
}

type StatisticKind int

const (
	CountStatistic StatisticKind = iota + 1
	TimeStatistic
	RangeStatistic
	BoundedRangeStatistic
)

func (k StatisticKind) String() string {
	switch k {
	case CountStatistic:
		return "count"
	case TimeStatistic:
		return "time"
	case RangeStatistic:
		return "range"
	case BoundedRangeStatistic:
		return "bounded_range"
	default:
		return "unknown"
	}
}

// Statistic is a JSR-77 statistic. Fields uses the JSR-77 accessor names without the "get" prefix
// (Count, MinTime, MaxTime, TotalTime, Current, HighWaterMark, LowWaterMark, UpperBound, LowerBound).
type Statistic struct {
	Kind   StatisticKind
	Fields map[string]float64
}

// StatisticFields lists the fields each statistic kind decomposes into, in emission order.
var StatisticFields = map[StatisticKind][]string{
	CountStatistic:        {"Count"},
	TimeStatistic:         {"Count", "MinTime", "MaxTime", "TotalTime"},
	RangeStatistic:        {"Current", "HighWaterMark", "LowWaterMark"},
	BoundedRangeStatistic: {"Current", "HighWaterMark", "LowWaterMark", "UpperBound", "LowerBound"},
}

// StatisticKindOf maps a Java type name to a statistic kind.
func StatisticKindOf(javaType string) (StatisticKind, bool) {
	switch {
	case strings.HasSuffix(javaType, "BoundedRangeStatistic"):
		return BoundedRangeStatistic, true
	case strings.HasSuffix(javaType, "RangeStatistic"):
		return RangeStatistic, true
	case strings.HasSuffix(javaType, "TimeStatistic"):
		return TimeStatistic, true
	case strings.HasSuffix(javaType, "CountStatistic"):
		return CountStatistic, true
	default:
		return 0, false
	}
}

// ToFloat converts a scalar value to float64. Booleans become 0/1; strings must be numeric.
func ToFloat(v any) (float64, bool) {
	switch value := v.(type) {
	case float64:
		return value, !math.IsNaN(value)
	case float32:
		return float64(value), !math.IsNaN(float64(value))
	case int:
		return float64(value), true
	case int8:
		return float64(value), true
	case int16:
		return float64(value), true
	case int32:
		return float64(value), true
	case int64:
		return float64(value), true
	case uint:
		return float64(value), true
	case uint8:
		return float64(value), true
	case uint16:
		return float64(value), true
	case uint32:
		return float64(value), true
	case uint64:
		return float64(value), true
	case bool:
		if value {
			return 1, true
		}
		return 0, true
	case json.Number:
		f, err := value.Float64()
		return f, err == nil
	case string:
		s := strings.TrimSpace(value)
		switch strings.ToLower(s) {
		case "true":
			return 1, true
		case "false":
			return 0, true
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil && !math.IsNaN(f)
	default:
		return 0, false
	}
}

// FormatScalar renders a scalar for use as a tag value. Numbers use plain decimal notation.
func FormatScalar(v any) (string, bool) {
	switch value := v.(type) {
	case nil:
		return "", false
	case string:
		return value, true
	case bool:
		return strconv.FormatBool(value), true
	case json.Number:
		if f, err := value.Float64(); err == nil {
			return FormatFloat(f), true
		}
		return value.String(), true
	case int, int8, int16, int32, int64:
		return strconv.FormatInt(toInt(value), 10), true
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(toUint(value), 10), true
	case float32:
		return FormatFloat(float64(value)), true
	case float64:
		return FormatFloat(value), true
	default:
		return "", false
	}
}

// FormatFloat formats f without exponent; integral values have no fractional part.
func FormatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e18 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func toInt(v any) int64 {
	switch value := v.(type) {
	case int:
		return int64(value)
	case int8:
		return int64(value)
	case int16:
		return int64(value)
	case int32:
		return int64(value)
	case int64:
		return value
	}
	return 0
}

func toUint(v any) uint64 {
	switch value := v.(type) {
	case uint:
		return uint64(value)
	case uint8:
		return uint64(value)
	case uint16:
		return uint64(value)
	case uint32:
		return uint64(value)
	case uint64:
		return value
	}
	return 0
}
