// SPDX-License-Identifier: GPL-3.0-or-later

// Package filter compiles include/exclude bean filters and decides which bean attributes are collected.
// It also derives the registry query scopes shared by the include filters.
package filter

import (
	"fmt"
	"strings"
)

type Kind int

const (
	Include Kind = iota
	Exclude
)

func (k Kind) String() string {
	if k == Exclude {
		return "exclude"
	}
	return "include"
}

type MetricType string

const (
	Gauge     MetricType = "gauge"
	Counter   MetricType = "counter"
	Rate      MetricType = "rate"
	Histogram MetricType = "histogram"
)

// ParseMetricType parses a metric type name. An empty name yields an empty type (use the default).
func ParseMetricType(s string) (MetricType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return "", nil
	case "gauge":
		return Gauge, nil
	case "counter", "monotonic_count":
		return Counter, nil
	case "rate":
		return Rate, nil
	case "histogram":
		return Histogram, nil
	default:
		return "", fmt.Errorf("unknown metric type '%s'", s)
	}
}

// Baselined reports whether samples of this type are computed against a previous observation.
func (t MetricType) Baselined() bool { return t == Counter || t == Rate }

type Decision int

const (
	Undecided Decision = iota
	Included
	Excluded
)

func (d Decision) String() string {
	switch d {
	case Included:
		return "included"
	case Excluded:
		return "excluded"
	default:
		return "undecided"
	}
}
