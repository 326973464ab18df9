// SPDX-License-Identifier: GPL-3.0-or-later

// Package metric holds the finalized samples and service checks handed to reporters.
package metric

import (
	"sort"
	"strings"
	"time"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/filter"
)

// Sample is one finalized metric value.
type Sample struct {
	Name  string
	Value float64
	Type  filter.MetricType
	Tags  []string
	Time  time.Time
}

// ID identifies the series of a sample: its name and tag set.
func (s Sample) ID() string {
	return s.Name + "{" + strings.Join(s.Tags, ",") + "}"
}

type CheckStatus int

const (
	StatusOK CheckStatus = iota
	StatusWarning
	StatusCritical
	StatusUnknown
)

func (s CheckStatus) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusWarning:
		return "WARNING"
	case StatusCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

type ServiceCheck struct {
	Name    string
	Status  CheckStatus
	Message string
	Tags    []string
	Time    time.Time
}

// MergeTags concatenates tag lists into one sorted list without duplicates.
func MergeTags(lists ...[]string) []string {
	var n int
	for _, l := range lists {
		n += len(l)
	}
	tags := make([]string, 0, n)
	for _, l := range lists {
		tags = append(tags, l...)
	}
	sort.Strings(tags)

	out := tags[:0]
	for i, t := range tags {
		if i > 0 && t == tags[i-1] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// TagValue returns the value of the first "key:value" tag with the given key.
func TagValue(tags []string, key string) (string, bool) {
	for _, t := range tags {
		if k, v, ok := strings.Cut(t, ":"); ok && k == key {
			return v, true
		}
	}
	return "", false
}
