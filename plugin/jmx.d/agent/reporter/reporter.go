// SPDX-License-Identifier: GPL-3.0-or-later

// Package reporter delivers samples and service checks to their destination.
package reporter

import (
	"errors"
	"fmt"
	"os"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/metric"
)

// Reporter receives the output of one iteration. Flush is called once after the last emission.
type Reporter interface {
	Emit(s metric.Sample)
	EmitServiceCheck(sc metric.ServiceCheck)
	Flush() error
}

const (
	KindConsole    = "console"
	KindNetdata    = "netdata"
	KindPrometheus = "prometheus"
)

// New creates a reporter by kind. Console and netdata reporters write to stdout.
func New(kind string, updateEvery int) (Reporter, error) {
	switch kind {
	case KindConsole:
		return NewConsole(os.Stdout), nil
	case KindNetdata:
		return NewNetdata(os.Stdout, updateEvery), nil
	case KindPrometheus:
		return NewPrometheus(), nil
	default:
		return nil, fmt.Errorf("unknown reporter '%s'", kind)
	}
}

// Multi fans every call out to all reporters.
type Multi []Reporter

func (m Multi) Emit(s metric.Sample) {
	for _, r := range m {
		r.Emit(s)
	}
}

func (m Multi) EmitServiceCheck(sc metric.ServiceCheck) {
	for _, r := range m {
		r.EmitServiceCheck(sc)
	}
}

func (m Multi) Flush() error {
	var errs []error
	for _, r := range m {
		if err := r.Flush(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

