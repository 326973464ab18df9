// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"time"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/instance"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/orchestrator"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/status"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/metric"
)

const serviceCheckCanConnect = "can_connect"

func (a *Agent) runIteration(ctx context.Context) {
	start := time.Now()
	if resume := a.skips.Start(start); resume.Skipped > 0 {
		a.Infof("collection resumed after %s (skipped %d times)", resume.LastRun, resume.Skipped)
	}
	defer func() { a.skips.Stop(time.Now()) }()

	ms := a.snapshot()
	collectors := make([]orchestrator.Collector, 0, len(ms))
	for _, m := range ms {
		collectors = append(collectors, m.inst)
	}

	statuses := a.orch.RunIteration(ctx, collectors, a.cfg.Timeout)
	now := time.Now()

	a.mu.Lock()
	a.iteration++
	iteration := a.iteration
	a.mu.Unlock()

	report := status.Report{
		Timestamp: now,
		Iteration: iteration,
		Duration:  now.Sub(start).Round(time.Millisecond).String(),
	}

	var emitted int
	for _, m := range ms {
		st, ok := statuses[m.inst.Name()]
		if !ok {
			continue
		}
		if st.Tag == orchestrator.StatusSuccess && st.Result != nil {
			for _, s := range st.Result.Metrics {
				a.cfg.Reporter.Emit(s)
			}
			emitted += len(st.Result.Metrics)
		}
		a.cfg.Reporter.EmitServiceCheck(serviceCheck(m.inst, st, now))
		report.Instances = append(report.Instances, instanceStatus(m, st))
	}

	if err := a.cfg.Reporter.Flush(); err != nil {
		a.Errorf("reporter: %v", err)
	}
	if a.status != nil {
		if err := a.status.Write(report); err != nil {
			a.Warningf("status file: %v", err)
		}
	}

	a.Debugf("iteration %d: %d instances, %d metrics in %s", iteration, len(ms), emitted, report.Duration)
}

func serviceCheck(inst *instance.Instance, st orchestrator.Status, now time.Time) metric.ServiceCheck {
	sc := metric.ServiceCheck{
		Name: inst.Config().ServiceCheckPrefix + "." + serviceCheckCanConnect,
		Tags: inst.Tags(),
		Time: now,
	}

	switch {
	case st.Tag == orchestrator.StatusSuccess && st.Result != nil && st.Result.LimitReached:
		sc.Status = metric.StatusWarning
		sc.Message = "metric limit reached, some metrics were dropped"
	case st.Tag == orchestrator.StatusSuccess:
		sc.Status = metric.StatusOK
	case errors.Is(st.Err, instance.ErrBusy):
		sc.Status = metric.StatusWarning
		sc.Message = st.Err.Error()
	default:
		sc.Status = metric.StatusCritical
		if st.Err != nil {
			sc.Message = st.Err.Error()
		}
	}
	return sc
}

func instanceStatus(m *managed, st orchestrator.Status) status.InstanceStatus {
	is := status.InstanceStatus{
		Name:      m.inst.Name(),
		Check:     m.check,
		State:     m.inst.State().String(),
		LiveBeans: m.inst.LiveBeans(),
	}

	switch st.Tag {
	case orchestrator.StatusSuccess:
		is.Status = status.OK
		if st.Result != nil {
			is.MetricCount = len(st.Result.Metrics)
			is.Telemetry = st.Result.Telemetry
			if st.Result.LimitReached {
				is.Status = status.Warning
				is.Message = "metric limit reached"
			}
		}
	case orchestrator.StatusTimeout:
		is.Status = status.Timeout
	default:
		is.Status = status.Error
	}
	if st.Err != nil {
		is.Message = st.Err.Error()
	}
	return is
}
