// SPDX-License-Identifier: GPL-3.0-or-later

package instance

import (
	"time"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/extract"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/filter"
)

const (
	defaultRefreshBeans       = time.Minute * 10
	defaultMaxReturnedMetrics = 350
	defaultServiceCheckPrefix = "jmx"
)

// Config is the resolved, immutable configuration of one instance.
type Config struct {
	Name string
	// Tags are "key:value" tags added to every metric and service check.
	Tags    []string
	Filters *filter.FilterSet

	// RefreshBeans is how often the bean population is re-queried. With bean subscription disabled the
	// population is re-queried every iteration.
	RefreshBeans time.Duration
	// RefreshBeansInitial replaces RefreshBeans for the first refresh after a (re)connect.
	RefreshBeansInitial    time.Duration
	MinCollectionInterval  time.Duration
	EnableBeanSubscription bool

	MaxReturnedMetrics int
	ServiceCheckPrefix string

	Extract extract.Options
}

func (c Config) withDefaults() Config {
	if c.RefreshBeans <= 0 {
		c.RefreshBeans = defaultRefreshBeans
	}
	if c.RefreshBeansInitial <= 0 {
		c.RefreshBeansInitial = c.RefreshBeans
	}
	if c.MaxReturnedMetrics <= 0 {
		c.MaxReturnedMetrics = defaultMaxReturnedMetrics
	}
	if c.ServiceCheckPrefix == "" {
		c.ServiceCheckPrefix = defaultServiceCheckPrefix
	}
	if c.Filters == nil {
		c.Filters = &filter.FilterSet{}
	}
	return c
}
