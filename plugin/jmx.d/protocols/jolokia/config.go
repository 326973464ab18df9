// SPDX-License-Identifier: GPL-3.0-or-later

package jolokia

import (
	"time"

	"github.com/netdata/netdata/go/jmxd/pkg/confopt"
	"github.com/netdata/netdata/go/jmxd/pkg/web"
)

const defaultSubscriptionInterval = time.Second * 5

type Config struct {
	web.HTTPConfig `yaml:",inline" json:""`

	// SubscriptionInterval is how often the bean population is polled for registrations.
	SubscriptionInterval confopt.Duration `yaml:"subscription_interval,omitempty" json:"subscription_interval"`
}
