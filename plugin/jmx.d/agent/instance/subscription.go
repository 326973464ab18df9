// SPDX-License-Identifier: GPL-3.0-or-later

package instance

import (
	"errors"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
)

// listen applies registration notifications to the bean set until the subscription ends.
// A subscription dropped by the remote side breaks the instance.
func (i *Instance) listen(sub jmx.Subscription) {
	for n := range sub.Events() {
		if !i.isCurrentSub(sub) {
			continue
		}
		if !i.cfg.Filters.MatchBean(n.Name) {
			continue
		}
		switch n.Type {
		case jmx.BeanRegistered:
			if i.beans.Add(n.Name) {
				i.Debugf("bean '%s' registered", n.Name)
			}
		case jmx.BeanUnregistered:
			if i.beans.Remove(n.Name) {
				i.Debugf("bean '%s' unregistered", n.Name)
			}
		}
	}

	err := sub.Err()
	if err == nil {
		return
	}
	if !jmx.IsConnectionError(err) {
		err = &jmx.ConnectionError{Endpoint: i.dialer.Endpoint(), Err: errors.Join(errSubscriptionLost, err)}
	}
	i.breakWithSub(err, sub)
}

var errSubscriptionLost = errors.New("subscription lost")
