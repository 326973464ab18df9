// SPDX-License-Identifier: GPL-3.0-or-later

package jmx

import (
	"context"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
)

//go:generate mockgen -destination=jmxmock/mock_jmx.go -package=jmxmock github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx Dialer,Conn,Subscription

// Dialer opens connections to one configured endpoint.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
	Endpoint() string
}

// Conn is an open connection to a remote registry. Implementations must be safe for concurrent use.
type Conn interface {
	// Query returns the names of all beans selected by pattern.
	Query(ctx context.Context, pattern objectname.ObjectName) ([]objectname.ObjectName, error)
	// Attributes describes the readable attributes of a bean.
	Attributes(ctx context.Context, name objectname.ObjectName) ([]AttributeInfo, error)
	// Get reads one attribute value.
	Get(ctx context.Context, name objectname.ObjectName, attribute string) (any, error)
	// Subscribe starts a stream of registration notifications for beans in the given domains.
	// An empty domain list subscribes to every domain.
	Subscribe(ctx context.Context, domains []string) (Subscription, error)
	Close() error
}

// AttributeInfo describes one attribute. Type is the Java type name as reported by the registry.
type AttributeInfo struct {
	Name string
	Type string
}

type EventType int

const (
	BeanRegistered EventType = iota
	BeanUnregistered
)

func (t EventType) String() string {
	switch t {
	case BeanRegistered:
		return "registered"
	case BeanUnregistered:
		return "unregistered"
	default:
		return "unknown"
	}
}

// Notification is a bean registration change.
type Notification struct {
	Type EventType
	Name objectname.ObjectName
}

// Subscription delivers notifications until it is closed or the registry drops it.
// When Events is closed by the producer, Err returns the cause (nil after Close).
type Subscription interface {
	Events() <-chan Notification
	Err() error
	Close()
}
