// SPDX-License-Identifier: GPL-3.0-or-later

package jmx

import (
	"errors"
	"fmt"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
)

var (
	ErrConnection = errors.New("connection error")
	ErrNotFound   = errors.New("not found")
)

// ConnectionError means the endpoint is unreachable or the connection was lost.
type ConnectionError struct {
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to '%s' failed: %v", e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() []error { return []error{ErrConnection, e.Err} }

// AttributeError means a single attribute could not be read.
type AttributeError struct {
	Bean      objectname.ObjectName
	Attribute string
	Err       error
}

func (e *AttributeError) Error() string {
	return fmt.Sprintf("attribute '%s' of '%s': %v", e.Attribute, e.Bean, e.Err)
}

func (e *AttributeError) Unwrap() error { return e.Err }

// IsConnectionError reports whether err (or any error it wraps) is a connection fault.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnection)
}

// IsNotFound reports whether err means the bean or attribute does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
