// SPDX-License-Identifier: GPL-3.0-or-later

package filter

import (
	"errors"
	"fmt"
)

var ErrConfig = errors.New("invalid filter configuration")

// ConfigError reports a malformed filter block. It is returned once, at parse time.
type ConfigError struct {
	Kind  Kind
	Index int
	Key   string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s filter #%d: %v", e.Kind, e.Index, e.Err)
	}
	return fmt.Sprintf("%s filter #%d: '%s': %v", e.Kind, e.Index, e.Key, e.Err)
}

func (e *ConfigError) Unwrap() []error { return []error{ErrConfig, e.Err} }

var errEmptyConf = errors.New("conf entry has neither 'include' nor 'exclude'")
