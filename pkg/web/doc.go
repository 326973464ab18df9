// SPDX-License-Identifier: GPL-3.0-or-later

// Package web holds the HTTP request and client settings shared by HTTP based transports.
package web

// HTTPConfig is embedded inline into a transport configuration, so every HTTP transport accepts the same
// user options.
type HTTPConfig struct {
	RequestConfig `yaml:",inline" json:""`
	ClientConfig  `yaml:",inline" json:""`
}
