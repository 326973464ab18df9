// SPDX-License-Identifier: GPL-3.0-or-later

package web

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/netdata/netdata/go/jmxd/pkg/buildinfo"
	"github.com/netdata/netdata/go/jmxd/pkg/executable"
)

// RequestConfig is the configuration of the HTTP request.
// Supported configuration file formats: YAML.
type RequestConfig struct {
	// URL specifies the URL to access.
	URL string `yaml:"url" json:"url"`

	// Username specifies the username for basic HTTP authentication.
	Username string `yaml:"username,omitempty" json:"username"`

	// Password specifies the password for basic HTTP authentication.
	Password string `yaml:"password,omitempty" json:"password"`

	// BearerTokenFile specifies the path to a file containing a bearer token.
	// It takes precedence over basic authentication.
	BearerTokenFile string `yaml:"bearer_token_file,omitempty" json:"bearer_token_file"`

	// ProxyUsername and ProxyPassword authenticate the user agent to a proxy server.
	ProxyUsername string `yaml:"proxy_username,omitempty" json:"proxy_username"`
	ProxyPassword string `yaml:"proxy_password,omitempty" json:"proxy_password"`

	// Headers specifies the HTTP request header fields to be sent by the client.
	Headers map[string]string `yaml:"headers,omitempty" json:"headers"`
}

// Copy makes a full copy of the RequestConfig.
func (r RequestConfig) Copy() RequestConfig {
	if r.Headers == nil {
		return r
	}

	headers := make(map[string]string, len(r.Headers))
	for k, v := range r.Headers {
		headers[k] = v
	}
	r.Headers = headers
	return r
}

var userAgent = fmt.Sprintf("Netdata %s.plugin/%s", executable.Name, buildinfo.Version)

// NewHTTPRequest returns a new request for cfg. A nil body makes a GET request, otherwise a POST
// with a JSON content type.
func NewHTTPRequest(ctx context.Context, cfg RequestConfig, body io.Reader) (*http.Request, error) {
	method := http.MethodGet
	if body != nil {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := setAuthentication(req, cfg); err != nil {
		return nil, err
	}

	if cfg.ProxyUsername != "" && cfg.ProxyPassword != "" {
		basicAuth := base64.StdEncoding.EncodeToString([]byte(cfg.ProxyUsername + ":" + cfg.ProxyPassword))
		req.Header.Set("Proxy-Authorization", "Basic "+basicAuth)
	}

	for k, v := range cfg.Headers {
		switch strings.ToLower(k) {
		case "host":
			req.Host = v
		default:
			req.Header.Set(k, v)
		}
	}

	return req, nil
}

// NewHTTPRequestWithPath is NewHTTPRequest with urlPath appended to the base URL.
func NewHTTPRequestWithPath(ctx context.Context, cfg RequestConfig, urlPath string, body io.Reader) (*http.Request, error) {
	cfg = cfg.Copy()

	v, err := url.JoinPath(cfg.URL, urlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to join URL path: %w", err)
	}
	cfg.URL = v

	return NewHTTPRequest(ctx, cfg, body)
}

func setAuthentication(req *http.Request, cfg RequestConfig) error {
	switch {
	case cfg.BearerTokenFile != "":
		bs, err := os.ReadFile(cfg.BearerTokenFile)
		if err != nil {
			return fmt.Errorf("bearer token file: %w", err)
		}
		token := strings.TrimSpace(string(bs))
		if token == "" {
			return fmt.Errorf("bearer token file is empty")
		}
		req.Header.Set("Authorization", "Bearer "+token)
	case cfg.Username != "" || cfg.Password != "":
		req.SetBasicAuth(cfg.Username, cfg.Password)
	}
	return nil
}
