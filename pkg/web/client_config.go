// SPDX-License-Identifier: GPL-3.0-or-later

package web

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/http2"

	"github.com/netdata/netdata/go/jmxd/pkg/confopt"
)

// ErrRedirectAttempted indicates that a redirect occurred.
var ErrRedirectAttempted = errors.New("redirect")

// A client talks to a single agent: one connection for requests plus one for the bean poller.
const (
	maxIdleConnsPerHost = 2
	idleConnTimeout     = time.Minute * 2
)

// ClientConfig is the configuration of the HTTP client.
type ClientConfig struct {
	// Timeout limits every request and the TCP and TLS handshakes. Zero means no timeout.
	Timeout confopt.Duration `yaml:"timeout,omitempty" json:"timeout"`

	// NotFollowRedirect makes redirects fail with ErrRedirectAttempted.
	NotFollowRedirect bool `yaml:"not_follow_redirects,omitempty" json:"not_follow_redirects"`

	// ProxyURL is the proxy to use. Empty means HTTP_PROXY, HTTPS_PROXY and NO_PROXY from the environment.
	ProxyURL string `yaml:"proxy_url,omitempty" json:"proxy_url"`

	TLSConfig `yaml:",inline" json:""`

	// ForceHTTP2 speaks h2 over TLS and h2c over plain TCP.
	ForceHTTP2 bool `yaml:"force_http2,omitempty" json:"force_http2"`
}

// NewHTTPClient returns a new *http.Client given a ClientConfig configuration and an error if any.
func NewHTTPClient(cfg ClientConfig) (*http.Client, error) {
	tlsConfig, err := NewTLSConfig(cfg.TLSConfig)
	if err != nil {
		return nil, fmt.Errorf("error on creating TLS config: %v", err)
	}

	proxy, err := proxyFunc(cfg.ProxyURL)
	if err != nil {
		return nil, err
	}

	dialer := &net.Dialer{Timeout: cfg.Timeout.Duration(), KeepAlive: time.Second * 30}

	var transport http.RoundTripper
	if cfg.ForceHTTP2 {
		transport = &http2Transport{
			tls: &http2.Transport{
				TLSClientConfig: tlsConfig,
				IdleConnTimeout: idleConnTimeout,
			},
			plain: &http2.Transport{
				AllowHTTP:       true,
				IdleConnTimeout: idleConnTimeout,
				DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
					return dialer.DialContext(ctx, network, addr)
				},
			},
		}
	} else {
		transport = &http.Transport{
			Proxy:               proxy,
			DialContext:         dialer.DialContext,
			TLSClientConfig:     tlsConfig,
			TLSHandshakeTimeout: cfg.Timeout.Duration(),
			MaxIdleConnsPerHost: maxIdleConnsPerHost,
			IdleConnTimeout:     idleConnTimeout,
		}
	}

	client := &http.Client{
		Timeout:   cfg.Timeout.Duration(),
		Transport: transport,
	}
	if cfg.NotFollowRedirect {
		client.CheckRedirect = func(*http.Request, []*http.Request) error { return ErrRedirectAttempted }
	}
	return client, nil
}

func proxyFunc(rawURL string) (func(*http.Request) (*url.URL, error), error) {
	if rawURL == "" {
		return http.ProxyFromEnvironment, nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("error on parsing proxy URL '%s': %v", rawURL, err)
	}
	return http.ProxyURL(u), nil
}

// http2Transport picks the h2 or h2c transport by request scheme.
type http2Transport struct {
	tls   *http2.Transport
	plain *http2.Transport
}

func (t *http2Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.URL.Scheme == "https" {
		return t.tls.RoundTrip(req)
	}
	return t.plain.RoundTrip(req)
}

func (t *http2Transport) CloseIdleConnections() {
	t.tls.CloseIdleConnections()
	t.plain.CloseIdleConnections()
}
