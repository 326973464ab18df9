// SPDX-License-Identifier: GPL-3.0-or-later

// Package jolokia implements the jmx connection contract over the Jolokia HTTP/JSON bridge.
package jolokia

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/tidwall/gjson"

	"github.com/netdata/netdata/go/jmxd/pkg/confopt"
	"github.com/netdata/netdata/go/jmxd/pkg/web"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/objectname"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jmx"
)

// Client dials a Jolokia agent.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("jolokia: 'url' not set")
	}
	cfg.SubscriptionInterval = confopt.Duration(cfg.SubscriptionInterval.OrDefault(defaultSubscriptionInterval))

	httpClient, err := web.NewHTTPClient(cfg.ClientConfig)
	if err != nil {
		return nil, fmt.Errorf("jolokia: %v", err)
	}

	return &Client{cfg: cfg, httpClient: httpClient}, nil
}

func (c *Client) Endpoint() string { return c.cfg.URL }

// Dial checks the agent answers a version request.
func (c *Client) Dial(ctx context.Context) (jmx.Conn, error) {
	cn := &conn{client: c, types: make(map[string]string)}

	resp, err := cn.do(ctx, request{Type: "version"})
	if err != nil {
		return nil, err
	}
	if status := resp.Get("status").Int(); status != http.StatusOK {
		return nil, &jmx.ConnectionError{Endpoint: c.cfg.URL, Err: responseError(resp)}
	}

	cn.agentVersion = resp.Get("value.agent").String()

	return cn, nil
}

type request struct {
	Type      string `json:"type"`
	MBean     string `json:"mbean,omitempty"`
	Attribute string `json:"attribute,omitempty"`
	Path      string `json:"path,omitempty"`
}

type conn struct {
	client       *Client
	agentVersion string

	mu     sync.Mutex
	closed bool
	// attribute java types learned from list requests, by "bean#attribute"
	types map[string]string
}

func (c *conn) do(ctx context.Context, r request) (gjson.Result, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return gjson.Result{}, &jmx.ConnectionError{Endpoint: c.client.cfg.URL, Err: errors.New("connection closed")}
	}

	body, err := json.Marshal(r)
	if err != nil {
		return gjson.Result{}, err
	}

	req, err := web.NewHTTPRequest(ctx, c.client.cfg.RequestConfig, bytes.NewReader(body))
	if err != nil {
		return gjson.Result{}, err
	}

	resp, err := c.client.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, &jmx.ConnectionError{Endpoint: c.client.cfg.URL, Err: err}
	}
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, &jmx.ConnectionError{
			Endpoint: c.client.cfg.URL,
			Err:      fmt.Errorf("'%s' returned HTTP status code: %d", req.URL, resp.StatusCode),
		}
	}

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, &jmx.ConnectionError{Endpoint: c.client.cfg.URL, Err: err}
	}
	if !gjson.ValidBytes(bs) {
		return gjson.Result{}, &jmx.ConnectionError{
			Endpoint: c.client.cfg.URL,
			Err:      fmt.Errorf("'%s' returned invalid JSON", req.URL),
		}
	}

	return gjson.ParseBytes(bs), nil
}

func (c *conn) Query(ctx context.Context, pattern objectname.ObjectName) ([]objectname.ObjectName, error) {
	resp, err := c.do(ctx, request{Type: "search", MBean: pattern.String()})
	if err != nil {
		return nil, err
	}
	if resp.Get("status").Int() != http.StatusOK {
		return nil, fmt.Errorf("search '%s': %w", pattern, responseError(resp))
	}

	var names []objectname.ObjectName
	for _, v := range resp.Get("value").Array() {
		n, err := objectname.Parse(v.String())
		if err != nil {
			continue
		}
		names = append(names, n)
	}
	return names, nil
}

func (c *conn) Attributes(ctx context.Context, name objectname.ObjectName) ([]jmx.AttributeInfo, error) {
	resp, err := c.do(ctx, request{Type: "list", Path: listPath(name)})
	if err != nil {
		return nil, err
	}
	if status := resp.Get("status").Int(); status != http.StatusOK {
		e := responseError(resp)
		if status == http.StatusNotFound {
			e = errors.Join(jmx.ErrNotFound, e)
		}
		return nil, &jmx.AttributeError{Bean: name, Err: e}
	}

	var infos []jmx.AttributeInfo
	resp.Get("value").ForEach(func(key, value gjson.Result) bool {
		infos = append(infos, jmx.AttributeInfo{Name: key.String(), Type: value.Get("type").String()})
		return true
	})

	c.mu.Lock()
	for _, info := range infos {
		c.types[name.Canonical()+"#"+info.Name] = info.Type
	}
	c.mu.Unlock()

	return infos, nil
}

func (c *conn) Get(ctx context.Context, name objectname.ObjectName, attr string) (any, error) {
	resp, err := c.do(ctx, request{Type: "read", MBean: name.String(), Attribute: attr})
	if err != nil {
		return nil, err
	}
	if status := resp.Get("status").Int(); status != http.StatusOK {
		e := responseError(resp)
		if status == http.StatusNotFound {
			e = errors.Join(jmx.ErrNotFound, e)
		}
		return nil, &jmx.AttributeError{Bean: name, Attribute: attr, Err: e}
	}

	c.mu.Lock()
	typ := c.types[name.Canonical()+"#"+attr]
	c.mu.Unlock()

	return decodeValue(resp.Get("value"), typ), nil
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.client.httpClient.CloseIdleConnections()
	return nil
}

// listPath builds a list request path: "domain/key=value,.../attr". Slashes and exclamation marks
// are escaped with '!'.
func listPath(name objectname.ObjectName) string {
	escape := strings.NewReplacer("!", "!!", "/", "!/")
	props := strings.TrimPrefix(name.Canonical(), name.Domain+":")
	return escape.Replace(name.Domain) + "/" + escape.Replace(props) + "/attr"
}

func responseError(resp gjson.Result) error {
	msg := resp.Get("error").String()
	if msg == "" {
		msg = "unknown error"
	}
	if typ := resp.Get("error_type").String(); typ != "" {
		return fmt.Errorf("status %d: %s (%s)", resp.Get("status").Int(), msg, typ)
	}
	return fmt.Errorf("status %d: %s", resp.Get("status").Int(), msg)
}

func closeBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}
