// SPDX-License-Identifier: GPL-3.0-or-later

// Package confgroup reads check configuration files and resolves them into instance configurations.
package confgroup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/netdata/netdata/go/jmxd/pkg/confopt"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/filter"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jolokia"
)

const defaultJolokiaPath = "/jolokia"

// InitConfig holds the settings shared by every instance of a check.
type InitConfig struct {
	CollectDefaultJVMMetrics *bool         `yaml:"collect_default_jvm_metrics,omitempty"`
	ServiceCheckPrefix       string        `yaml:"service_check_prefix,omitempty"`
	MaxReturnedMetrics       int           `yaml:"max_returned_metrics,omitempty"`
	Conf                     []filter.Conf `yaml:"conf,omitempty"`
}

// InstanceConfig is one entry of the "instances" list.
type InstanceConfig struct {
	Name string `yaml:"name,omitempty"`

	jolokia.Config `yaml:",inline"`
	JolokiaURL     string `yaml:"jolokia_url,omitempty"`
	Host           string `yaml:"host,omitempty"`
	Port           int    `yaml:"port,omitempty"`
	Path           string `yaml:"path,omitempty"`

	Tags        Tags          `yaml:"tags,omitempty"`
	Conf        []filter.Conf `yaml:"conf,omitempty"`
	ExcludeTags []string      `yaml:"exclude_tags,omitempty"`

	RefreshBeans           confopt.Duration `yaml:"refresh_beans,omitempty"`
	RefreshBeansInitial    confopt.Duration `yaml:"refresh_beans_initial,omitempty"`
	MinCollectionInterval  confopt.Duration `yaml:"min_collection_interval,omitempty"`
	EnableBeanSubscription bool             `yaml:"enable_bean_subscription,omitempty"`

	CollectDefaultJVMMetrics *bool  `yaml:"collect_default_jvm_metrics,omitempty"`
	MaxReturnedMetrics       int    `yaml:"max_returned_metrics,omitempty"`
	TabularMode              string `yaml:"tabular_mode,omitempty"`
	NormalizeBeanParamTags   bool   `yaml:"normalize_bean_param_tags,omitempty"`
	ServiceCheckPrefix       string `yaml:"service_check_prefix,omitempty"`
}

// Endpoint returns the agent URL: url, then jolokia_url, then http://host:port/path.
func (c InstanceConfig) Endpoint() string {
	switch {
	case c.URL != "":
		return c.URL
	case c.JolokiaURL != "":
		return c.JolokiaURL
	case c.Host != "":
		path := c.Path
		if path == "" {
			path = defaultJolokiaPath
		}
		if !strings.HasPrefix(path, "/") {
			path = "/" + path
		}
		if c.Port > 0 {
			return fmt.Sprintf("http://%s:%d%s", c.Host, c.Port, path)
		}
		return fmt.Sprintf("http://%s%s", c.Host, path)
	default:
		return ""
	}
}

// Tags reads either a list of "key:value" strings or a key/value map.
type Tags []string

func (t *Tags) UnmarshalYAML(unmarshal func(any) error) error {
	var list []string
	if err := unmarshal(&list); err == nil {
		*t = list
		return nil
	}

	var m map[string]string
	if err := unmarshal(&m); err != nil {
		return fmt.Errorf("tags: expected a list or a map: %v", err)
	}
	tags := make([]string, 0, len(m))
	for k, v := range m {
		tags = append(tags, k+":"+v)
	}
	sort.Strings(tags)
	*t = tags
	return nil
}
