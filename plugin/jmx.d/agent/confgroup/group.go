// SPDX-License-Identifier: GPL-3.0-or-later

package confgroup

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gohugoio/hashstructure"
	"github.com/google/uuid"
	"gopkg.in/yaml.v2"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/instance"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/extract"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/filter"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/protocols/jolokia"
)

var ErrNoInstances = errors.New("no instances")

// Group is the content of one check configuration file.
type Group struct {
	Source string `yaml:"-"`
	Check  string `yaml:"-"`

	InitConfig InitConfig       `yaml:"init_config"`
	Instances  []InstanceConfig `yaml:"instances"`

	raw []any
}

// Resolved is one instance ready to run.
type Resolved struct {
	Check    string
	Source   string
	Hash     uint64
	Instance instance.Config
	Jolokia  jolokia.Config
}

// Parse decodes a check file. check is the check name, usually the file name without extension.
func Parse(check, source string, bs []byte) (*Group, error) {
	g := &Group{Source: source, Check: check}
	if err := yaml.Unmarshal(bs, g); err != nil {
		return nil, fmt.Errorf("%s: %v", source, err)
	}

	var raw struct {
		Instances []any `yaml:"instances"`
	}
	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return nil, fmt.Errorf("%s: %v", source, err)
	}
	g.raw = raw.Instances

	if len(g.Instances) == 0 {
		return nil, fmt.Errorf("%s: %w", source, ErrNoInstances)
	}
	return g, nil
}

// Resolve builds the instance configurations of the group.
func (g *Group) Resolve() ([]Resolved, error) {
	shared, err := filter.Parse(g.InitConfig.Conf)
	if err != nil {
		return nil, fmt.Errorf("%s: init_config: %w", g.Source, err)
	}

	out := make([]Resolved, 0, len(g.Instances))
	for i, ic := range g.Instances {
		r, err := g.resolve(i, ic, shared)
		if err != nil {
			return nil, fmt.Errorf("%s: instance %d: %w", g.Source, i+1, err)
		}
		out = append(out, r)
	}
	return out, nil
}

func (g *Group) resolve(idx int, ic InstanceConfig, shared *filter.FilterSet) (Resolved, error) {
	endpoint := ic.Endpoint()
	if endpoint == "" {
		return Resolved{}, errors.New("one of 'url', 'jolokia_url' or 'host' is required")
	}

	own, err := filter.Parse(ic.Conf)
	if err != nil {
		return Resolved{}, err
	}
	sets := []*filter.FilterSet{shared, own}
	if firstBool(true, ic.CollectDefaultJVMMetrics, g.InitConfig.CollectDefaultJVMMetrics) {
		sets = append([]*filter.FilterSet{filter.DefaultJVM()}, sets...)
	}

	mode := extract.TabularMode(ic.TabularMode)
	switch mode {
	case "", extract.Tagged, extract.Tagless:
	default:
		return Resolved{}, fmt.Errorf("unknown tabular_mode '%s'", ic.TabularMode)
	}

	jc := ic.Config
	jc.URL = endpoint

	var raw any
	if idx < len(g.raw) {
		raw = g.raw[idx]
	}
	hash, err := hashstructure.Hash(struct {
		Check string
		Init  InitConfig
		Raw   any
	}{g.Check, g.InitConfig, raw}, nil)
	if err != nil {
		return Resolved{}, fmt.Errorf("hash: %v", err)
	}

	return Resolved{
		Check:   g.Check,
		Source:  g.Source,
		Hash:    hash,
		Jolokia: jc,
		Instance: instance.Config{
			Name:                   instanceName(g.Check, ic, endpoint),
			Tags:                   ic.Tags,
			Filters:                filter.Merge(sets...),
			RefreshBeans:           ic.RefreshBeans.Duration(),
			RefreshBeansInitial:    ic.RefreshBeansInitial.Duration(),
			MinCollectionInterval:  ic.MinCollectionInterval.Duration(),
			EnableBeanSubscription: ic.EnableBeanSubscription,
			MaxReturnedMetrics:     firstInt(ic.MaxReturnedMetrics, g.InitConfig.MaxReturnedMetrics),
			ServiceCheckPrefix:     firstString(ic.ServiceCheckPrefix, g.InitConfig.ServiceCheckPrefix),
			Extract: extract.Options{
				TabularMode:            mode,
				NormalizeBeanParamTags: ic.NormalizeBeanParamTags,
				ExcludeTags:            ic.ExcludeTags,
			},
		},
	}, nil
}

// instanceName defaults to "<check>_<host>_<port>"; without a host a random suffix is used.
func instanceName(check string, ic InstanceConfig, endpoint string) string {
	if ic.Name != "" {
		return ic.Name
	}
	host, port := ic.Host, ""
	if ic.Port > 0 {
		port = fmt.Sprint(ic.Port)
	}
	if host == "" {
		if u, err := url.Parse(endpoint); err == nil {
			host, port = u.Hostname(), u.Port()
		}
	}
	if host == "" {
		return check + "_" + uuid.NewString()[:8]
	}

	parts := []string{check, host}
	if port != "" {
		parts = append(parts, port)
	}
	return strings.Join(parts, "_")
}

// LoadFile reads one check file. The check name is the file name without extension.
func LoadFile(path string) (*Group, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(checkName(path), path, bs)
}

// Find lists check files in the directories: "<check>.yaml", "<check>.yml", "<check>.conf" and
// "<check>.d/conf.yaml". A non-empty check limits the result to that check.
func Find(dirs []string, check string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, err
		}
		for _, e := range entries {
			path := filepath.Join(dir, e.Name())
			if e.IsDir() {
				if !strings.HasSuffix(e.Name(), ".d") {
					continue
				}
				path = filepath.Join(path, "conf.yaml")
				if _, err := os.Stat(path); err != nil {
					continue
				}
			} else if !isConfigFile(e.Name()) {
				continue
			}

			name := checkName(path)
			if check != "" && name != check {
				continue
			}
			// the first directory wins
			if seen[name] {
				continue
			}
			seen[name] = true
			files = append(files, path)
		}
	}

	sort.Strings(files)
	return files, nil
}

// Load reads and resolves every check found in dirs. Instance names are made unique.
func Load(dirs []string, check string) ([]Resolved, error) {
	files, err := Find(dirs, check)
	if err != nil {
		return nil, err
	}

	var all []Resolved
	var errs []error
	for _, f := range files {
		g, err := LoadFile(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		rs, err := g.Resolve()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		all = append(all, rs...)
	}

	uniqueNames(all)

	return all, errors.Join(errs...)
}

func uniqueNames(rs []Resolved) {
	seen := make(map[string]int)
	for i := range rs {
		name := rs[i].Instance.Name
		seen[name]++
		if n := seen[name]; n > 1 {
			rs[i].Instance.Name = fmt.Sprintf("%s_%d", name, n)
		}
	}
}

func checkName(path string) string {
	base := filepath.Base(path)
	if base == "conf.yaml" {
		return strings.TrimSuffix(filepath.Base(filepath.Dir(path)), ".d")
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isConfigFile(name string) bool {
	switch filepath.Ext(name) {
	case ".yaml", ".yml", ".conf":
		return true
	default:
		return false
	}
}

func firstBool(def bool, vs ...*bool) bool {
	for _, v := range vs {
		if v != nil {
			return *v
		}
	}
	return def
}

func firstInt(vs ...int) int {
	for _, v := range vs {
		if v > 0 {
			return v
		}
	}
	return 0
}

func firstString(vs ...string) string {
	for _, v := range vs {
		if v != "" {
			return v
		}
	}
	return ""
}
