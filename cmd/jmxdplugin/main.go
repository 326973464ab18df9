// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/net/http/httpproxy"

	"github.com/netdata/netdata/go/jmxd/logger"
	"github.com/netdata/netdata/go/jmxd/pkg/buildinfo"
	"github.com/netdata/netdata/go/jmxd/pkg/executable"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/reporter"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/cli"
)

func init() {
	// https://github.com/netdata/netdata/issues/8949#issuecomment-638294959
	if v := os.Getenv("TZ"); strings.HasPrefix(v, ":") {
		_ = os.Unsetenv("TZ")
	}
}

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(s string, args ...interface{}) {}))

	opts := parseCLI()

	if opts.Version {
		fmt.Printf("%s.plugin, version: %s\n", executable.Name, buildinfo.Version)
		return
	}

	if lvl := os.Getenv("NETDATA_LOG_LEVEL"); lvl != "" {
		logger.Level.SetByName(lvl)
	}
	if opts.Debug {
		logger.Level.Set(slog.LevelDebug)
	}

	rep, err := newReporter(opts)
	if err != nil {
		logger.Errorf("reporter: %v", err)
		os.Exit(1)
	}

	a := agent.New(agent.Config{
		ConfigDirs:  configDirs(opts),
		Check:       opts.Check,
		UpdateEvery: time.Duration(opts.UpdateEvery) * time.Second,
		Timeout:     time.Duration(opts.Timeout) * time.Second,
		PoolSize:    opts.PoolSize,
		Reporter:    rep,
		StatusFile:  opts.StatusFile,
		Listen:      opts.Listen,
		RunOnce:     opts.Once,
		Watch:       opts.Watch,
	})

	a.Infof("plugin: name=%s, %s, log level %s", executable.Name, buildinfo.Info(), logger.Level.Name())

	proxyCfg := httpproxy.FromEnvironment()
	a.Infof("env HTTP_PROXY '%s', HTTPS_PROXY '%s'", proxyCfg.HTTPProxy, proxyCfg.HTTPSProxy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		for sig := range sigCh {
			if sig == syscall.SIGHUP {
				a.Info("received SIGHUP, reloading configuration")
				a.Reload()
				continue
			}
			a.Infof("received %s, terminating", sig)
			cancel()
			return
		}
	}()

	if err := a.Run(ctx); err != nil {
		a.Error(err)
		os.Exit(1)
	}
}

func parseCLI() *cli.Option {
	opt, err := cli.Parse(os.Args)
	if err != nil {
		if cli.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	return opt
}

func newReporter(opts *cli.Option) (reporter.Reporter, error) {
	kinds := opts.Reporter
	if len(kinds) == 0 {
		if isatty.IsTerminal(os.Stdout.Fd()) {
			kinds = []string{reporter.KindConsole}
		} else {
			kinds = []string{reporter.KindNetdata}
		}
	}

	var multi reporter.Multi
	for _, kind := range kinds {
		r, err := reporter.New(kind, opts.UpdateEvery)
		if err != nil {
			return nil, err
		}
		multi = append(multi, r)
	}
	if len(multi) == 1 {
		return multi[0], nil
	}
	return multi, nil
}

func configDirs(opts *cli.Option) []string {
	if len(opts.ConfDir) > 0 {
		return opts.ConfDir
	}
	user, stock := os.Getenv("NETDATA_USER_CONFIG_DIR"), os.Getenv("NETDATA_STOCK_CONFIG_DIR")
	if user == "" {
		user = "/etc/netdata"
	}
	if stock == "" {
		stock = "/usr/lib/netdata/conf.d"
	}
	return []string{filepath.Join(user, "jmx.d"), filepath.Join(stock, "jmx.d")}
}
