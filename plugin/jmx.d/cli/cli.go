// SPDX-License-Identifier: GPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"

	"github.com/jessevdk/go-flags"
	"github.com/mitchellh/go-homedir"

	"github.com/netdata/netdata/go/jmxd/pkg/executable"
)

// Option defines command line options.
type Option struct {
	UpdateEvery int
	Check       string   `short:"m" long:"check" description:"check name to run, all checks when empty"`
	ConfDir     []string `short:"c" long:"config-dir" description:"config dir to read"`
	Reporter    []string `short:"r" long:"reporter" description:"metrics destination: netdata, console or prometheus (default: netdata when stdout is not a terminal, console otherwise)"`
	Listen      string   `short:"l" long:"listen" description:"prometheus reporter listen address" default:"127.0.0.1:9581"`
	StatusFile  string   `short:"s" long:"status-file" description:"file the iteration status is written to"`
	PoolSize    int      `short:"p" long:"pool-size" description:"instances collected concurrently" default:"3"`
	Timeout     int      `short:"t" long:"timeout" description:"iteration timeout in seconds, defaults to update every"`
	Watch       bool     `short:"w" long:"watch" description:"reload when config files change"`
	Once        bool     `long:"once" description:"run a single iteration and exit"`
	Debug       bool     `short:"d" long:"debug" description:"debug mode"`
	Version     bool     `short:"v" long:"version" description:"display the version and exit"`
}

// Parse returns parsed command-line flags in Option struct
func Parse(args []string) (*Option, error) {
	opt := &Option{
		UpdateEvery: 15,
	}
	parser := flags.NewParser(opt, flags.Default)
	parser.Name = executable.Name
	parser.Usage = "[OPTIONS] [update every]"

	rest, err := parser.ParseArgs(args)
	if err != nil {
		return nil, err
	}

	if len(rest) > 1 {
		if opt.UpdateEvery, err = strconv.Atoi(rest[1]); err != nil {
			return nil, err
		}
		if opt.UpdateEvery <= 0 {
			return nil, fmt.Errorf("invalid update every '%s'", rest[1])
		}
	}

	for i, dir := range opt.ConfDir {
		if opt.ConfDir[i], err = homedir.Expand(dir); err != nil {
			return nil, err
		}
	}
	if opt.StatusFile, err = homedir.Expand(opt.StatusFile); err != nil {
		return nil, err
	}

	return opt, nil
}

func IsHelp(err error) bool {
	return flags.WroteHelp(err)
}
