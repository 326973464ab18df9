// SPDX-License-Identifier: GPL-3.0-or-later

// Package netdataapi writes the text protocol Netdata reads from external plugins.
// See: https://learn.netdata.cloud/docs/agent/plugins.d#the-output-of-the-plugin
package netdataapi

import (
	"io"
	"strconv"
	"strings"
)

// LabelSourceAuto marks chart labels set by the plugin itself.
const LabelSourceAuto = 1

type ChartOpts struct {
	TypeID      string
	ID          string
	Title       string
	Units       string
	Family      string
	Context     string
	ChartType   string
	Priority    int
	UpdateEvery int
	Options     string
	Plugin      string
	Module      string
}

type DimensionOpts struct {
	ID         string
	Name       string
	Algorithm  string
	Multiplier int
	Divisor    int
	Options    string
}

// API writes protocol lines. Values are quoted; single quotes inside values are dropped.
type API struct {
	io.Writer
}

// New panics if w is nil.
func New(w io.Writer) *API {
	if w == nil {
		panic("netdataapi: nil writer")
	}
	return &API{Writer: w}
}

func (a *API) Chart(opts ChartOpts) {
	a.line("CHART",
		opts.TypeID+"."+opts.ID,
		"",
		opts.Title,
		opts.Units,
		opts.Family,
		opts.Context,
		opts.ChartType,
		strconv.Itoa(opts.Priority),
		strconv.Itoa(opts.UpdateEvery),
		opts.Options,
		opts.Plugin,
		opts.Module,
	)
}

func (a *API) Dimension(opts DimensionOpts) {
	a.line("DIMENSION",
		opts.ID,
		opts.Name,
		opts.Algorithm,
		strconv.Itoa(opts.Multiplier),
		strconv.Itoa(opts.Divisor),
		opts.Options,
	)
}

// Label adds a label to the chart defined last. Labels take effect on CommitLabels.
func (a *API) Label(key, value string) {
	a.line("CLABEL", key, value, strconv.Itoa(LabelSourceAuto))
}

func (a *API) CommitLabels() {
	_, _ = io.WriteString(a, "CLABEL_COMMIT\n")
}

func (a *API) Begin(typeID, id string) {
	a.line("BEGIN", typeID+"."+id)
}

func (a *API) Set(dimID string, value int64) {
	_, _ = io.WriteString(a, "SET '"+clean(dimID)+"' = "+strconv.FormatInt(value, 10)+"\n")
}

func (a *API) End() {
	_, _ = io.WriteString(a, "END\n\n")
}

// Disable tells Netdata not to restart the plugin.
func (a *API) Disable() {
	_, _ = io.WriteString(a, "DISABLE\n")
}

func (a *API) line(keyword string, fields ...string) {
	var sb strings.Builder
	sb.WriteString(keyword)
	for _, f := range fields {
		sb.WriteString(" '")
		sb.WriteString(clean(f))
		sb.WriteByte('\'')
	}
	sb.WriteByte('\n')
	_, _ = io.WriteString(a, sb.String())
}

func clean(s string) string {
	if !strings.ContainsAny(s, "'\n") {
		return s
	}
	return strings.NewReplacer("'", "", "\n", " ").Replace(s)
}
