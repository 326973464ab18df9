// SPDX-License-Identifier: GPL-3.0-or-later

package reporter

import (
	"bytes"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/gohugoio/hashstructure"

	"github.com/netdata/netdata/go/jmxd/pkg/netdataapi"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/extract"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/metric"
)

const (
	netdataPlugin   = "jmx.d"
	netdataModule   = "jmx"
	netdataPrio     = 70000
	netdataDivisor  = 1000
	netdataValueDim = "value"
)

var checkStatuses = []metric.CheckStatus{metric.StatusOK, metric.StatusWarning, metric.StatusCritical, metric.StatusUnknown}

// Netdata writes every series as its own chart using the external plugin protocol.
// Charts are defined the first time their series is seen.
type Netdata struct {
	w           io.Writer
	buf         bytes.Buffer
	api         *netdataapi.API
	updateEvery int
	charts      map[string]bool
	prio        int
}

func NewNetdata(w io.Writer, updateEvery int) *Netdata {
	n := &Netdata{
		w:           w,
		updateEvery: max(updateEvery, 1),
		charts:      make(map[string]bool),
		prio:        netdataPrio,
	}
	n.api = netdataapi.New(&n.buf)
	return n
}

func (n *Netdata) Emit(s metric.Sample) {
	typeID := chartTypeID(s.Tags)
	id := chartID(s.Name, s.Tags)

	if key := typeID + "." + id; !n.charts[key] {
		n.charts[key] = true
		n.defineChart(typeID, id, s.Name, "value", s.Tags)
		n.api.Dimension(netdataapi.DimensionOpts{
			ID:         netdataValueDim,
			Name:       netdataValueDim,
			Algorithm:  "absolute",
			Multiplier: 1,
			Divisor:    netdataDivisor,
		})
	}

	n.api.Begin(typeID, id)
	n.api.Set(netdataValueDim, scaled(s.Value))
	n.api.End()
}

func (n *Netdata) EmitServiceCheck(sc metric.ServiceCheck) {
	typeID := chartTypeID(sc.Tags)
	id := extract.NormalizeName(strings.ReplaceAll(sc.Name, ".", "_"))

	if key := typeID + "." + id; !n.charts[key] {
		n.charts[key] = true
		n.defineChart(typeID, id, sc.Name, "status", sc.Tags)
		for _, st := range checkStatuses {
			name := strings.ToLower(st.String())
			n.api.Dimension(netdataapi.DimensionOpts{ID: name, Name: name, Algorithm: "absolute", Multiplier: 1, Divisor: 1})
		}
	}

	n.api.Begin(typeID, id)
	for _, st := range checkStatuses {
		var v int64
		if st == sc.Status {
			v = 1
		}
		n.api.Set(strings.ToLower(st.String()), v)
	}
	n.api.End()
}

func (n *Netdata) Flush() error {
	defer n.buf.Reset()
	if n.buf.Len() == 0 {
		return nil
	}
	_, err := n.buf.WriteTo(n.w)
	return err
}

func (n *Netdata) defineChart(typeID, id, name, units string, tags []string) {
	family, _, _ := strings.Cut(name, ".")
	n.prio++
	n.api.Chart(netdataapi.ChartOpts{
		TypeID:      typeID,
		ID:          id,
		Title:       name,
		Units:       units,
		Family:      family,
		Context:     netdataModule + "." + name,
		ChartType:   "line",
		Priority:    n.prio,
		UpdateEvery: n.updateEvery,
		Plugin:      netdataPlugin,
		Module:      netdataModule,
	})
	for _, t := range tags {
		if k, v, ok := strings.Cut(t, ":"); ok {
			n.api.Label(k, v)
		}
	}
	n.api.CommitLabels()
}

func chartTypeID(tags []string) string {
	inst, ok := metric.TagValue(tags, "instance")
	if !ok {
		return netdataModule
	}
	return netdataModule + "_" + extract.NormalizeName(strings.ReplaceAll(inst, ".", "_"))
}

// chartID is the normalized metric name plus a hash of the tags, so series of one metric do not collide.
func chartID(name string, tags []string) string {
	id := strings.ReplaceAll(extract.NormalizeName(name), ".", "_")
	if len(tags) == 0 {
		return id
	}
	h, err := hashstructure.Hash(tags, nil)
	if err != nil {
		return id
	}
	return id + "_" + strconv.FormatUint(h, 16)
}

func scaled(v float64) int64 {
	return int64(math.Round(v * netdataDivisor))
}
