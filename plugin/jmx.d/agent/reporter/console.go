// SPDX-License-Identifier: GPL-3.0-or-later

package reporter

import (
	"bytes"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/pkg/metric"
)

// Console writes one human-readable line per sample or service check.
type Console struct {
	w   io.Writer
	buf bytes.Buffer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Emit(s metric.Sample) {
	c.buf.WriteString(s.Time.Format(time.RFC3339))
	c.buf.WriteString(" metric ")
	c.buf.WriteString(s.Name)
	c.buf.WriteByte(' ')
	c.buf.WriteString(strconv.FormatFloat(s.Value, 'f', -1, 64))
	c.buf.WriteByte(' ')
	c.buf.WriteString(string(s.Type))
	c.writeTags(s.Tags)
}

func (c *Console) EmitServiceCheck(sc metric.ServiceCheck) {
	c.buf.WriteString(sc.Time.Format(time.RFC3339))
	c.buf.WriteString(" check ")
	c.buf.WriteString(sc.Name)
	c.buf.WriteByte(' ')
	c.buf.WriteString(sc.Status.String())
	if sc.Message != "" {
		c.buf.WriteString(" " + strconv.Quote(sc.Message))
	}
	c.writeTags(sc.Tags)
}

func (c *Console) Flush() error {
	defer c.buf.Reset()
	if c.buf.Len() == 0 {
		return nil
	}
	_, err := c.buf.WriteTo(c.w)
	return err
}

func (c *Console) writeTags(tags []string) {
	if len(tags) > 0 {
		c.buf.WriteString(" [" + strings.Join(tags, " ") + "]")
	}
	c.buf.WriteByte('\n')
}
