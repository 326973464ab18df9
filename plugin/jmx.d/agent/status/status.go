// SPDX-License-Identifier: GPL-3.0-or-later

// Package status writes the per-iteration status file and reads it back.
package status

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"gopkg.in/yaml.v2"

	"github.com/netdata/netdata/go/jmxd/logger"
	"github.com/netdata/netdata/go/jmxd/plugin/jmx.d/agent/instance"
)

const (
	OK      = "OK"
	Warning = "WARNING"
	Error   = "ERROR"
	Timeout = "TIMEOUT"
)

type InstanceStatus struct {
	Name        string             `yaml:"name"`
	Check       string             `yaml:"check,omitempty"`
	State       string             `yaml:"state"`
	Status      string             `yaml:"status"`
	Message     string             `yaml:"message,omitempty"`
	MetricCount int                `yaml:"metric_count"`
	LiveBeans   int                `yaml:"live_beans"`
	Telemetry   instance.Telemetry `yaml:"telemetry"`
}

type Report struct {
	Timestamp time.Time        `yaml:"timestamp"`
	Iteration int64            `yaml:"iteration"`
	Duration  string           `yaml:"duration"`
	Instances []InstanceStatus `yaml:"instances"`
}

// Writer replaces the status file after every iteration. Readers and writers coordinate through a
// lock file next to it.
type Writer struct {
	*logger.Logger

	path string
	lock *flock.Flock
}

func NewWriter(path string, log *logger.Logger) *Writer {
	return &Writer{
		Logger: log.With(slog.String("component", "status writer"), slog.String("file", path)),
		path:   path,
		lock:   flock.New(lockPath(path)),
	}
}

func (w *Writer) Write(r Report) error {
	bs, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal status: %v", err)
	}

	if err := w.lock.Lock(); err != nil {
		return fmt.Errorf("lock status file: %v", err)
	}
	defer func() { _ = w.lock.Unlock() }()

	tmp, err := os.CreateTemp(filepath.Dir(w.path), filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(bs); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), w.path); err != nil {
		return err
	}

	w.Debugf("status written, %d instances", len(r.Instances))
	return nil
}

// Close releases the lock file handle.
func (w *Writer) Close() error {
	return w.lock.Close()
}

// Read loads a status file written by Writer.
func Read(path string) (*Report, error) {
	lock := flock.New(lockPath(path))
	if err := lock.RLock(); err != nil {
		return nil, fmt.Errorf("lock status file: %v", err)
	}
	defer func() { _ = lock.Close() }()

	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var r Report
	if err := yaml.Unmarshal(bs, &r); err != nil {
		return nil, fmt.Errorf("%s: %v", path, err)
	}
	return &r, nil
}

func lockPath(path string) string { return path + ".lock" }
