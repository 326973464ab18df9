// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = time.Second

// watch triggers a reload when configuration files change. Editors write files in several steps,
// so events are collapsed until the directory is quiet for watchDebounce.
func (a *Agent) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()

	for _, dir := range a.cfg.ConfigDirs {
		a.addWatch(w, dir)
	}

	var fire <-chan time.Time
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Create) {
				if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
					a.addWatch(w, ev.Name)
				}
			}
			if !isConfigEvent(ev) {
				continue
			}
			a.Debugf("config change: %s", ev)
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
			} else {
				timer.Reset(watchDebounce)
			}
			fire = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			a.Warningf("config watcher: %v", err)
		case <-fire:
			fire = nil
			a.Info("configuration changed on disk, reloading")
			a.Reload()
		}
	}
}

// addWatch watches dir and its "<check>.d" subdirectories.
func (a *Agent) addWatch(w *fsnotify.Watcher, dir string) {
	if err := w.Add(dir); err != nil {
		a.Debugf("watch '%s': %v", dir, err)
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if e.IsDir() && strings.HasSuffix(e.Name(), ".d") {
			if err := w.Add(filepath.Join(dir, e.Name())); err != nil {
				a.Debugf("watch '%s': %v", e.Name(), err)
			}
		}
	}
}

func isConfigEvent(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	switch filepath.Ext(ev.Name) {
	case ".yaml", ".yml", ".conf":
		return true
	}
	return false
}
