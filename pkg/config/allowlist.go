package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/webcomponents/catalog/pkg/catalog"
)

// AllowlistWatcher keeps an SPDXAllowlist in sync with a local JSON file
// (a flat array of identifiers), reloading it whenever the file changes
// so a deploy can update the accepted-license list without a restart.
type AllowlistWatcher struct {
	path string
	log  *logrus.Entry

	mu        sync.RWMutex
	allowlist catalog.SPDXAllowlist

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewAllowlistWatcher loads path once and starts watching it for
// changes. If path is empty or missing, it falls back to
// catalog.DefaultSPDXAllowlist and does not watch anything.
func NewAllowlistWatcher(path string, log *logrus.Entry) (*AllowlistWatcher, error) {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	w := &AllowlistWatcher{path: path, log: log, allowlist: catalog.DefaultSPDXAllowlist()}

	if path == "" {
		return w, nil
	}
	if err := w.reload(); err != nil {
		if os.IsNotExist(err) {
			log.WithField("path", path).Warn("spdx allowlist file not found, using default allowlist")
			return w, nil
		}
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config: creating allowlist watcher: %w", err)
	}
	if err := fsw.Add(path); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("config: watching %s: %w", path, err)
	}
	w.watcher = fsw
	w.done = make(chan struct{})
	go w.run()

	return w, nil
}

func (w *AllowlistWatcher) reload() error {
	body, err := os.ReadFile(w.path)
	if err != nil {
		return err
	}
	var ids []string
	if err := json.Unmarshal(body, &ids); err != nil {
		return fmt.Errorf("config: parsing spdx allowlist %s: %w", w.path, err)
	}

	allow := make(catalog.SPDXAllowlist, len(ids))
	for _, id := range ids {
		allow[id] = true
	}

	w.mu.Lock()
	w.allowlist = allow
	w.mu.Unlock()
	return nil
}

func (w *AllowlistWatcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				if err := w.reload(); err != nil {
					w.log.WithError(err).Warn("failed to reload spdx allowlist")
					continue
				}
				w.log.WithField("path", w.path).Info("reloaded spdx allowlist")
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("spdx allowlist watcher error")
		case <-w.done:
			return
		}
	}
}

// Allowlist returns the current allowlist snapshot.
func (w *AllowlistWatcher) Allowlist() catalog.SPDXAllowlist {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.allowlist
}

// Close stops the underlying filesystem watcher, if one was started.
func (w *AllowlistWatcher) Close() error {
	if w.watcher == nil {
		return nil
	}
	close(w.done)
	return w.watcher.Close()
}
