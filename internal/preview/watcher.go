package preview

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"github.com/ivlev/talkreel/internal/model"
)

// Store holds the current project. Readers get a consistent snapshot; a
// reload swaps the whole project between ticks.
type Store struct {
	p atomic.Pointer[model.Project]
}

func NewStore(p *model.Project) *Store {
	s := &Store{}
	s.p.Store(p)
	return s
}

func (s *Store) Project() *model.Project { return s.p.Load() }

func (s *Store) Set(p *model.Project) { s.p.Store(p) }

// Watcher reloads a project file into a Store whenever it is written.
type Watcher struct {
	path     string
	store    *Store
	log      logrus.FieldLogger
	watcher  *fsnotify.Watcher
	onReload func(*model.Project)
}

// NewWatcher watches the directory of path, so editors that replace the
// file by rename are seen too.
func NewWatcher(path string, store *Store, log logrus.FieldLogger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("add watch path: %w", err)
	}
	return &Watcher{path: filepath.Clean(path), store: store, log: log, watcher: fw}, nil
}

// OnReload registers a callback run after each successful reload.
func (w *Watcher) OnReload(fn func(*model.Project)) { w.onReload = fn }

// Start handles events until ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.log.WithField("path", w.path).Info("watching project file")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.log.WithError(err).Warn("watcher error")
		}
	}
}

// reload keeps the previous project when the file is mid-write or invalid.
func (w *Watcher) reload() {
	if fi, err := os.Stat(w.path); err != nil || fi.Size() == 0 {
		return
	}
	p, err := model.ReadProject(w.path)
	if err != nil {
		w.log.WithError(err).Warn("project reload failed, keeping previous")
		return
	}
	if p.Source != "" && !filepath.IsAbs(p.Source) {
		p.Source = filepath.Join(filepath.Dir(w.path), p.Source)
	}
	w.store.Set(p)
	w.log.WithFields(logrus.Fields{
		"captions": len(p.Captions),
		"effects":  len(p.Effects),
		"cutaways": len(p.Cutaways),
	}).Info("project reloaded")
	if w.onReload != nil {
		w.onReload(p)
	}
}

func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
