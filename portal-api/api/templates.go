package api

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"

	"portal/domain"
)

const templateDebounce = 100 * time.Millisecond

// TemplateStore holds the task templates new projects are seeded from. When
// backed by a file it reloads the file whenever it changes on disk; a file that
// fails to parse keeps the previous templates in effect.
type TemplateStore struct {
	path    string
	current atomic.Pointer[domain.Templates]
	logger  *log.Logger
	reloads atomic.Int64
}

// NewTemplateStore loads path, or the built-in templates when path is empty.
func NewTemplateStore(path string, logger *log.Logger) (*TemplateStore, error) {
	s := &TemplateStore{path: path, logger: logger}
	tpl := domain.DefaultTemplates()
	if path != "" {
		loaded, err := domain.LoadTemplates(path)
		if err != nil {
			return nil, err
		}
		tpl = loaded
	}
	s.current.Store(&tpl)
	return s, nil
}

// Templates returns the templates currently in effect.
func (s *TemplateStore) Templates() domain.Templates {
	return *s.current.Load()
}

// Watch reloads the templates file on change until ctx is done. The parent
// directory is watched so editors that replace the file by rename are seen.
func (s *TemplateStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		name := filepath.Base(s.path)
		var debounce *time.Timer
		for {
			select {
			case <-ctx.Done():
				if debounce != nil {
					debounce.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != name || ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(templateDebounce, s.reload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.logger.WithError(err).Warn("task template watcher error")
			}
		}
	}()
	return nil
}

func (s *TemplateStore) reload() {
	tpl, err := domain.LoadTemplates(s.path)
	if err != nil {
		s.logger.WithError(err).WithField("path", s.path).Error("task templates not reloaded")
		return
	}
	s.current.Store(&tpl)
	s.reloads.Add(1)
	s.logger.WithField("path", s.path).Infof("task templates reloaded, private: %d, public: %d", len(tpl.Private), len(tpl.Public))
}
