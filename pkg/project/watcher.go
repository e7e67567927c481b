package project

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// ChangeCallback is called with the project name whose layout changed on
// disk.
type ChangeCallback func(project string)

// Watcher monitors the projects root for layout changes made outside the
// server process, so connected clients can be told to reload. Events are
// debounced per project; editors and atomic renames fire several events
// for one logical save.
type Watcher struct {
	store    *Store
	watcher  *fsnotify.Watcher
	onChange ChangeCallback
	debounce time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewWatcher creates a watcher over the store's root. The callback fires
// once per debounce window per project.
func NewWatcher(store *Store, onChange ChangeCallback, logger zerolog.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		store:    store,
		watcher:  fsw,
		onChange: onChange,
		debounce: 200 * time.Millisecond,
		logger:   logger.With().Str("component", "project_watcher").Logger(),
		timers:   map[string]*time.Timer{},
	}
	if err := fsw.Add(store.Root()); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch projects root: %w", err)
	}
	// Existing project directories; new ones are added as they appear.
	projects, err := store.List()
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, name := range projects {
		dir := filepath.Join(store.Root(), name)
		if err := fsw.Add(dir); err != nil {
			w.logger.Debug().Str("project", name).Err(err).Msg("Skipping unwatchable project dir")
		}
	}
	return w, nil
}

// Run processes events until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	w.logger.Info().Str("root", w.store.Root()).Msg("Project watcher started")
	defer w.watcher.Close()

	for {
		select {
		case <-ctx.Done():
			w.stopTimers()
			w.logger.Info().Msg("Project watcher stopped")
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(w.store.Root(), event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}

	// A new project directory directly under the root gets watched too.
	if event.Op.Has(fsnotify.Create) && !strings.Contains(rel, string(filepath.Separator)) {
		if err := w.watcher.Add(event.Name); err == nil {
			w.logger.Debug().Str("project", rel).Msg("Watching new project dir")
		}
		return
	}

	if filepath.Base(event.Name) != layoutFileName {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}

	project := filepath.Dir(rel)
	w.scheduleNotify(project)
}

func (w *Watcher) scheduleNotify(project string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if timer, ok := w.timers[project]; ok {
		timer.Stop()
	}
	w.timers[project] = time.AfterFunc(w.debounce, func() {
		w.logger.Debug().Str("project", project).Msg("Layout changed on disk")
		w.onChange(project)
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, timer := range w.timers {
		timer.Stop()
	}
	clear(w.timers)
}
