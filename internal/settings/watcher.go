package settings

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Event represents a settings change.
type Event struct {
	Settings *Settings
	Error    error
}

// Watcher reloads the settings file when it changes on disk, so credentials
// pasted into the file take effect without restarting the dashboard.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	events   chan Event
	debounce time.Duration

	mu      sync.RWMutex
	current *Settings
}

// NewWatcher creates a watcher for the given settings file.
func NewWatcher(path string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		path:     path,
		watcher:  fsWatcher,
		events:   make(chan Event, 10),
		debounce: 100 * time.Millisecond,
	}, nil
}

// Events returns the channel that receives settings change events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Current returns the most recently loaded settings.
func (w *Watcher) Current() *Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.current == nil {
		return &Settings{}
	}
	return w.current
}

// Start loads the file once and begins watching its directory. Watching
// the directory rather than the file survives the atomic rename Save does.
func (w *Watcher) Start(ctx context.Context) error {
	s, err := Load(w.path)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.current = s
	w.mu.Unlock()

	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	go w.run(ctx)
	return nil
}

// Stop closes the watcher and cleans up resources.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) run(ctx context.Context) {
	var pending time.Time
	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.Now()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.send(Event{Error: err})

		case now := <-ticker.C:
			if !pending.IsZero() && now.Sub(pending) >= w.debounce {
				pending = time.Time{}
				w.reload()
			}
		}
	}
}

func (w *Watcher) reload() {
	s, err := Load(w.path)
	if err != nil {
		w.send(Event{Error: fmt.Errorf("failed to reload settings: %w", err)})
		return
	}

	w.mu.Lock()
	w.current = s
	w.mu.Unlock()
	w.send(Event{Settings: s})
}

func (w *Watcher) send(ev Event) {
	select {
	case w.events <- ev:
	default:
	}
}
