package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nyabot/nyabot/errors"
	"github.com/nyabot/nyabot/logger"
)

// ReloadCallback is called with the freshly loaded config after the file
// on disk changes. Only safe fields should be applied at runtime; the
// gateway connection is never re-dialed from a reload.
type ReloadCallback func(*Config) error

// Watcher watches the bot config file and triggers reload callbacks.
type Watcher struct {
	configPath string
	watcher    *fsnotify.Watcher
	callbacks  []ReloadCallback
	mu         sync.RWMutex

	debounce *time.Timer
	// ownWrite suppresses the reload triggered by our own Save
	ownWrite   bool
	ownWriteMu sync.Mutex

	done chan struct{}
}

const debouncePeriod = 500 * time.Millisecond

// NewWatcher creates a watcher for the given config file.
func NewWatcher(configPath string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create fsnotify watcher")
	}
	if err := fw.Add(configPath); err != nil {
		fw.Close()
		return nil, errors.Wrapf(err, "failed to watch config file %s", configPath)
	}
	return &Watcher{
		configPath: configPath,
		watcher:    fw,
		done:       make(chan struct{}),
	}, nil
}

// OnReload registers a callback invoked after each successful reload.
func (w *Watcher) OnReload(callback ReloadCallback) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// MarkOwnWrite marks the next file event as coming from us.
func (w *Watcher) MarkOwnWrite() {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	w.ownWrite = true
}

func (w *Watcher) consumeOwnWrite() bool {
	w.ownWriteMu.Lock()
	defer w.ownWriteMu.Unlock()
	if w.ownWrite {
		w.ownWrite = false
		return true
	}
	return false
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	log := logger.Named("config")
	go func() {
		for {
			select {
			case <-w.done:
				return
			case ev, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if w.consumeOwnWrite() {
					continue
				}
				w.scheduleReload(log)
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				log.Warnw("config watcher error", "error", err)
			}
		}
	}()
}

// scheduleReload debounces rapid successive writes (editors often write twice).
func (w *Watcher) scheduleReload(log interface{ Warnw(string, ...interface{}) }) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
	}
	w.debounce = time.AfterFunc(debouncePeriod, func() {
		cfg, err := LoadFromFile(w.configPath)
		if err != nil {
			log.Warnw("config reload failed", "error", err)
			return
		}
		if err := cfg.Validate(); err != nil {
			log.Warnw("reloaded config rejected", "error", err)
			return
		}
		w.mu.RLock()
		callbacks := make([]ReloadCallback, len(w.callbacks))
		copy(callbacks, w.callbacks)
		w.mu.RUnlock()
		for _, cb := range callbacks {
			if err := cb(cfg); err != nil {
				log.Warnw("config reload callback failed", "error", err)
			}
		}
	})
}

// Close stops watching.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
