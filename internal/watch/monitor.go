package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"splice/internal/logging"
)

// DefaultQuietPeriod is how long the monitor waits after the last event
// before reporting a change.
const DefaultQuietPeriod = 250 * time.Millisecond

// Change describes the state of the watched file after a burst of events.
type Change struct {
	Path    string
	Removed bool
	ModTime time.Time
}

// Handler receives coalesced changes. It runs on the monitor goroutine.
type Handler func(Change)

// Monitor watches a single file.
type Monitor struct {
	watcher *fsnotify.Watcher
	handler Handler
	quiet   time.Duration
	logger  *slog.Logger

	mu      sync.Mutex
	path    string
	dir     string
	started bool
	done    chan struct{}
	stop    sync.Once
	wg      sync.WaitGroup
}

// NewMonitor creates an idle monitor. quiet <= 0 uses DefaultQuietPeriod.
func NewMonitor(handler Handler, quiet time.Duration, logger *slog.Logger) (*Monitor, error) {
	if handler == nil {
		return nil, errors.New("watch handler is nil")
	}
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	return &Monitor{
		watcher: w,
		handler: handler,
		quiet:   quiet,
		logger:  logging.NewComponentLogger(logger, "watch"),
		done:    make(chan struct{}),
	}, nil
}

// Bind switches the monitor to path. An empty path unbinds.
func (m *Monitor) Bind(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	dir := ""
	if path != "" {
		dir = filepath.Dir(path)
	}
	if dir != m.dir {
		if m.dir != "" {
			_ = m.watcher.Remove(m.dir)
		}
		if dir != "" {
			if err := m.watcher.Add(dir); err != nil {
				m.dir, m.path = "", ""
				return fmt.Errorf("watch %s: %w", dir, err)
			}
		}
		m.dir = dir
	}
	m.path = path
	return nil
}

// Path returns the currently bound file.
func (m *Monitor) Path() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.path
}

// Start runs the event loop until ctx is done or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop(ctx)
	}()
}

// Stop ends the event loop and closes the underlying watcher.
func (m *Monitor) Stop() {
	m.stop.Do(func() {
		close(m.done)
		_ = m.watcher.Close()
	})
	m.wg.Wait()
}

func (m *Monitor) loop(ctx context.Context) {
	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending string
	)
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.done:
			return
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			target := m.Path()
			if target == "" || filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
				continue
			}
			pending = target
			if timer == nil {
				timer = time.NewTimer(m.quiet)
				timerC = timer.C
			} else {
				timer.Reset(m.quiet)
			}
		case <-timerC:
			timer, timerC = nil, nil
			// the binding may have moved on while events were settling
			if pending != m.Path() {
				pending = ""
				continue
			}
			m.handler(describe(pending))
			pending = ""
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			logging.WarnWithContext(m.logger, "file watch error", "watch_error",
				logging.Error(err),
				logging.String(logging.FieldImpact, "external changes may go unnoticed"),
			)
		}
	}
}

func describe(path string) Change {
	info, err := os.Stat(path)
	if err != nil {
		return Change{Path: path, Removed: true}
	}
	return Change{Path: path, ModTime: info.ModTime()}
}
