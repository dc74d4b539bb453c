package autosave

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"splice/internal/logging"
	"splice/internal/services"
)

// Defaults for the debounce window and the forced-save threshold.
const (
	DefaultDebounce   = 3 * time.Second
	DefaultForceAfter = 5 * time.Minute
)

// BusyRetry is the delay before a forced save that found the document busy
// runs again.
const BusyRetry = 10 * time.Millisecond

// ErrBusy is returned by a SaveFunc that could not run now. The scheduler
// re-arms instead of dropping the save: after BusyRetry when the save was
// forced, after the debounce window otherwise.
var ErrBusy = services.ErrBusy

// SaveFunc persists the document.
type SaveFunc func(ctx context.Context) error

// Options configures a Scheduler.
type Options struct {
	Debounce   time.Duration
	ForceAfter time.Duration
	Clock      Clock
	Logger     *slog.Logger
}

// Scheduler debounces autosaves.
type Scheduler struct {
	save       SaveFunc
	debounce   time.Duration
	forceAfter time.Duration
	clock      Clock
	logger     *slog.Logger

	mu       sync.Mutex
	timer    Timer
	lastSave time.Time
	inFlight bool
	pending  bool
	stopped  bool
	gen      uint64
	wg       sync.WaitGroup
}

// New returns a stopped scheduler. Call Start when a document becomes active.
func New(save SaveFunc, opts Options) *Scheduler {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.ForceAfter <= 0 {
		opts.ForceAfter = DefaultForceAfter
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	return &Scheduler{
		save:       save,
		debounce:   opts.Debounce,
		forceAfter: opts.ForceAfter,
		clock:      opts.Clock,
		logger:     logging.NewComponentLogger(opts.Logger, "autosave"),
		stopped:    true,
	}
}

// Start enables scheduling and resets the elapsed-since-save tracker.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
	s.pending = false
	s.lastSave = s.clock.Now()
}

// Stop cancels the pending timer and ignores further edits until Start.
// A save already in flight is allowed to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	s.pending = false
	s.cancelLocked()
}

// Touch records an edit.
func (s *Scheduler) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if s.inFlight {
		s.pending = true
		return
	}
	if s.overdueLocked() {
		s.armLocked(0)
		return
	}
	s.armLocked(s.debounce)
}

// MarkSaved records a successful explicit save. Any pending autosave is
// cancelled since the document is already on disk.
func (s *Scheduler) MarkSaved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastSave = s.clock.Now()
	s.pending = false
	s.cancelLocked()
}

// LastSave returns the time of the last successful save.
func (s *Scheduler) LastSave() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSave
}

// Pending reports whether a timer is armed.
func (s *Scheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}

// Wait blocks until every fired save has returned.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// overdueLocked reports whether the forced-save threshold has passed.
func (s *Scheduler) overdueLocked() bool {
	return s.clock.Now().Sub(s.lastSave) > s.forceAfter
}

func (s *Scheduler) cancelLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

func (s *Scheduler) armLocked(d time.Duration) {
	s.cancelLocked()
	gen := s.gen
	s.timer = s.clock.AfterFunc(d, func() { s.fire(gen) })
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.stopped || s.inFlight {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	s.inFlight = true
	s.wg.Add(1)
	s.mu.Unlock()
	defer s.wg.Done()

	err := s.save(context.Background())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	switch {
	case err == nil:
		s.lastSave = s.clock.Now()
	case errors.Is(err, ErrBusy):
		delay := s.debounce
		if s.overdueLocked() {
			delay = BusyRetry
		}
		s.logger.Debug("autosave deferred, controller busy", logging.Duration("retry_in", delay))
		if !s.stopped {
			s.armLocked(delay)
		}
		return
	default:
		logging.WarnWithContext(s.logger, "autosave failed", "autosave_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "recovery file may be out of date"),
			logging.String(logging.FieldErrorHint, "check free space and permissions of the stale directory"),
		)
	}
	if s.pending && !s.stopped {
		s.pending = false
		s.armLocked(s.debounce)
	}
}
