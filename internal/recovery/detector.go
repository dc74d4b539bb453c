package recovery

import (
	"errors"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/gofrs/flock"

	"splice/internal/logging"
)

// Candidate is a stale companion whose lock this process now holds.
type Candidate struct {
	Path     string
	ModTime  time.Time
	Size     int64
	identity string
	instance string
	lock     *flock.Flock
}

func (c *Candidate) lockPath() string {
	return filepath.Join(filepath.Dir(c.Path), stem(c.identity, c.instance)+LockExtension)
}

// Read returns the candidate's scene text.
func (c *Candidate) Read() ([]byte, error) {
	return os.ReadFile(c.Path)
}

// Detector enumerates stale companions in the stale directory.
type Detector struct {
	dir    string
	logger *slog.Logger
}

// NewDetector returns a detector for dir.
func NewDetector(dir string, logger *slog.Logger) *Detector {
	return &Detector{dir: dir, logger: logging.NewComponentLogger(logger, "recovery")}
}

// Dir is the stale directory.
func (d *Detector) Dir() string {
	return d.dir
}

// Result is the outcome of Find.
type Result struct {
	// Offer is the newest stale candidate newer than the target, or nil.
	Offer *Candidate
	// Stale holds every stale candidate including Offer, locked.
	Stale []*Candidate
	// Live counts companions held by running instances.
	Live int
}

// Rest returns the stale candidates other than Offer.
func (r Result) Rest() []*Candidate {
	out := make([]*Candidate, 0, len(r.Stale))
	for _, c := range r.Stale {
		if c != r.Offer {
			out = append(out, c)
		}
	}
	return out
}

// Find locates stale companions for target. Every returned candidate is
// locked by this process and must be passed to Discard, Release or Adopt.
// Companions whose lock is held elsewhere are skipped silently.
func (d *Detector) Find(target string) (Result, error) {
	var res Result
	identity := Identity(target)
	entries, err := os.ReadDir(d.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return res, nil
	}
	if err != nil {
		return res, err
	}

	instances := make(map[string]bool)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, inst, ok := parseStem(e.Name())
		if ok && id == identity {
			instances[inst] = true
		}
	}

	var targetTime time.Time
	if info, err := os.Stat(target); err == nil {
		targetTime = info.ModTime()
	}

	for _, inst := range slices.Sorted(maps.Keys(instances)) {
		c := &Candidate{
			Path:     filepath.Join(d.dir, stem(identity, inst)+DataExtension),
			identity: identity,
			instance: inst,
		}
		lock := flock.New(c.lockPath())
		ok, err := lock.TryLock()
		if err != nil {
			d.logger.Debug("companion lock probe failed", logging.String("path", c.lockPath()), logging.Error(err))
			continue
		}
		if !ok {
			res.Live++
			continue
		}
		c.lock = lock
		if info, err := os.Stat(c.Path); err == nil {
			c.ModTime = info.ModTime()
			c.Size = info.Size()
		}
		res.Stale = append(res.Stale, c)
	}

	for _, c := range res.Stale {
		if c.Size == 0 {
			continue
		}
		if !targetTime.IsZero() && !c.ModTime.After(targetTime) {
			continue
		}
		if res.Offer == nil || c.ModTime.After(res.Offer.ModTime) {
			res.Offer = c
		}
	}
	d.logger.Debug("stale companions scanned",
		logging.String("target", target),
		logging.Int("stale", len(res.Stale)),
		logging.Int("live", res.Live),
		logging.Bool("offer", res.Offer != nil),
	)
	return res, nil
}

// Discard deletes stale candidates and releases their locks.
func (d *Detector) Discard(candidates ...*Candidate) {
	for _, c := range candidates {
		if c == nil || c.lock == nil {
			continue
		}
		for _, path := range []string{c.Path, c.lockPath()} {
			if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
				logging.WarnWithContext(d.logger, "failed to remove stale companion", "stale_remove_failed",
					logging.String("path", path),
					logging.Error(err),
				)
			}
		}
		_ = c.lock.Unlock()
		c.lock = nil
	}
}

// Release unlocks candidates without deleting them.
func (d *Detector) Release(candidates ...*Candidate) {
	for _, c := range candidates {
		if c == nil || c.lock == nil {
			continue
		}
		_ = c.lock.Unlock()
		c.lock = nil
	}
}
