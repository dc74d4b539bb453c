package recovery

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"splice/internal/fileutil"
	"splice/internal/services"
)

// Companion is the autosave file of an active document.
type Companion struct {
	mu       sync.Mutex
	dir      string
	target   string
	identity string
	instance string
	lock     *flock.Flock
}

// Create allocates a companion for target in dir and locks it. The data file
// is not written until the first Write.
func Create(dir, target string) (*Companion, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrIO, "recovery", "create companion", "create stale directory", err)
	}
	instance := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	c := &Companion{dir: dir, target: target, identity: Identity(target), instance: instance}
	lock, err := acquire(c.lockPath())
	if err != nil {
		return nil, err
	}
	c.lock = lock
	return c, nil
}

// Adopt takes ownership of a stale candidate so the recovered document keeps
// writing to it. The candidate's lock stays held.
func Adopt(c *Candidate, target string) (*Companion, error) {
	if c == nil || c.lock == nil {
		return nil, errors.New("adopt companion: candidate is not locked")
	}
	comp := &Companion{dir: filepath.Dir(c.Path), target: target, identity: c.identity, instance: c.instance, lock: c.lock}
	c.lock = nil
	if err := comp.Retarget(target); err != nil {
		return nil, err
	}
	return comp, nil
}

func acquire(path string) (*flock.Flock, error) {
	lock := flock.New(path)
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrIO, "recovery", "lock companion", path, err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrLockConflict, "recovery", "lock companion", path, nil)
	}
	return lock, nil
}

func (c *Companion) stem() string {
	return stem(c.identity, c.instance)
}

func (c *Companion) lockPath() string {
	return filepath.Join(c.dir, c.stem()+LockExtension)
}

// Path is the companion data file.
func (c *Companion) Path() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return filepath.Join(c.dir, c.stem()+DataExtension)
}

func (c *Companion) dataPath() string {
	return filepath.Join(c.dir, c.stem()+DataExtension)
}

// Target is the project path the companion protects.
func (c *Companion) Target() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// Write atomically replaces the companion data.
func (c *Companion) Write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock == nil {
		return errors.New("write companion: released")
	}
	if err := fileutil.WriteFileAtomic(c.dataPath(), data, 0o644); err != nil {
		return services.Wrap(services.ErrIO, "recovery", "write companion", c.dataPath(), err)
	}
	return nil
}

// Read returns the companion data.
func (c *Companion) Read() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.ReadFile(c.dataPath())
}

// Clear drops the companion data after a successful explicit save. The lock
// stays held.
func (c *Companion) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := os.Remove(c.dataPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear companion: %w", err)
	}
	return nil
}

// Retarget moves the companion to the identity of a new project path.
// Existing data follows the companion.
func (c *Companion) Retarget(target string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock == nil {
		return errors.New("retarget companion: released")
	}
	identity := Identity(target)
	if identity == c.identity {
		c.target = target
		return nil
	}
	oldData, oldLock, oldFlock := c.dataPath(), c.lockPath(), c.lock
	previous := c.identity
	c.identity = identity
	lock, err := acquire(c.lockPath())
	if err != nil {
		c.identity = previous
		return err
	}
	if err := os.Rename(oldData, c.dataPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_ = lock.Unlock()
		_ = os.Remove(c.lockPath())
		c.identity = previous
		return services.Wrap(services.ErrIO, "recovery", "retarget companion", target, err)
	}
	c.target = target
	c.lock = lock
	_ = oldFlock.Unlock()
	_ = os.Remove(oldLock)
	return nil
}

// Release deletes the companion data and lock. Used when the document closes.
func (c *Companion) Release() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock == nil {
		return nil
	}
	var errs []error
	if err := os.Remove(c.dataPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := os.Remove(c.lockPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		errs = append(errs, err)
	}
	if err := c.lock.Unlock(); err != nil {
		errs = append(errs, err)
	}
	c.lock = nil
	return errors.Join(errs...)
}

// Detach drops the lock but keeps the data, leaving it for the next start
// to offer as a stale candidate. Used when the process exits through a
// session save.
func (c *Companion) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lock == nil {
		return nil
	}
	err := c.lock.Unlock()
	c.lock = nil
	return err
}
