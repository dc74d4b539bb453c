package relocation

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"splice/internal/document"
	"splice/internal/fileutil"
	"splice/internal/logging"
	"splice/internal/services"
)

// Mover performs the tree move. dst is the final path of src and does not exist.
type Mover interface {
	Move(ctx context.Context, src, dst string, progress fileutil.ProgressFunc) error
}

// TreeMover moves with fileutil.MoveTree: a rename on the same device, a
// parallel verified copy and delete otherwise.
type TreeMover struct{}

// Move implements Mover.
func (TreeMover) Move(ctx context.Context, src, dst string, progress fileutil.ProgressFunc) error {
	return fileutil.MoveTree(ctx, src, dst, progress)
}

// Request describes one relocation.
type Request struct {
	DocumentID string
	OldBase    string
	NewBase    string
	// ProjectDir is the folder of the project file the patterns apply to.
	ProjectDir string
}

// Source is the data folder being moved.
func (r Request) Source() string {
	return filepath.Join(r.OldBase, r.DocumentID)
}

// Destination is where the data folder ends up.
func (r Request) Destination() string {
	return filepath.Join(r.NewBase, r.DocumentID)
}

// Result is delivered to the completion callback.
type Result struct {
	Request
	// Patterns are the rewrites to apply on the next save. Empty on error.
	Patterns Patterns
	// Moved is false when there was no data folder to move.
	Moved bool
	Err   error
}

// Worker runs relocations in the background.
type Worker struct {
	mover  Mover
	logger *slog.Logger
	wg     sync.WaitGroup
}

// NewWorker returns a worker using mover, or TreeMover when nil.
func NewWorker(mover Mover, logger *slog.Logger) *Worker {
	if mover == nil {
		mover = TreeMover{}
	}
	return &Worker{mover: mover, logger: logging.NewComponentLogger(logger, "relocation")}
}

// Check validates a request without touching the filesystem beyond stat calls.
func Check(req Request) error {
	if err := document.ValidateID(req.DocumentID); err != nil {
		return services.Wrap(services.ErrValidation, "relocation", "check", "cannot perform operation", err)
	}
	if !filepath.IsAbs(req.OldBase) || !filepath.IsAbs(req.NewBase) {
		return services.Wrap(services.ErrValidation, "relocation", "check", fmt.Sprintf("folders must be absolute: %q -> %q", req.OldBase, req.NewBase), nil)
	}
	if filepath.Clean(req.OldBase) == filepath.Clean(req.NewBase) {
		return services.Wrap(services.ErrValidation, "relocation", "check", "source and destination are the same folder", nil)
	}
	if _, err := os.Lstat(req.Destination()); err == nil {
		return &ConflictError{Path: req.Destination()}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return services.Wrap(services.ErrIO, "relocation", "check", req.Destination(), err)
	}
	return nil
}

// Start validates req and launches the move. A validation failure is
// returned synchronously and nothing runs. Otherwise done is called exactly
// once from the worker goroutine; progress receives whole percentages.
func (w *Worker) Start(ctx context.Context, req Request, progress func(percent int), done func(Result)) error {
	if err := Check(req); err != nil {
		return err
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		done(w.run(ctx, req, progress))
	}()
	return nil
}

// Wait blocks until every started move has delivered its result.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, req Request, progress func(int)) Result {
	res := Result{Request: req}
	src, dst := req.Source(), req.Destination()
	logger := w.logger.With(logging.String("source", src), logging.String("destination", dst))

	if _, err := os.Stat(src); errors.Is(err, fs.ErrNotExist) {
		logger.Info("no project data to move")
		res.Patterns = BuildPatterns(req.ProjectDir, req.OldBase, req.NewBase, req.DocumentID)
		return res
	}

	sampler := logging.NewProgressSampler(10)
	last := -1
	report := func(doneBytes, total int64) {
		pct := 100
		if total > 0 {
			pct = int(doneBytes * 100 / total)
		}
		if pct == last {
			return
		}
		last = pct
		if sampler.ShouldLog(pct) {
			logger.Info("moving project data", logging.Int(logging.FieldProgressPercent, pct))
		}
		if progress != nil {
			progress(pct)
		}
	}

	logger.Info("project data move started")
	if err := w.mover.Move(ctx, src, dst, report); err != nil {
		res.Err = services.Wrap(services.ErrIO, "relocation", "move", "moving project data failed", err)
		logging.ErrorWithContext(logger, "project data move failed", "relocation_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check free space and permissions of the destination"),
		)
		return res
	}
	res.Moved = true
	res.Patterns = BuildPatterns(req.ProjectDir, req.OldBase, req.NewBase, req.DocumentID)
	logger.Info("project data move finished", logging.Int("patterns", len(res.Patterns)))
	return res
}
