package session

import (
	"context"

	"splice/internal/logging"
	"splice/internal/notifications"
	"splice/internal/relocation"
	"splice/internal/services"
)

// RelocateTempFolder moves the document's data folder under newBase in the
// background. The request is validated before returning; the outcome is
// published as relocation_finished.
func (c *Controller) RelocateTempFolder(ctx context.Context, newBase string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.release()
	if c.doc == nil {
		return ErrNoDocument
	}
	abs, err := absPath(newBase)
	if err != nil {
		return err
	}
	return c.startRelocationLocked(ctx, abs)
}

func (c *Controller) startRelocationLocked(ctx context.Context, newBase string) error {
	doc := c.doc
	if c.isRelocating() {
		return services.Wrap(services.ErrBusy, "session", "relocate", "a relocation is already running", nil)
	}
	req := relocation.Request{
		DocumentID: doc.ID,
		OldBase:    doc.TempFolder,
		NewBase:    newBase,
		ProjectDir: doc.ProjectDir(),
	}
	gen := c.docGen
	bg := services.WithOperation(context.WithoutCancel(ctx), "relocate")
	progress := func(pct int) {
		c.publish(bg, notifications.EventRelocationProgress, notifications.Payload{
			"percent":     pct,
			"destination": req.Destination(),
		})
	}
	done := func(res relocation.Result) {
		c.finishRelocation(bg, gen, res)
	}
	if err := c.relocator.Start(bg, req, progress, done); err != nil {
		return err
	}
	c.setRelocating(true)
	logging.WithContext(bg, c.logger).Info("project data relocation started",
		logging.String("source", req.Source()),
		logging.String("destination", req.Destination()),
	)
	return nil
}

// finishRelocation applies a completed move. The data folder pointer only
// changes on success and only for the document that started the move. A
// bound document is saved with the path rewrites and reloaded so the live
// timeline sees the new locations.
func (c *Controller) finishRelocation(ctx context.Context, gen uint64, res relocation.Result) {
	c.mu.Lock()
	defer c.release()
	c.setRelocating(false)
	logger := logging.WithContext(ctx, c.logger)

	payload := notifications.Payload{"destination": res.Destination(), "moved": res.Moved}
	if res.Err != nil {
		payload["error"] = res.Err.Error()
	}
	c.publish(ctx, notifications.EventRelocationFinished, payload)
	if res.Err != nil {
		return
	}

	doc := c.doc
	if doc == nil || gen != c.docGen {
		logger.Info("relocated document is no longer active", logging.String("destination", res.Destination()))
		return
	}
	doc.TempFolder = res.NewBase
	if doc.URL == "" {
		return
	}

	c.patterns = res.Patterns
	err := c.saveFileAs(ctx, doc.URL, saveOptions{})
	c.patterns = nil
	if err != nil {
		logging.ErrorWithContext(logger, "project not updated after relocation", "relocation_save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "proxy references in the project file still point to the old folder"),
			logging.String(logging.FieldErrorHint, "save the project again"),
		)
		return
	}
	if res.Patterns.Empty() {
		return
	}
	if err := c.reloadLocked(ctx); err != nil {
		logging.ErrorWithContext(logger, "project reload after relocation failed", "relocation_reload_failed",
			logging.Error(err),
		)
	}
}
