package session

import (
	"context"

	"splice/internal/document"
	"splice/internal/logging"
	"splice/internal/notifications"
	"splice/internal/services"
)

// Close closes the active document. With ConfirmSave a modified document
// goes through the Prompter first; cancelling returns ErrCanceled and keeps
// the document.
func (c *Controller) Close(ctx context.Context, opts CloseOptions) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.release()
	proceed, err := c.closeLocked(ctx, opts)
	if err != nil {
		return err
	}
	if !proceed {
		return ErrCanceled
	}
	return nil
}

// closeLocked reports false when the user cancelled.
func (c *Controller) closeLocked(ctx context.Context, opts CloseOptions) (bool, error) {
	doc := c.doc
	if doc == nil {
		return true, nil
	}
	ctx = services.WithDocumentID(services.WithOperation(ctx, "close"), doc.ID)
	logger := logging.WithContext(ctx, c.logger)
	sessionSave := opts.Quitting && opts.SessionSave

	if doc.Modified && opts.ConfirmSave && !sessionSave {
		proceed, err := c.resolveUnsavedLocked(ctx, doc)
		if err != nil || !proceed {
			return false, err
		}
	}

	c.setState(Closing)
	defer c.releaseTimeline()
	c.publish(ctx, notifications.EventDocumentWillClose, notifications.Payload{
		"path":        doc.URL,
		"document_id": doc.ID,
	})
	if c.scheduler != nil {
		c.scheduler.Stop()
	}
	c.bindMonitor("")

	if sessionSave {
		c.keepForSession(ctx, doc)
		return true, nil
	}

	if doc.Companion != nil {
		if err := doc.Companion.Release(); err != nil {
			logger.Warn("companion cleanup failed", logging.Error(err))
		}
	}
	if c.thumbs != nil {
		if err := c.thumbs.Clear(doc.UUID); err != nil {
			logger.Warn("thumbnail cache cleanup failed", logging.Error(err))
		}
	}
	c.doc = nil
	c.patterns = nil
	c.setState(NoDocument)
	logger.Info("document closed", logging.String(logging.FieldPath, doc.URL))
	return true, nil
}

// keepForSession leaves the document's unsaved state in its companion for
// the next start. The document stays in Closing.
func (c *Controller) keepForSession(ctx context.Context, doc *document.Document) {
	logger := logging.WithContext(ctx, c.logger)
	comp := doc.Companion
	if comp == nil {
		return
	}
	if doc.Modified {
		if text, err := c.serialize(doc, doc.ProjectDir()); err != nil {
			logger.Warn("session save serialization failed", logging.Error(err))
		} else if err := comp.Write([]byte(text)); err != nil {
			logger.Warn("session save write failed", logging.Error(err))
		}
	}
	if err := comp.Detach(); err != nil {
		logger.Warn("companion unlock failed", logging.Error(err))
	}
	logger.Info("document kept for session restore", logging.String(logging.FieldCompanion, comp.Path()))
}

// resolveUnsavedLocked asks what to do with the unsaved edits of doc and
// saves them when asked to. It reports false when the user cancelled.
func (c *Controller) resolveUnsavedLocked(ctx context.Context, doc *document.Document) (bool, error) {
	switch c.prompter.ConfirmClose(doc.Snapshot()) {
	case CloseSave:
		path := doc.URL
		if path == "" {
			chosen, ok := c.prompter.SavePath(doc.Snapshot())
			if !ok {
				return false, nil
			}
			abs, err := absPath(chosen)
			if err != nil {
				return false, err
			}
			path = abs
		}
		if err := c.saveFileAs(ctx, path, saveOptions{}); err != nil {
			return false, err
		}
		return true, nil
	case CloseDiscard:
		return true, nil
	default:
		logging.WithContext(ctx, c.logger).Info("unsaved changes kept, operation cancelled")
		return false, nil
	}
}
