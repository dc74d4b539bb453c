package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"splice/internal/autosave"
	"splice/internal/document"
	"splice/internal/fileutil"
	"splice/internal/logging"
	"splice/internal/notifications"
	"splice/internal/scene"
	"splice/internal/services"
)

type saveOptions struct {
	// copy writes the file without binding the document to it.
	copy bool
	// relocate offers to move the data folder next to the new path.
	relocate bool
}

// Save writes the document to its bound path.
func (c *Controller) Save(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.release()
	if c.doc == nil {
		return ErrNoDocument
	}
	if c.doc.URL == "" {
		return ErrNoPath
	}
	return c.saveFileAs(ctx, c.doc.URL, saveOptions{relocate: true})
}

// SaveAs writes the document to path and binds it there.
func (c *Controller) SaveAs(ctx context.Context, path string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.release()
	if c.doc == nil {
		return ErrNoDocument
	}
	abs, err := absPath(path)
	if err != nil {
		return err
	}
	if abs != c.doc.URL && !c.confirmOverwrite(abs) {
		return ErrCanceled
	}
	return c.saveFileAs(ctx, abs, saveOptions{relocate: true})
}

// SaveCopy writes the document to path. The document stays bound to its
// current path and keeps its modified flag.
func (c *Controller) SaveCopy(ctx context.Context, path string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.release()
	if c.doc == nil {
		return ErrNoDocument
	}
	abs, err := absPath(path)
	if err != nil {
		return err
	}
	if abs == c.doc.URL {
		return services.Wrap(services.ErrValidation, "session", "save copy", "copy target is the project file itself", nil)
	}
	if !c.confirmOverwrite(abs) {
		return ErrCanceled
	}
	return c.saveFileAs(ctx, abs, saveOptions{copy: true})
}

func (c *Controller) confirmOverwrite(path string) bool {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return true
	}
	return c.prompter.ConfirmOverwrite(path)
}

// AutoSave writes the document to its companion. It is the autosave
// scheduler's callback and reports autosave.ErrBusy instead of waiting when
// another operation holds the controller.
func (c *Controller) AutoSave(ctx context.Context) error {
	if !c.mu.TryLock() {
		return autosave.ErrBusy
	}
	defer c.release()
	doc := c.doc
	if doc == nil || doc.Companion == nil || c.tl == nil || !doc.Modified {
		return nil
	}
	ctx = services.WithDocumentID(services.WithOperation(ctx, "autosave"), doc.ID)
	text, err := c.serialize(doc, doc.ProjectDir())
	if err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	if !c.autosaveTextUsable(ctx, doc, text) {
		return nil
	}
	if err := doc.Companion.Write([]byte(text)); err != nil {
		return err
	}
	logging.WithContext(ctx, c.logger).Debug("autosave written",
		logging.String(logging.FieldCompanion, doc.Companion.Path()),
		logging.Int("bytes", len(text)),
	)
	return nil
}

// autosaveTextUsable rejects serialized text without any track element. A
// write like that would replace the last good companion with an empty
// timeline.
func (c *Controller) autosaveTextUsable(ctx context.Context, doc *document.Document, text string) bool {
	if strings.Contains(text, scene.TrackMarker) {
		return true
	}
	logging.WarnWithContext(logging.WithContext(ctx, c.logger), "autosave skipped: serialized project has no tracks", "autosave_corrupt",
		logging.String(logging.FieldPath, doc.URL),
		logging.String(logging.FieldImpact, "the previous autosave is kept"),
		logging.String(logging.FieldErrorHint, "save the project manually and check the timeline"),
	)
	c.publish(ctx, notifications.EventCorruptionWarning, notifications.Payload{
		"message": "Autosave skipped because the project data looks corrupted.",
		"path":    doc.URL,
	})
	return false
}

// serialize renders the active timeline with the document's current
// properties. Pending relocation patterns are applied.
func (c *Controller) serialize(doc *document.Document, baseDir string) (string, error) {
	return c.serializeWith(doc.Overlay(), baseDir)
}

func (c *Controller) serializeWith(overlay *scene.Overlay, baseDir string) (string, error) {
	if c.tl == nil || c.tl.Released() {
		return "", errors.New("no live timeline")
	}
	text, err := scene.Serialize(c.tl.Graph(), baseDir, overlay)
	if err != nil {
		return "", err
	}
	return c.patterns.Apply(text), nil
}

// saveOverlay returns the properties written by an explicit save to path.
func (c *Controller) saveOverlay(ctx context.Context, doc *document.Document, path string) (*scene.Overlay, []string) {
	overlay := doc.Overlay()
	props := overlay.Properties
	if hash, err := c.tl.Hash(); err == nil {
		props.Set(document.KeyTimelineHash, hash)
	} else {
		logging.WithContext(ctx, c.logger).Warn("timeline hash unavailable", logging.Error(err))
	}
	keys := thumbKeys(c.tl)
	if len(keys) > 0 {
		props.Set(document.KeyThumbKeys, strings.Join(keys, ";"))
	} else {
		props.Delete(document.KeyThumbKeys)
	}
	if folder := c.storageFolderValue(doc, path); folder != "" {
		props.Set(document.KeyStorageFolder, folder)
	} else {
		props.Delete(document.KeyStorageFolder)
	}
	props.Set(document.KeyVersion, scene.CurrentVersion)
	return overlay, keys
}

// saveFileAs is the single write path for Save, SaveAs and SaveCopy. The
// file is replaced atomically; on failure neither the file nor the document
// changes.
func (c *Controller) saveFileAs(ctx context.Context, path string, opts saveOptions) error {
	doc := c.doc
	if doc == nil {
		return ErrNoDocument
	}
	if c.tl == nil {
		return services.Wrap(services.ErrValidation, "session", "save", "document has no live timeline", nil)
	}
	ctx = services.WithDocumentID(services.WithOperation(ctx, "save"), doc.ID)
	logger := logging.WithContext(ctx, c.logger).With(logging.String(logging.FieldPath, path))

	previous := c.lifecycleState()
	c.setState(Saving)
	defer c.setState(previous)

	overlay, keys := c.saveOverlay(ctx, doc, path)
	text, err := c.serializeWith(overlay, filepath.Dir(path))
	if err != nil {
		return fmt.Errorf("serialize project: %w", err)
	}

	if !opts.copy && c.backups != nil {
		if b, ok, err := c.backups.Create(ctx, path, doc.ID); err != nil {
			logging.WarnWithContext(logger, "backup before save failed", "backup_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "the previous version of the project is not kept"),
			)
		} else if ok {
			logger.Info("previous version backed up", logging.String("backup", b.BackupPath))
		}
	}

	if err := fileutil.WriteFileAtomic(path, []byte(text), 0o644); err != nil {
		logging.ErrorWithContext(logger, "project save failed", "save_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the project on disk is unchanged"),
			logging.String(logging.FieldErrorHint, "check that the folder exists and is writable"),
		)
		return services.Wrap(services.ErrIO, "session", "save", path, err)
	}
	if opts.copy {
		logger.Info("project copy saved")
		return nil
	}

	rebound := doc.URL != path
	doc.Properties = overlay.Properties
	doc.URL = path
	doc.Modified = false
	doc.BackupRequested = false
	if info, err := os.Stat(path); err == nil {
		doc.LoadedModTime = info.ModTime()
	}
	if doc.Companion != nil {
		if err := doc.Companion.Retarget(path); err != nil {
			logger.Warn("companion retarget failed", logging.Error(err))
		}
		if err := doc.Companion.Clear(); err != nil {
			logger.Warn("companion cleanup failed", logging.Error(err))
		}
	}
	if c.scheduler != nil {
		c.scheduler.MarkSaved()
	}
	if c.thumbs != nil {
		if removed, err := c.thumbs.Retain(doc.UUID, keys); err != nil {
			logger.Warn("thumbnail cache prune failed", logging.Error(err))
		} else if removed > 0 {
			logger.Debug("thumbnail cache pruned", logging.Int("removed", removed))
		}
	}
	if rebound {
		c.bindMonitor(path)
		c.recordHistory(ctx, doc)
	}
	logger.Info("project saved", logging.Bool("rebound", rebound))

	if opts.relocate {
		c.relocateAfterSave(ctx, doc)
	}
	return nil
}

// relocateAfterSave offers to move the data folder beside the project when
// the same-folder policy puts it somewhere else than it is now.
func (c *Controller) relocateAfterSave(ctx context.Context, doc *document.Document) {
	if !doc.SameProjectFolder || c.isRelocating() {
		return
	}
	target := c.folderPolicy().Resolve(doc.URL)
	if filepath.Clean(target) == filepath.Clean(doc.TempFolder) {
		return
	}
	if !c.prompter.ConfirmRelocation(doc.TempFolder, target) {
		return
	}
	if err := c.startRelocationLocked(ctx, target); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "project data not moved", "relocation_rejected",
			logging.Error(err),
			logging.String(logging.FieldImpact, "project data stays in "+doc.TempFolder),
		)
	}
}
