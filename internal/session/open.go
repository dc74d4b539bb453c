package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"splice/internal/archive"
	"splice/internal/config"
	"splice/internal/document"
	"splice/internal/history"
	"splice/internal/logging"
	"splice/internal/recovery"
	"splice/internal/scene"
	"splice/internal/services"
	"splice/internal/timeline"
)

// archiveDirName is the cache subfolder that holds extracted project archives.
const archiveDirName = "archives"

type openOptions struct {
	// source is read instead of the project path; used to load backups.
	source  string
	confirm bool
	// skipStale loads the file as it is on disk without offering autosaved
	// changes; used by revert and the reload after a relocation.
	skipStale bool
}

// Open loads the project at path and makes it the active document. Opening
// the path already bound to the active document does nothing.
func (c *Controller) Open(ctx context.Context, path string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.release()
	return c.openLocked(ctx, path, openOptions{confirm: true})
}

// OpenLast reopens the most recently used project, or starts a blank one
// when there is none.
func (c *Controller) OpenLast(ctx context.Context) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.release()
	if c.history != nil {
		last, ok, err := c.history.Last(ctx)
		if err != nil {
			logging.WarnWithContext(c.logger, "recent projects unavailable", "history_read_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "starting with a blank project"),
			)
		}
		if ok {
			if _, err := os.Stat(last.Path); err == nil {
				return c.openLocked(ctx, last.Path, openOptions{confirm: true})
			}
			c.logger.Info("last project no longer exists", logging.String(logging.FieldPath, last.Path))
		}
	}
	return c.newLocked(ctx, NewOptions{}, true)
}

// OpenBackup lets the Prompter pick one of the backups of projectPath and
// loads it as a modified document bound to projectPath. An empty
// projectPath uses the active document's path.
func (c *Controller) OpenBackup(ctx context.Context, projectPath string) error {
	if err := c.begin(); err != nil {
		return err
	}
	defer c.release()
	if projectPath == "" {
		if c.doc == nil || c.doc.URL == "" {
			return ErrNoPath
		}
		projectPath = c.doc.URL
	}
	path, err := absPath(projectPath)
	if err != nil {
		return err
	}
	if c.backups == nil {
		return services.Wrap(services.ErrUnsupported, "session", "open backup", "backups are disabled", nil)
	}
	list, err := c.backups.List(ctx, path)
	if err != nil {
		return fmt.Errorf("list backups: %w", err)
	}
	if len(list) == 0 {
		return services.Wrap(services.ErrNotFound, "session", "open backup", "no backups of "+path, nil)
	}
	chosen, ok := c.prompter.ChooseBackup(path, list)
	if !ok || chosen == "" {
		return ErrCanceled
	}
	return c.openLocked(ctx, path, openOptions{source: chosen, confirm: true})
}

// Revert discards unsaved changes by reloading the project from disk.
func (c *Controller) Revert(ctx context.Context) error {
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
	if c.doc.Modified && !c.prompter.ConfirmRevert(c.doc.Snapshot()) {
		return ErrCanceled
	}
	return c.reloadLocked(ctx)
}

// reloadLocked closes the document without saving and opens its file again.
func (c *Controller) reloadLocked(ctx context.Context) error {
	path := c.doc.URL
	if _, err := c.closeLocked(ctx, CloseOptions{}); err != nil {
		return err
	}
	return c.openLocked(ctx, path, openOptions{skipStale: true})
}

func (c *Controller) openLocked(ctx context.Context, path string, opts openOptions) error {
	ctx = services.WithOperation(ctx, "open")
	path, err := absPath(path)
	if err != nil {
		return err
	}
	logger := logging.WithContext(ctx, c.logger).With(logging.String(logging.FieldPath, path))
	if opts.source == "" && c.doc != nil && c.doc.URL == path {
		logger.Debug("project already open")
		return nil
	}

	if opts.source == "" {
		info, err := os.Stat(path)
		if err != nil {
			return services.Wrap(services.ErrIO, "session", "open", path, err)
		}
		if info.IsDir() {
			return services.Wrap(services.ErrValidation, "session", "open", path+" is a directory", nil)
		}
		kind, err := c.unpacker.Detect(path)
		if err != nil {
			return services.Wrap(services.ErrIO, "session", "open", "detect file type", err)
		}
		if kind != archive.None {
			project, err := c.unpackLocked(ctx, path, kind)
			if err != nil {
				return err
			}
			return c.openLocked(ctx, project, opts)
		}
	}

	proceed, err := c.closeLocked(ctx, CloseOptions{ConfirmSave: opts.confirm})
	if err != nil {
		return err
	}
	if !proceed {
		return ErrCanceled
	}
	c.setState(Loading)

	source := path
	fromBackup := opts.source != ""
	if fromBackup {
		source = opts.source
	}
	adopt := c.detectStale(ctx, path, fromBackup || opts.skipStale)
	if adopt != nil {
		source = adopt.Path
	}
	recovered := adopt != nil

	g, tl, err := c.load(ctx, source, false)
	lenient := false
	if err != nil && services.Recoverable(err) {
		var choice loadChoice
		g, tl, choice, err = c.resolveOpenFailure(ctx, path, source, err)
		lenient = choice.lenient
		if choice.source != source {
			source = choice.source
			fromBackup = true
		}
	}
	if adopt != nil && (err != nil || source != adopt.Path) {
		c.detector.Discard(adopt)
		adopt = nil
		recovered = false
	}
	if err != nil {
		return c.fallbackLocked(ctx, path, err)
	}

	doc := document.FromGraph(g, c.clock.Now())
	doc.URL = path
	doc.SameProjectFolder = c.cfg.Project.SameProjectFolder
	doc.Modified = recovered || fromBackup || lenient
	doc.TempFolder = c.resolveTempFolder(doc)
	doc.BackupRequested = g.Upgraded || g.Repaired || lenient
	if info, err := os.Stat(path); err == nil {
		doc.LoadedModTime = info.ModTime()
	}
	doc.Companion = c.companionFor(ctx, path, adopt)

	c.activate(services.WithDocumentID(ctx, doc.ID), doc, tl)
	switch {
	case recovered:
		c.advise(ctx, "Recovered unsaved changes of "+doc.Description()+" from the autosave file.")
	case doc.BackupRequested:
		c.advise(ctx, doc.Description()+" was upgraded or repaired while loading; a backup is kept on the next save.")
	}
	c.recordHistory(ctx, doc)
	return nil
}

// detectStale offers the newest stale companion of path and discards every
// candidate that was not chosen. The returned candidate, if any, is still
// locked.
func (c *Controller) detectStale(ctx context.Context, path string, skip bool) *recovery.Candidate {
	if skip {
		return nil
	}
	res, err := c.detector.Find(path)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "stale companion scan failed", "stale_scan_failed",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "autosaved changes from a previous run are not offered"),
		)
		return nil
	}
	var chosen *recovery.Candidate
	if res.Offer != nil {
		c.setState(RecoveryPrompt)
		accept := c.prompter.OfferRecovery(RecoveryOffer{Target: path, Companion: res.Offer.Path, ModTime: res.Offer.ModTime})
		c.setState(Loading)
		if accept {
			chosen = res.Offer
		}
	}
	if chosen != nil {
		c.detector.Discard(res.Rest()...)
	} else {
		c.detector.Discard(res.Stale...)
	}
	return chosen
}

type loadChoice struct {
	source  string
	lenient bool
}

// resolveOpenFailure asks the Prompter how to continue after a parse or
// structural failure until a load succeeds or the user gives up. A lenient
// parse is tried at most once, and each backup at most once.
func (c *Controller) resolveOpenFailure(ctx context.Context, path, source string, cause error) (*scene.Graph, *timeline.Timeline, loadChoice, error) {
	choice := loadChoice{source: source}
	lenientTried := false
	triedBackups := make(map[string]bool)
	err := cause
	for err != nil && services.Recoverable(err) {
		failure := OpenFailure{Path: path, Err: err, LenientTried: lenientTried}
		if c.backups != nil {
			list, lerr := c.backups.List(ctx, path)
			if lerr != nil {
				c.logger.Warn("backup listing failed", logging.Error(lerr))
			}
			failure.Backups = list
		}
		c.setState(RecoveryPrompt)
		answer := c.prompter.OpenFailed(failure)
		c.setState(Loading)

		switch answer.Action {
		case OpenRecover:
			if lenientTried {
				return nil, nil, choice, err
			}
			lenientTried = true
			g, tl, lerr := c.load(ctx, choice.source, true)
			if lerr == nil {
				choice.lenient = true
				return g, tl, choice, nil
			}
			err = lerr
		case OpenFromBackup:
			if answer.BackupPath == "" || triedBackups[answer.BackupPath] {
				return nil, nil, choice, err
			}
			triedBackups[answer.BackupPath] = true
			choice = loadChoice{source: answer.BackupPath}
			g, tl, lerr := c.load(ctx, choice.source, false)
			if lerr == nil {
				return g, tl, choice, nil
			}
			err = lerr
		default:
			return nil, nil, choice, err
		}
	}
	return nil, nil, choice, err
}

// load reads, parses and builds the scene stored at source.
func (c *Controller) load(ctx context.Context, source string, lenient bool) (*scene.Graph, *timeline.Timeline, error) {
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, nil, services.Wrap(services.ErrIO, "session", "read project", source, err)
	}
	g, warnings, err := scene.Parse(string(data), lenient)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		c.logger.Warn("scene loaded with warnings",
			logging.String(logging.FieldEventType, "scene_warning"),
			logging.String(logging.FieldPath, source),
			logging.String("warning", w.String()),
		)
	}
	tl, err := c.builder.Build(g, g.Profile, c.progress(ctx))
	if err != nil {
		return nil, nil, err
	}
	return g, tl, nil
}

// fallbackLocked reports a failed open and leaves a blank document active.
func (c *Controller) fallbackLocked(ctx context.Context, path string, cause error) error {
	c.setState(NoDocument)
	logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "project could not be opened", "open_failed",
		logging.String(logging.FieldPath, path),
		logging.Error(cause),
		logging.String(logging.FieldImpact, "a blank project was created instead"),
		logging.String(logging.FieldErrorHint, "restore the file from a backup or the autosave folder"),
	)
	c.advise(ctx, fmt.Sprintf("Could not open %s: %v", filepath.Base(path), cause))
	if err := c.newDocumentLocked(ctx, c.defaultSettings("")); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (c *Controller) companionFor(ctx context.Context, path string, adopt *recovery.Candidate) *recovery.Companion {
	if adopt != nil {
		comp, err := recovery.Adopt(adopt, path)
		if err == nil {
			return comp
		}
		c.logger.Warn("cannot reuse recovered companion", logging.Error(err))
		c.detector.Discard(adopt)
	}
	comp, err := recovery.Create(c.cfg.Paths.StaleDir, path)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, c.logger), "autosave companion unavailable", "companion_create_failed",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "unsaved changes will not be recoverable after a crash"),
		)
		return nil
	}
	return comp
}

// unpackLocked extracts an archived project into its own folder under the
// cache directory and returns the project file inside it. Each archive maps
// to one folder, which is replaced on every extraction unless the active
// document was loaded from it.
func (c *Controller) unpackLocked(ctx context.Context, path string, kind archive.Kind) (string, error) {
	name := filepath.Base(path)
	for _, ext := range []string{".tar.gz", ".tgz", ".zip", ".gz"} {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			name = name[:len(name)-len(ext)]
			break
		}
	}
	dest := filepath.Join(c.cfg.Paths.CacheDir, archiveDirName,
		name+"-"+uuid.NewSHA1(uuid.NameSpaceURL, []byte(path)).String()[:8])
	if c.doc != nil && within(dest, c.doc.URL) {
		return c.doc.URL, nil
	}
	if err := os.RemoveAll(dest); err != nil {
		return "", services.Wrap(services.ErrIO, "session", "unpack", dest, err)
	}
	project, err := c.unpacker.Extract(ctx, path, dest, config.ProjectExtension)
	if err != nil {
		return "", fmt.Errorf("unpack %s: %w", filepath.Base(path), err)
	}
	c.logger.Info("project archive extracted",
		logging.String("archive", path),
		logging.String("kind", kind.String()),
		logging.String(logging.FieldPath, project),
	)
	return project, nil
}

func within(dir, path string) bool {
	if path == "" {
		return false
	}
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

func (c *Controller) recordHistory(ctx context.Context, doc *document.Document) {
	if c.history == nil || doc.URL == "" {
		return
	}
	err := c.history.RecordOpened(ctx, history.Project{
		Path:       doc.URL,
		Title:      doc.Description(),
		DocumentID: doc.ID,
		Profile:    doc.Property(document.KeyProfile),
		OpenedAt:   c.clock.Now(),
	})
	if err != nil {
		logging.WarnWithContext(c.logger, "recent projects not updated", "history_write_failed",
			logging.String(logging.FieldPath, doc.URL),
			logging.Error(err),
		)
	}
}
