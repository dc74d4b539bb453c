package session

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"splice/internal/archive"
	"splice/internal/autosave"
	"splice/internal/config"
	"splice/internal/document"
	"splice/internal/logging"
	"splice/internal/notifications"
	"splice/internal/recovery"
	"splice/internal/relocation"
	"splice/internal/timeline"
	"splice/internal/watch"
)

// Controller owns the active document.
type Controller struct {
	cfg       *config.Config
	logger    *slog.Logger
	bus       *notifications.Bus
	prompter  Prompter
	settings  SettingsNegotiator
	builder   Builder
	unpacker  Unpacker
	history   History
	backups   Backups
	thumbs    Thumbnails
	detector  *recovery.Detector
	relocator *relocation.Worker
	scheduler *autosave.Scheduler
	monitor   *watch.Monitor
	clock     autosave.Clock

	mover      relocation.Mover
	watchQuiet time.Duration
	watchOn    bool

	// mu is held for the whole of every lifecycle operation.
	mu       sync.Mutex
	doc      *document.Document
	tl       *timeline.Timeline
	patterns relocation.Patterns
	docGen   uint64

	viewMu     sync.RWMutex
	state      State
	relocating bool
	view       *document.Snapshot
	viewTL     *timeline.Timeline
}

// Option configures a Controller.
type Option func(*Controller)

// WithPrompter sets the prompt handler. The default is a zero Headless.
func WithPrompter(p Prompter) Option { return func(c *Controller) { c.prompter = p } }

// WithSettings sets the new-project settings dialog.
func WithSettings(n SettingsNegotiator) Option { return func(c *Controller) { c.settings = n } }

// WithBuilder replaces the timeline builder.
func WithBuilder(b Builder) Option { return func(c *Controller) { c.builder = b } }

// WithUnpacker replaces the archive unpacker.
func WithUnpacker(u Unpacker) Option { return func(c *Controller) { c.unpacker = u } }

// WithMover replaces the folder mover used by relocation.
func WithMover(m relocation.Mover) Option { return func(c *Controller) { c.mover = m } }

// WithHistory records opened projects and enables OpenLast.
func WithHistory(h History) Option { return func(c *Controller) { c.history = h } }

// WithBackups enables pre-save backups and OpenBackup.
func WithBackups(b Backups) Option { return func(c *Controller) { c.backups = b } }

// WithThumbnails attaches the thumbnail cache.
func WithThumbnails(t Thumbnails) Option { return func(c *Controller) { c.thumbs = t } }

// WithBus publishes session events on b.
func WithBus(b *notifications.Bus) Option { return func(c *Controller) { c.bus = b } }

// WithClock replaces the clock used for identities and autosave timing.
func WithClock(clock autosave.Clock) Option { return func(c *Controller) { c.clock = clock } }

// WithWatcher reports external modifications of the bound project file.
// quiet <= 0 uses watch.DefaultQuietPeriod.
func WithWatcher(quiet time.Duration) Option {
	return func(c *Controller) {
		c.watchOn = true
		c.watchQuiet = quiet
	}
}

// NewController builds an idle controller with no active document.
func NewController(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Controller, error) {
	if cfg == nil {
		return nil, fmt.Errorf("session: config is nil")
	}
	c := &Controller{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "session"),
		clock:  autosave.SystemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.prompter == nil {
		c.prompter = Headless{}
	}
	if c.builder == nil {
		c.builder = timeline.NewBuilder(logger)
	}
	if c.unpacker == nil {
		c.unpacker = archive.Unpacker{}
	}
	c.detector = recovery.NewDetector(cfg.Paths.StaleDir, logger)
	c.relocator = relocation.NewWorker(c.mover, logger)
	if cfg.Autosave.Enabled {
		c.scheduler = autosave.New(c.AutoSave, autosave.Options{
			Debounce:   cfg.AutosaveDebounce(),
			ForceAfter: cfg.AutosaveForceAfter(),
			Clock:      c.clock,
			Logger:     logger,
		})
	}
	if c.watchOn {
		monitor, err := watch.NewMonitor(c.onExternalChange, c.watchQuiet, logger)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
		c.monitor = monitor
		monitor.Start(context.Background())
	}
	return c, nil
}

// begin takes the controller for a public operation.
func (c *Controller) begin() error {
	if !c.mu.TryLock() {
		return fmt.Errorf("%w: another project operation is in progress", ErrBusy)
	}
	return nil
}

// release publishes the read-only view and unlocks.
func (c *Controller) release() {
	c.viewMu.Lock()
	if c.doc != nil {
		snap := c.doc.Snapshot()
		c.view = &snap
	} else {
		c.view = nil
	}
	c.viewTL = c.tl
	c.viewMu.Unlock()
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.viewMu.Lock()
	c.state = s
	c.viewMu.Unlock()
}

func (c *Controller) lifecycleState() State {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.state
}

func (c *Controller) setRelocating(v bool) {
	c.viewMu.Lock()
	c.relocating = v
	c.viewMu.Unlock()
}

func (c *Controller) isRelocating() bool {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.relocating
}

// State returns the current lifecycle state. It never blocks on a running operation.
func (c *Controller) State() State {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	if c.state == Active && c.relocating {
		return Relocating
	}
	return c.state
}

// Current returns a snapshot of the active document as of the last
// completed operation.
func (c *Controller) Current() (document.Snapshot, bool) {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	if c.view == nil {
		return document.Snapshot{}, false
	}
	return *c.view, true
}

// Timeline returns the live timeline of the active document, or nil.
func (c *Controller) Timeline() *timeline.Timeline {
	c.viewMu.RLock()
	defer c.viewMu.RUnlock()
	return c.viewTL
}

// Wait blocks until background relocation and autosave work has finished.
func (c *Controller) Wait() {
	c.relocator.Wait()
	if c.scheduler != nil {
		c.scheduler.Wait()
	}
}

// Shutdown closes the document for process exit and stops background work.
// With sessionSave the document's companion is kept for the next start.
func (c *Controller) Shutdown(ctx context.Context, sessionSave bool) error {
	c.mu.Lock()
	_, err := c.closeLocked(ctx, CloseOptions{Quitting: true, SessionSave: sessionSave})
	c.release()

	c.relocator.Wait()
	if c.scheduler != nil {
		c.scheduler.Stop()
		c.scheduler.Wait()
	}
	if c.monitor != nil {
		c.monitor.Stop()
	}
	return err
}

// activate installs doc as the active document.
func (c *Controller) activate(ctx context.Context, doc *document.Document, tl *timeline.Timeline) {
	c.doc = doc
	c.tl = tl
	c.docGen++
	c.setState(Active)
	if c.scheduler != nil {
		c.scheduler.Start()
	}
	c.bindMonitor(doc.URL)
	logging.WithContext(ctx, c.logger).Info("document opened",
		logging.String(logging.FieldEventType, "document_opened"),
		logging.String(logging.FieldDocumentID, doc.ID),
		logging.String(logging.FieldDocumentUUID, doc.UUID.String()),
		logging.String(logging.FieldPath, doc.URL),
		logging.Int("tracks", tl.TrackCount()),
	)
	c.publish(ctx, notifications.EventDocumentOpened, notifications.Payload{
		"path":        doc.URL,
		"document_id": doc.ID,
		"description": doc.Description(),
	})
}

func (c *Controller) releaseTimeline() {
	if c.tl != nil {
		c.tl.Release()
		c.tl = nil
	}
}

func (c *Controller) bindMonitor(path string) {
	if c.monitor == nil {
		return
	}
	if err := c.monitor.Bind(path); err != nil {
		logging.WarnWithContext(c.logger, "cannot watch project file", "watch_bind_failed",
			logging.String(logging.FieldPath, path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "external changes to the project will not be reported"),
		)
	}
}

func (c *Controller) onExternalChange(change watch.Change) {
	c.mu.Lock()
	defer c.release()
	doc := c.doc
	if doc == nil || doc.URL != change.Path {
		return
	}
	if !change.Removed && !change.ModTime.After(doc.LoadedModTime) {
		return
	}
	logging.WarnWithContext(c.logger, "project file changed outside splice", "external_change",
		logging.String(logging.FieldPath, change.Path),
		logging.Bool("removed", change.Removed),
		logging.String(logging.FieldImpact, "saving will overwrite the external change"),
	)
	c.publish(context.Background(), notifications.EventExternalChange, notifications.Payload{
		"path":    change.Path,
		"removed": change.Removed,
	})
}

func (c *Controller) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	c.bus.Publish(ctx, event, payload)
}

func (c *Controller) progress(ctx context.Context) timeline.ProgressFunc {
	return func(current, total int) {
		c.publish(ctx, notifications.EventLoadProgress, notifications.Payload{
			"current": current,
			"total":   total,
		})
	}
}

func (c *Controller) folderPolicy() document.FolderPolicy {
	policy := document.FolderPolicy{
		SameProjectFolder: c.cfg.Project.SameProjectFolder,
		CacheDir:          c.cfg.Paths.CacheDir,
	}
	if c.cfg.Project.CustomProjectFolder {
		policy.CustomFolder = c.cfg.Paths.ProjectDir
	}
	return policy
}

// resolveTempFolder honors a storagefolder property and falls back to the
// configured policy.
func (c *Controller) resolveTempFolder(doc *document.Document) string {
	if sf := strings.TrimSpace(doc.Property(document.KeyStorageFolder)); sf != "" {
		if !filepath.IsAbs(sf) && doc.ProjectDir() != "" {
			sf = filepath.Join(doc.ProjectDir(), sf)
		}
		if filepath.IsAbs(sf) {
			return filepath.Clean(sf)
		}
	}
	return c.folderPolicy().Resolve(doc.URL)
}

// storageFolderValue is the storagefolder property for a save to path. It is
// empty when the policy would pick the same folder on load.
func (c *Controller) storageFolderValue(doc *document.Document, path string) string {
	if doc.TempFolder == "" || filepath.Clean(doc.TempFolder) == filepath.Clean(c.folderPolicy().Resolve(path)) {
		return ""
	}
	rel, err := filepath.Rel(filepath.Dir(path), doc.TempFolder)
	if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return rel
	}
	return doc.TempFolder
}

func thumbKeys(tl *timeline.Timeline) []string {
	var keys []string
	for producer, frames := range tl.ThumbKeys() {
		for _, f := range frames {
			keys = append(keys, producer+"#"+strconv.Itoa(f))
		}
	}
	slices.Sort(keys)
	return keys
}

func absPath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("%w: empty path", ErrNoPath)
	}
	abs, err := config.ExpandPath(path)
	if err != nil {
		return "", err
	}
	return abs, nil
}
