package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"splice/internal/backup"
	"splice/internal/config"
	"splice/internal/history"
	"splice/internal/logging"
	"splice/internal/notifications"
	"splice/internal/session"
	"splice/internal/thumbcache"
)

const historyLockTimeout = 5 * time.Second

type globalFlags struct {
	config  string
	yes     bool
	noInput bool
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error

	// terminal reports whether prompts can be shown.
	terminal func() bool
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{
		flags:    flags,
		terminal: stdioIsTerminal,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.flags != nil {
			path = strings.TrimSpace(c.flags.config)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) interactive() bool {
	if c.flags != nil && c.flags.noInput {
		return false
	}
	return c.terminal != nil && c.terminal()
}

func stdioIsTerminal() bool {
	for _, f := range []*os.File{os.Stdin, os.Stdout} {
		fd := f.Fd()
		if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
			return false
		}
	}
	return true
}

// answers are the prompt replies used when no terminal is attached.
type answers struct {
	// recover accepts stale companions and allows a lenient parse.
	recover bool
	// newestBackup picks the newest backup whenever one is asked for.
	newestBackup bool
}

// workspace is everything one command needs to drive a project.
type workspace struct {
	cfg        *config.Config
	logger     *slog.Logger
	history    *history.Store
	thumbs     *thumbcache.Cache
	bus        *notifications.Bus
	backups    *backup.Manager
	controller *session.Controller

	unsubscribe func()
}

func (c *commandContext) openWorkspace(cmd *cobra.Command, a answers) (*workspace, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: "*.log",
		Exclude: []string{filepath.Join(cfg.Paths.LogDir, logging.LogFileName)},
	})

	openCtx, cancel := context.WithTimeout(cmd.Context(), historyLockTimeout)
	store, err := history.Open(openCtx, cfg.HistoryDBPath())
	cancel()
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	thumbs, err := thumbcache.Open(cfg.ThumbnailDBPath())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open thumbnail cache: %w", err)
	}

	bus := notifications.NewBus(notifications.NewService(cfg), logger)
	ws := &workspace{
		cfg:         cfg,
		logger:      logger,
		history:     store,
		thumbs:      thumbs,
		bus:         bus,
		unsubscribe: bus.Subscribe(eventPrinter(cmd.ErrOrStderr())),
	}

	opts := []session.Option{
		session.WithHistory(store),
		session.WithThumbnails(thumbs),
		session.WithBus(bus),
	}
	if cfg.Backups.Enabled {
		ws.backups = backup.NewManager(cfg.Paths.BackupDir, cfg.Backups.Keep, store, logger)
		opts = append(opts, session.WithBackups(ws.backups))
	}
	if c.interactive() {
		p := newTerminalPrompter(cmd.Context())
		opts = append(opts, session.WithPrompter(p), session.WithSettings(p))
	} else {
		yes := c.flags != nil && c.flags.yes
		opts = append(opts, session.WithPrompter(session.Headless{
			OnClose:         session.CloseDiscard,
			AcceptRecovery:  a.recover,
			TryLenient:      a.recover,
			UseNewestBackup: a.newestBackup,
			Overwrite:       yes,
			Relocate:        yes,
		}))
	}

	controller, err := session.NewController(cfg, logger, opts...)
	if err != nil {
		ws.unsubscribe()
		thumbs.Close()
		store.Close()
		return nil, err
	}
	ws.controller = controller
	return ws, nil
}

// withWorkspace runs fn against a fresh workspace and closes it afterwards.
func (c *commandContext) withWorkspace(cmd *cobra.Command, a answers, fn func(*workspace) error) error {
	ws, err := c.openWorkspace(cmd, a)
	if err != nil {
		return err
	}
	err = fn(ws)
	return errors.Join(err, ws.Close(context.WithoutCancel(cmd.Context())))
}

// Close shuts the controller down. When the document still has unsaved
// changes they are kept in its companion for the next open.
func (w *workspace) Close(ctx context.Context) error {
	keep := false
	if snap, ok := w.controller.Current(); ok && snap.Modified {
		keep = true
	}
	err := w.controller.Shutdown(ctx, keep)
	w.unsubscribe()
	return errors.Join(err, w.thumbs.Close(), w.history.Close())
}

// eventPrinter renders user-facing session events on w.
func eventPrinter(w io.Writer) notifications.Handler {
	return func(event notifications.Event, p notifications.Payload) {
		switch event {
		case notifications.EventAdvisory:
			fmt.Fprintf(w, "note: %s\n", p.String("message"))
		case notifications.EventCorruptionWarning:
			fmt.Fprintf(w, "warning: %s\n", p.String("message"))
		case notifications.EventRelocationFinished:
			if msg := p.String("error"); msg != "" {
				fmt.Fprintf(w, "folder move failed: %s\n", msg)
				return
			}
			if moved, _ := p["moved"].(bool); !moved {
				fmt.Fprintf(w, "Project data folder is now %s\n", p.String("destination"))
				return
			}
			fmt.Fprintf(w, "Project data moved to %s\n", p.String("destination"))
		}
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
