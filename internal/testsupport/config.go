package testsupport

import (
	"path/filepath"
	"testing"

	"splice/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Autosave timers are off so tests drive AutoSave explicitly; the default
// profile is pinned so results do not depend on the host time zone.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.ProjectDir = filepath.Join(base, "projects")
	cfgVal.Paths.CacheDir = filepath.Join(base, "cache")
	cfgVal.Paths.StaleDir = filepath.Join(base, "stale")
	cfgVal.Paths.BackupDir = filepath.Join(base, "backup")
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Project.DefaultProfile = "atsc_1080p_25"
	cfgVal.Autosave.Enabled = false
	cfgVal.Notifications.NtfyTopic = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithProfile overrides the default profile for new projects.
func WithProfile(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Project.DefaultProfile = name
	}
}

// WithSameProjectFolder stores project data in a cachefiles folder beside the
// project file.
func WithSameProjectFolder() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Project.SameProjectFolder = true
	}
}

// WithBackups enables pre-save backups keeping keep copies.
func WithBackups(keep int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backups.Enabled = keep > 0
		b.cfg.Backups.Keep = keep
	}
}

// WithAutosave turns the autosave scheduler on with the given timings.
func WithAutosave(debounceMillis, forceAfterSeconds int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Autosave.Enabled = true
		b.cfg.Autosave.DebounceMillis = debounceMillis
		b.cfg.Autosave.ForceAfterSeconds = forceAfterSeconds
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
