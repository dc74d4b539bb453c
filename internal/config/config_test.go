package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"splice/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("XDG_CACHE_HOME", "")
	t.Setenv("SPLICE_NTFY_TOPIC", "")

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantStale := filepath.Join(tempHome, ".local", "share", "splice", "stalefiles")
	if cfg.Paths.StaleDir != wantStale {
		t.Fatalf("unexpected stale dir: got %q want %q", cfg.Paths.StaleDir, wantStale)
	}
	if cfg.Paths.ProjectDir != filepath.Join(tempHome, "Videos") {
		t.Fatalf("unexpected project dir: %q", cfg.Paths.ProjectDir)
	}
	if cfg.Paths.CacheDir != filepath.Join(tempHome, ".cache", "splice") {
		t.Fatalf("unexpected cache dir: %q", cfg.Paths.CacheDir)
	}
	if cfg.UntitledPath() != filepath.Join(tempHome, "Videos", config.UntitledName) {
		t.Fatalf("unexpected untitled path: %q", cfg.UntitledPath())
	}
	if cfg.AutosaveDebounce() != 3*time.Second {
		t.Fatalf("unexpected debounce: %s", cfg.AutosaveDebounce())
	}
	if cfg.AutosaveForceAfter() != 5*time.Minute {
		t.Fatalf("unexpected force-after: %s", cfg.AutosaveForceAfter())
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format: %q", cfg.Logging.Format)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, dir := range []string{cfg.Paths.StaleDir, cfg.Paths.BackupDir, cfg.Paths.CacheDir, cfg.Paths.LogDir, cfg.Paths.ProjectDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "splice.toml")

	type payload struct {
		Paths struct {
			ProjectDir string `toml:"project_dir"`
		} `toml:"paths"`
		Project struct {
			DefaultProfile string `toml:"default_profile"`
			AudioChannels  int    `toml:"audio_channels"`
		} `toml:"project"`
		Autosave struct {
			DebounceMillis int `toml:"debounce_ms"`
		} `toml:"autosave"`
		Logging struct {
			Format string `toml:"format"`
		} `toml:"logging"`
	}
	custom := payload{}
	custom.Paths.ProjectDir = filepath.Join(tempDir, "projects")
	custom.Project.DefaultProfile = " atsc_1080p_50 "
	custom.Project.AudioChannels = 2
	custom.Autosave.DebounceMillis = 1500
	custom.Logging.Format = "JSON"

	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected config file to exist")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: %q", resolved)
	}
	if cfg.Paths.ProjectDir != filepath.Join(tempDir, "projects") {
		t.Fatalf("unexpected project dir: %q", cfg.Paths.ProjectDir)
	}
	if cfg.Project.DefaultProfile != "atsc_1080p_50" {
		t.Fatalf("expected trimmed profile, got %q", cfg.Project.DefaultProfile)
	}
	if cfg.AudioChannelCount() != 6 {
		t.Fatalf("expected 6 channels, got %d", cfg.AudioChannelCount())
	}
	if cfg.AutosaveDebounce() != 1500*time.Millisecond {
		t.Fatalf("unexpected debounce: %s", cfg.AutosaveDebounce())
	}
	if cfg.Logging.Format != "json" {
		t.Fatalf("expected json log format, got %q", cfg.Logging.Format)
	}
	if cfg.Backups.Keep != config.Default().Backups.Keep {
		t.Fatalf("expected default backup keep, got %d", cfg.Backups.Keep)
	}
}

func TestAudioChannelCount(t *testing.T) {
	tests := []struct {
		setting int
		want    int
	}{
		{0, 2},
		{1, 4},
		{2, 6},
	}
	for _, tt := range tests {
		cfg := config.Default()
		cfg.Project.AudioChannels = tt.setting
		if got := cfg.AudioChannelCount(); got != tt.want {
			t.Fatalf("audio_channels=%d: got %d want %d", tt.setting, got, tt.want)
		}
	}
}

func TestValidateRejectsInvalidProject(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr string
	}{
		{
			name:    "no tracks",
			mutate:  func(c *config.Config) { c.Project.VideoTracks = 0; c.Project.AudioTracks = 0 },
			wantErr: "cannot both be zero",
		},
		{
			name:    "bad channels",
			mutate:  func(c *config.Config) { c.Project.AudioChannels = 3 },
			wantErr: "project.audio_channels",
		},
		{
			name: "conflicting folder policy",
			mutate: func(c *config.Config) {
				c.Project.SameProjectFolder = true
				c.Project.CustomProjectFolder = true
			},
			wantErr: "mutually exclusive",
		},
		{
			name:    "negative keep",
			mutate:  func(c *config.Config) { c.Backups.Keep = -1 },
			wantErr: "backups.keep",
		},
		{
			name:    "zero debounce",
			mutate:  func(c *config.Config) { c.Autosave.DebounceMillis = 0 },
			wantErr: "autosave.debounce_ms",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("unexpected error %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFillsNonPositiveAutosaveValues(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "splice.toml")
	content := "[autosave]\ndebounce_ms = 0\nforce_after_seconds = -5\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Autosave.DebounceMillis != config.Default().Autosave.DebounceMillis {
		t.Fatalf("expected default debounce, got %d", cfg.Autosave.DebounceMillis)
	}
	if cfg.Autosave.ForceAfterSeconds != config.Default().Autosave.ForceAfterSeconds {
		t.Fatalf("expected default force-after, got %d", cfg.Autosave.ForceAfterSeconds)
	}
}

func TestNotificationTopicFromEnv(t *testing.T) {
	t.Setenv("SPLICE_NTFY_TOPIC", " https://ntfy.sh/splice ")
	tempDir := t.TempDir()
	cfg, _, _, err := config.Load(filepath.Join(tempDir, "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Notifications.NtfyTopic != "https://ntfy.sh/splice" {
		t.Fatalf("unexpected topic: %q", cfg.Notifications.NtfyTopic)
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	cfg, _, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load sample: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Backups.Keep != 20 {
		t.Fatalf("unexpected backup keep from sample: %d", cfg.Backups.Keep)
	}
	if cfg.Paths.StaleDir != filepath.Join(tempHome, ".local", "share", "splice", "stalefiles") {
		t.Fatalf("unexpected stale dir from sample: %q", cfg.Paths.StaleDir)
	}
}
