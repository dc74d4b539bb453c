package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	ProjectDir string `toml:"project_dir"`
	CacheDir   string `toml:"cache_dir"`
	StaleDir   string `toml:"stale_dir"`
	BackupDir  string `toml:"backup_dir"`
	DataDir    string `toml:"data_dir"`
	LogDir     string `toml:"log_dir"`
}

// Project contains the defaults applied to newly created projects.
type Project struct {
	DefaultProfile string `toml:"default_profile"`
	VideoTracks    int    `toml:"video_tracks"`
	AudioTracks    int    `toml:"audio_tracks"`
	// AudioChannels selects the channel layout: 0 = stereo, 1 = 4 channels, 2 = 6 channels.
	AudioChannels int `toml:"audio_channels"`
	// SameProjectFolder stores cache data beside the project file ("cachefiles").
	SameProjectFolder bool `toml:"same_project_folder"`
	// CustomProjectFolder stores cache data under project_dir/<document id>.
	CustomProjectFolder bool `toml:"custom_project_folder"`
	OpenLastProject     bool `toml:"open_last_project"`

	EnableProxy        bool   `toml:"enable_proxy"`
	GenerateProxy      bool   `toml:"generate_proxy"`
	ProxyMinSize       int    `toml:"proxy_min_size"`
	ProxyParams        string `toml:"proxy_params"`
	ProxyExtension     string `toml:"proxy_extension"`
	ProxyResize        int    `toml:"proxy_resize"`
	GenerateImageProxy bool   `toml:"generate_image_proxy"`
	ProxyImageMinSize  int    `toml:"proxy_image_min_size"`
}

// Autosave contains crash-recovery timing.
type Autosave struct {
	Enabled           bool `toml:"enabled"`
	DebounceMillis    int  `toml:"debounce_ms"`
	ForceAfterSeconds int  `toml:"force_after_seconds"`
}

// Backups controls the copies kept before a save overwrites a project file.
type Backups struct {
	Enabled bool `toml:"enabled"`
	Keep    int  `toml:"keep"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Warnings       bool   `toml:"warnings"`
	Relocation     bool   `toml:"relocation"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for splice.
//
// Configuration sections by subsystem:
//   - Paths: project, cache, stale-file, backup, data and log directories
//   - Project: defaults for new projects and the cache folder policy
//   - Autosave: debounce and forced-save intervals
//   - Backups: pre-save backup rotation
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Project       Project       `toml:"project"`
	Autosave      Autosave      `toml:"autosave"`
	Backups       Backups       `toml:"backups"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/splice/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/splice/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("splice.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the directories the session core writes into.
// ProjectDir is created on a best-effort basis so a removable drive being
// offline does not block startup.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.CacheDir, c.Paths.StaleDir, c.Paths.BackupDir, c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ProjectDir) != "" {
		_ = os.MkdirAll(c.Paths.ProjectDir, 0o755)
	}
	return nil
}

// UntitledPath is the working path bound to documents that were never saved.
func (c *Config) UntitledPath() string {
	return filepath.Join(c.Paths.ProjectDir, UntitledName)
}

// HistoryDBPath returns the SQLite database holding recent projects and backups.
func (c *Config) HistoryDBPath() string {
	return filepath.Join(c.Paths.DataDir, "history.db")
}

// ThumbnailDBPath returns the bbolt file backing the thumbnail cache.
func (c *Config) ThumbnailDBPath() string {
	return filepath.Join(c.Paths.DataDir, "thumbnails.db")
}

// AutosaveDebounce is the delay between the last edit and the autosave write.
func (c *Config) AutosaveDebounce() time.Duration {
	return time.Duration(c.Autosave.DebounceMillis) * time.Millisecond
}

// AutosaveForceAfter bounds the time an edited project may go without a save.
func (c *Config) AutosaveForceAfter() time.Duration {
	return time.Duration(c.Autosave.ForceAfterSeconds) * time.Second
}

// AudioChannelCount maps the audio_channels setting to a channel count.
func (c *Config) AudioChannelCount() int {
	switch c.Project.AudioChannels {
	case 1:
		return 4
	case 2:
		return 6
	default:
		return 2
	}
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultCacheDir() string {
	if base, ok := os.LookupEnv("XDG_CACHE_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "splice")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "~/.cache/splice"
	}
	return filepath.Join(home, ".cache", "splice")
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
