package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeProject()
	c.normalizeAutosave()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ProjectDir) == "" {
		c.Paths.ProjectDir = defaultProjectDir
	}
	if c.Paths.ProjectDir, err = expandPath(c.Paths.ProjectDir); err != nil {
		return fmt.Errorf("paths.project_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" {
		c.Paths.CacheDir = defaultCacheDir()
	}
	if c.Paths.CacheDir, err = expandPath(c.Paths.CacheDir); err != nil {
		return fmt.Errorf("paths.cache_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StaleDir) == "" {
		c.Paths.StaleDir = defaultStaleDir
	}
	if c.Paths.StaleDir, err = expandPath(c.Paths.StaleDir); err != nil {
		return fmt.Errorf("paths.stale_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BackupDir) == "" {
		c.Paths.BackupDir = defaultBackupDir
	}
	if c.Paths.BackupDir, err = expandPath(c.Paths.BackupDir); err != nil {
		return fmt.Errorf("paths.backup_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeProject() {
	c.Project.DefaultProfile = strings.TrimSpace(c.Project.DefaultProfile)
	if c.Project.DefaultProfile == "" {
		if value, ok := os.LookupEnv("SPLICE_DEFAULT_PROFILE"); ok {
			c.Project.DefaultProfile = strings.TrimSpace(value)
		}
	}
	c.Project.ProxyExtension = strings.TrimPrefix(strings.TrimSpace(c.Project.ProxyExtension), ".")
	if c.Project.ProxyExtension == "" {
		c.Project.ProxyExtension = defaultProxyExtension
	}
	c.Project.ProxyParams = strings.TrimSpace(c.Project.ProxyParams)
	if c.Project.ProxyParams == "" {
		c.Project.ProxyParams = defaultProxyParams
	}
}

func (c *Config) normalizeAutosave() {
	if c.Autosave.DebounceMillis <= 0 {
		c.Autosave.DebounceMillis = defaultAutosaveDebounceMillis
	}
	if c.Autosave.ForceAfterSeconds <= 0 {
		c.Autosave.ForceAfterSeconds = defaultAutosaveForceAfterSecs
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.NtfyTopic == "" {
		if value, ok := os.LookupEnv("SPLICE_NTFY_TOPIC"); ok {
			c.Notifications.NtfyTopic = strings.TrimSpace(value)
		}
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
