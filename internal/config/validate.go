package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateProject(); err != nil {
		return err
	}
	if err := c.validateAutosave(); err != nil {
		return err
	}
	if err := c.validateBackups(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	}); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateProject() error {
	if c.Project.VideoTracks < 0 {
		return errors.New("project.video_tracks must be >= 0")
	}
	if c.Project.AudioTracks < 0 {
		return errors.New("project.audio_tracks must be >= 0")
	}
	if c.Project.VideoTracks+c.Project.AudioTracks == 0 {
		return errors.New("project.video_tracks and project.audio_tracks cannot both be zero")
	}
	if c.Project.AudioChannels < 0 || c.Project.AudioChannels > 2 {
		return errors.New("project.audio_channels must be 0 (stereo), 1 (4 channels) or 2 (6 channels)")
	}
	if c.Project.SameProjectFolder && c.Project.CustomProjectFolder {
		return errors.New("project.same_project_folder and project.custom_project_folder are mutually exclusive")
	}
	return nil
}

func (c *Config) validateAutosave() error {
	return ensurePositiveMap(map[string]int{
		"autosave.debounce_ms":         c.Autosave.DebounceMillis,
		"autosave.force_after_seconds": c.Autosave.ForceAfterSeconds,
	})
}

func (c *Config) validateBackups() error {
	if c.Backups.Keep < 0 {
		return errors.New("backups.keep must be >= 0")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
