package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"splice/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:         "config",
		Short:       "Configuration utilities",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	return configCmd
}

func configTarget(flag string) (string, error) {
	if target := strings.TrimSpace(flag); target != "" {
		expanded, err := config.ExpandPath(target)
		if err != nil {
			return "", fmt.Errorf("resolve config path: %w", err)
		}
		return expanded, nil
	}
	path, err := config.DefaultConfigPath()
	if err != nil {
		return "", fmt.Errorf("determine default config path: %w", err)
	}
	return path, nil
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a sample configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := configTarget(targetPath)
			if err != nil {
				return err
			}
			if !overwrite {
				_, err := os.Stat(target)
				switch {
				case err == nil:
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				case !errors.Is(err, fs.ErrNotExist):
					return fmt.Errorf("check config path: %w", err)
				}
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create config directory: %w", err)
			}
			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set paths.project_dir and project.default_profile to match your setup.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load the configuration, create its directories and print the effective settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load(strings.TrimSpace(ctx.flags.config))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}

			source := path
			if !exists {
				source = path + " (not found, defaults used)"
			}
			profile := cfg.Project.DefaultProfile
			if profile == "" {
				profile = "(from time zone)"
			}
			autosave := "off"
			if cfg.Autosave.Enabled {
				autosave = fmt.Sprintf("%s debounce, forced after %s", cfg.AutosaveDebounce(), cfg.AutosaveForceAfter())
			}
			backups := "off"
			if cfg.Backups.Enabled {
				backups = "keep " + strconv.Itoa(cfg.Backups.Keep)
			}
			rows := [][]string{
				{"Config file", source},
				{"Project folder", cfg.Paths.ProjectDir},
				{"Cache folder", cfg.Paths.CacheDir},
				{"Autosave folder", cfg.Paths.StaleDir},
				{"Backup folder", cfg.Paths.BackupDir},
				{"Default profile", profile},
				{"Data beside project", yesNo(cfg.Project.SameProjectFolder)},
				{"Autosave", autosave},
				{"Backups", backups},
				{"Notifications", yesNo(strings.TrimSpace(cfg.Notifications.NtfyTopic) != "")},
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable([]column{left("Setting"), left("Value")}, rows))
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}
