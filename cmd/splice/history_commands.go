package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"splice/internal/history"
	"splice/internal/services"
)

func (c *commandContext) withHistory(cmd *cobra.Command, fn func(*history.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	openCtx, cancel := context.WithTimeout(cmd.Context(), historyLockTimeout)
	store, err := history.Open(openCtx, cfg.HistoryDBPath())
	cancel()
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	err = fn(store)
	return errors.Join(err, store.Close())
}

func newRecentCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var forget string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "recent",
		Short: "List recently opened projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withHistory(cmd, func(store *history.Store) error {
				if forget != "" {
					path, err := projectArg(forget)
					if err != nil {
						return err
					}
					if err := store.Forget(cmd.Context(), path); err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Removed %s from recent projects\n", path)
					return nil
				}
				projects, err := store.Recent(cmd.Context(), limit)
				if err != nil {
					return err
				}
				if asJSON {
					type recentJSON struct {
						Path       string `json:"path"`
						Title      string `json:"title"`
						DocumentID string `json:"document_id"`
						Profile    string `json:"profile,omitempty"`
						OpenedAt   string `json:"opened_at"`
					}
					out := make([]recentJSON, 0, len(projects))
					for _, p := range projects {
						out = append(out, recentJSON{
							Path:       p.Path,
							Title:      p.Title,
							DocumentID: p.DocumentID,
							Profile:    p.Profile,
							OpenedAt:   p.OpenedAt.UTC().Format("2006-01-02T15:04:05Z"),
						})
					}
					return writeJSON(cmd, out)
				}
				if len(projects) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No recent projects")
					return nil
				}
				rows := make([][]string, 0, len(projects))
				for i, p := range projects {
					rows = append(rows, []string{strconv.Itoa(i + 1), p.Title, p.Profile, formatWhen(p.OpenedAt), p.Path})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{right("#"), left("Title"), left("Profile"), left("Opened"), left("Path")},
					rows,
				))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Maximum number of projects to list (0 for all)")
	cmd.Flags().StringVar(&forget, "forget", "", "Remove a project from the list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newBackupsCommand(ctx *commandContext) *cobra.Command {
	backupsCmd := &cobra.Command{
		Use:   "backups",
		Short: "List and restore project backups",
	}
	backupsCmd.AddCommand(newBackupsListCommand(ctx))
	backupsCmd.AddCommand(newBackupsRestoreCommand(ctx))
	return backupsCmd
}

func newBackupsListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List the backups of a project, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withWorkspace(cmd, answers{}, func(ws *workspace) error {
				if ws.backups == nil {
					return services.Wrap(services.ErrUnsupported, "cli", "backups", "backups are disabled in the configuration", nil)
				}
				list, err := ws.backups.List(cmd.Context(), path)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, list)
				}
				if len(list) == 0 {
					fmt.Fprintf(cmd.OutOrStdout(), "No backups of %s\n", path)
					return nil
				}
				rows := make([][]string, 0, len(list))
				for i, b := range list {
					rows = append(rows, []string{strconv.Itoa(i + 1), formatWhen(b.CreatedAt), humanBytes(b.SizeBytes), filepath.Base(b.BackupPath)})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]column{right("#"), left("Created"), right("Size"), left("File")},
					rows,
				))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newBackupsRestoreCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <project>",
		Short: "Replace a project with one of its backups",
		Long: "Loads a backup of the project and saves it over the project file. " +
			"Without a terminal the newest backup is used. The replaced version is backed up first.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withWorkspace(cmd, answers{newestBackup: true}, func(ws *workspace) error {
				c := ws.controller
				if err := c.OpenBackup(cmd.Context(), path); err != nil {
					return err
				}
				if err := c.Save(cmd.Context()); err != nil {
					return err
				}
				c.Wait()
				fmt.Fprintf(cmd.OutOrStdout(), "Restored backup into %s\n", path)
				return nil
			})
		},
	}
}
