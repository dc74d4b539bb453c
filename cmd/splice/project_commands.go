package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"splice/internal/session"
)

func newNewCommand(ctx *commandContext) *cobra.Command {
	var profile string
	var interactive bool
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "new <project>",
		Short: "Create a project and save it to the given path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withWorkspace(cmd, answers{}, func(ws *workspace) error {
				c := ws.controller
				opts := session.NewOptions{Profile: profile, Interactive: interactive && ctx.interactive()}
				if err := c.New(cmd.Context(), opts); err != nil {
					return err
				}
				if err := c.SaveAs(cmd.Context(), target); err != nil {
					return err
				}
				c.Wait()
				return report(cmd, c, asJSON)
			})
		},
	}

	cmd.Flags().StringVarP(&profile, "profile", "p", "", "Video profile (see `splice profiles`)")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Ask for project settings")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newOpenCommand(ctx *commandContext) *cobra.Command {
	var recoverData bool
	var saveAs string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "open [project]",
		Short: "Open a project or project archive and show its settings",
		Long: "Opens the given project. Without a path the last project is reopened when " +
			"project.open_last_project is set; otherwise a new untitled project is started.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				p, err := projectArg(args[0])
				if err != nil {
					return err
				}
				path = p
			}
			return ctx.withWorkspace(cmd, answers{recover: recoverData}, func(ws *workspace) error {
				c := ws.controller
				var err error
				switch {
				case path != "":
					err = c.Open(cmd.Context(), path)
				case ws.cfg.Project.OpenLastProject:
					err = c.OpenLast(cmd.Context())
				default:
					err = c.New(cmd.Context(), session.NewOptions{})
				}
				if err != nil {
					return err
				}
				if saveAs != "" {
					target, err := projectArg(saveAs)
					if err != nil {
						return err
					}
					if err := c.SaveAs(cmd.Context(), target); err != nil {
						return err
					}
				}
				c.Wait()
				return report(cmd, c, asJSON)
			})
		},
	}

	cmd.Flags().BoolVar(&recoverData, "recover", false, "Accept autosaved changes and try to repair damaged projects")
	cmd.Flags().StringVar(&saveAs, "save-as", "", "Save the opened project to a new path")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "convert <project> <profile>",
		Short: "Write a copy of a project converted to another video profile",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectArg(args[0])
			if err != nil {
				return err
			}
			return ctx.withWorkspace(cmd, answers{}, func(ws *workspace) error {
				c := ws.controller
				if err := c.Open(cmd.Context(), path); err != nil {
					return err
				}
				output, err := c.ConvertProfile(cmd.Context(), args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Converted project written to %s\n", output)
				return nil
			})
		},
	}
}

func newRelocateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "relocate <project> <folder>",
		Short: "Move a project's data folder",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := projectArg(args[0])
			if err != nil {
				return err
			}
			folder, err := projectArg(args[1])
			if err != nil {
				return err
			}
			return ctx.withWorkspace(cmd, answers{}, func(ws *workspace) error {
				c := ws.controller
				if err := c.Open(cmd.Context(), path); err != nil {
					return err
				}
				if err := c.RelocateTempFolder(cmd.Context(), folder); err != nil {
					return err
				}
				c.Wait()
				snap, ok := c.Current()
				if !ok {
					return session.ErrNoDocument
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Data folder: %s\n", snap.DataFolder)
				return nil
			})
		},
	}
}

func report(cmd *cobra.Command, c *session.Controller, asJSON bool) error {
	snap, ok := c.Current()
	if !ok {
		return session.ErrNoDocument
	}
	state := c.State().String()
	if asJSON {
		return writeJSON(cmd, summarize(snap, state))
	}
	printSummary(cmd.OutOrStdout(), snap, state)
	return nil
}
