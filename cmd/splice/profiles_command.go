package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"splice/internal/profiles"
)

type profileJSON struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	Progressive bool    `json:"progressive"`
}

func newProfilesCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:         "profiles",
		Short:       "List the video profiles new projects can use",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			names := profiles.Names()
			out := make([]profileJSON, 0, len(names))
			for _, name := range names {
				p := profiles.MustLookup(name)
				out = append(out, profileJSON{
					Name:        name,
					Description: p.Description,
					Width:       p.Width,
					Height:      p.Height,
					FPS:         p.FPS(),
					Progressive: p.Progressive,
				})
			}
			if asJSON {
				return writeJSON(cmd, out)
			}
			rows := make([][]string, 0, len(out))
			for _, p := range out {
				rows = append(rows, []string{
					p.Name,
					p.Description,
					fmt.Sprintf("%dx%d", p.Width, p.Height),
					strconv.FormatFloat(p.FPS, 'f', -1, 64),
					yesNo(p.Progressive),
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]column{left("Name"), left("Description"), right("Size"), right("FPS"), left("Progressive")},
				rows,
			))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output as JSON")
	return cmd
}
