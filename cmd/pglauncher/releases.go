package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"pglauncher/internal/prompt"
	"pglauncher/internal/release"
)

func newReleasesCmd(a *app) *cobra.Command {
	var (
		notes bool
		limit int
	)
	cmd := &cobra.Command{
		Use:   "releases",
		Short: "List published releases",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, _, err := a.engine(cmd)
			if err != nil {
				return err
			}
			releases, err := e.Releases(cmd.Context())
			if err != nil {
				return err
			}
			if limit > 0 && len(releases) > limit {
				releases = releases[:limit]
			}
			installed, _ := e.InstalledVersion(cmd.Context())
			return writeReleases(cmd.OutOrStdout(), releases, installed, notes)
		},
	}
	cmd.Flags().BoolVar(&notes, "notes", false, "Render each release's notes")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of releases to list (0 for all)")
	return cmd
}

func writeReleases(w io.Writer, releases []release.Release, installed string, notes bool) error {
	if len(releases) == 0 {
		_, err := fmt.Fprintln(w, "No releases published.")
		return err
	}
	choices := prompt.ReleaseChoices(releases, installed)
	for i, r := range releases {
		line := choices[i].Label
		if !r.PublishedAt.IsZero() {
			line += "  " + dimStyle.Render(r.PublishedAt.Format("2006-01-02"))
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
		if notes && strings.TrimSpace(r.Notes) != "" {
			rendered, err := renderNotes(r.Notes)
			if err != nil {
				return err
			}
			if _, err := fmt.Fprintln(w, rendered); err != nil {
				return err
			}
		}
	}
	return nil
}

func renderNotes(markdown string) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("notty"),
		glamour.WithWordWrap(noticeWidth),
	)
	if err != nil {
		return "", fmt.Errorf("create notes renderer: %w", err)
	}
	out, err := renderer.Render(markdown)
	if err != nil {
		return "", fmt.Errorf("render notes: %w", err)
	}
	return strings.TrimRight(out, "\n"), nil
}
