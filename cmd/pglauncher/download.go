package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDownloadCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "download [tag]",
		Short: "Download a release into the global storage directory",
		Long: `Download a postgres-language-server release.

Without a tag the available releases are listed for selection; with --yes the
newest release is installed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var tag string
			if len(args) == 1 {
				tag = strings.TrimSpace(args[0])
			}
			e, display, err := a.engine(cmd)
			if err != nil {
				return err
			}
			path, err := e.Download(cmd.Context(), tag)
			display.Stop()
			if err != nil {
				return err
			}
			if path == "" {
				fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("Nothing selected; no release was downloaded."))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Installed %s\n", pathStyle.Render(path))
			return nil
		},
	}
}
