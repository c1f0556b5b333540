package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"pglauncher/internal/debug"
	"pglauncher/internal/watch"
)

func newWatchCmd(a *app) *cobra.Command {
	var debounce = watch.DefaultDebounce
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-provision whenever the resolved binary is replaced",
		Long: `Resolve and provision the binary, then keep watching it. Each time an
installer replaces the original file it is provisioned again and the new
executable path is printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, res, err := a.resolve(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Executable)

			rc, err := a.resolutionContext()
			if err != nil {
				return err
			}
			current := res.Executable
			w, err := watch.NewBinaryWatcher(res.Found.Binary, debounce, func() {
				next, ok, err := e.Resolve(cmd.Context(), rc)
				if err != nil {
					fmt.Fprint(cmd.ErrOrStderr(), formatCommandError(err))
					return
				}
				if !ok {
					debug.Logf("watch: %s disappeared", res.Found.Binary)
					return
				}
				if next.Executable == current {
					return
				}
				current = next.Executable
				fmt.Fprintln(out, current)
			})
			if err != nil {
				return err
			}
			defer func() { _ = w.Close() }()

			fmt.Fprintln(cmd.ErrOrStderr(), dimStyle.Render("Watching "+res.Found.Binary+" (Ctrl+C to stop)"))
			w.Run(cmd.Context())
			return nil
		},
	}
	cmd.Flags().DurationVar(&debounce, "debounce", watch.DefaultDebounce, "Quiet period after a change before re-provisioning")
	return cmd
}
