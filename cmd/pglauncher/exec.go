package main

import (
	"errors"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"pglauncher/internal/debug"
)

func newExecCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec [--] [args...]",
		Short: "Run postgres-language-server with the given arguments",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, res, err := a.resolve(cmd)
			if err != nil {
				return err
			}
			debug.Logf("exec %s %v", res.Executable, args)

			child := exec.CommandContext(cmd.Context(), res.Executable, args...) //nolint:gosec // running the resolved binary is the point
			child.Stdin = cmd.InOrStdin()
			child.Stdout = cmd.OutOrStdout()
			child.Stderr = cmd.ErrOrStderr()
			child.Env = os.Environ()

			if err := child.Run(); err != nil {
				var exitErr *exec.ExitError
				if errors.As(err, &exitErr) {
					return exitError{code: exitErr.ExitCode()}
				}
				return err
			}
			return nil
		},
	}
}
