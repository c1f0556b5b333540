package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"pglauncher/internal/launcher"
)

func newResolveCmd(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "resolve",
		Short: "Print the path of the binary to launch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, res, err := a.resolve(cmd)
			if err != nil {
				return err
			}
			return writeResolution(cmd.OutOrStdout(), res, format)
		},
	}
	cmd.Flags().StringVar(&format, "format", "text", "Output format (text, json, yaml)")
	return cmd
}

func writeResolution(w io.Writer, res launcher.Resolution, format string) error {
	switch format {
	case "", "text":
		_, err := fmt.Fprintln(w, res.Executable)
		return err
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(res); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}
