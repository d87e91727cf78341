package main

import (
	"context"
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func predictCommand(load settingsLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <image>",
		Short: "Classify a local image and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := load()
			if err != nil {
				return err
			}

			// Logs go to stderr so stdout carries only the JSON result.
			a, err := bootstrap(settings, os.Stderr, false)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			res, err := a.service.Diagnose(ctx, args[0])
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
}
