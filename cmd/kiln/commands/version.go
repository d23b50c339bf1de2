// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilnbuild/kiln/cmd/kiln/internal/format"
	"github.com/kilnbuild/kiln/pkg/version"
)

// NewVersionCommand prints build and model API versions.
func NewVersionCommand() *cobra.Command {
	var (
		short  bool
		output string
	)
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			if format.ParseMode(output) == format.ModeJSON {
				return newFormatter(cmd, output, false).PrintJSON(info)
			}
			out := cmd.OutOrStdout()
			if short {
				_, err := fmt.Fprintln(out, info.Version)
				return err
			}
			_, err := fmt.Fprintln(out, version.Info())
			return err
		},
	}
	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	cmd.Flags().StringVarP(&output, "output", "o", string(format.ModeTable), "Output format (table, json)")
	return cmd
}
