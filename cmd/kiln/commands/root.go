// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kilnbuild/kiln/pkg/appctx"
	"github.com/kilnbuild/kiln/pkg/config"
	"github.com/kilnbuild/kiln/pkg/core"
	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/paths"
	"github.com/kilnbuild/kiln/pkg/workspace"
)

const cliExecutable = "kiln"

// NewCommand constructs the top-level kiln command. The persistent pre-run
// loads configuration, configures logging and prepares the workspace for
// every subcommand.
func NewCommand() *cobra.Command {
	var (
		configFile     string
		workspaceDir   string
		verbosityCount int
	)

	cmd := &cobra.Command{
		Use:   cliExecutable,
		Short: "Kiln configures native builds from typed model rules",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			mgr := config.NewManager()
			if err := mgr.Load(cmd.Flags(), configFile); err != nil {
				return fmt.Errorf("load configuration: %w", err)
			}
			cfg := mgr.Get()
			level := core.SetupLogger(cfg.Log, verbosityCount)

			dir := workspaceDir
			if dir == "" {
				dir = cfg.Model.WorkspaceDir
			}
			root, err := workspace.Prepare(dir)
			if err != nil {
				return fmt.Errorf("prepare workspace: %w", err)
			}
			log.Debug().Str("workspace", root).Str("level", level.String()).Msg("workspace ready")

			ctx := appctx.WithConfig(cmd.Context(), mgr)
			ctx = workspace.WithContext(ctx, root)
			cmd.SetContext(ctx)
			if r := cmd.Root(); r != nil && r != cmd {
				r.SetContext(ctx)
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if s, ok := appctx.Session(cmd.Context()); ok {
				log.Debug().Int("plugins", len(s.Plugins())).Bool("frozen", s.Frozen()).Msg("session closed")
			}
			return nil
		},
	}

	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.PersistentFlags().StringVarP(&configFile, "config", "c", filepath.Join(paths.ConfigDir(), "config.yaml"), "Configuration file path")
	cmd.PersistentFlags().StringVar(&workspaceDir, "workspace-dir", "", "Override workspace root directory")
	cmd.PersistentFlags().CountVarP(&verbosityCount, "verbosity", "v", "Increase logging verbosity (repeatable)")

	config.BindFlags(cmd.PersistentFlags())

	cmd.AddGroup(&cobra.Group{ID: "model", Title: "Model Commands"})
	cmd.AddGroup(&cobra.Group{ID: "build", Title: "Build Commands"})

	cmd.AddCommand(NewModelCommand())
	cmd.AddCommand(NewCompileCommand())
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// ExitCode maps an error returned by the command to a process exit code.
func ExitCode(err error) int {
	return modelerr.ExitCode(err)
}
