// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kilnbuild/kiln/cmd/kiln/internal/format"
	"github.com/kilnbuild/kiln/pkg/appctx"
	"github.com/kilnbuild/kiln/pkg/config"
	"github.com/kilnbuild/kiln/pkg/core"
	"github.com/kilnbuild/kiln/pkg/manifest"
)

// currentConfig returns the configuration loaded by the root command.
func currentConfig(ctx context.Context) config.Config {
	if mgr, ok := appctx.Config(ctx); ok {
		return mgr.Get()
	}
	return config.DefaultConfig()
}

// manifestPaths combines manifests named on the command line with the
// configured ones. Command line manifests come first.
func manifestPaths(args []string, cfg config.Config) ([]string, error) {
	all := append(append([]string(nil), args...), cfg.Model.Manifests...)
	if len(all) == 0 {
		return nil, fmt.Errorf("no plugin manifests given; pass them as arguments or set model.manifests")
	}
	return all, nil
}

// openSession loads the manifests into a new session and, when freeze is
// set, freezes it.
func openSession(ctx context.Context, cfg config.Config, paths []string, freeze bool) (*core.Session, error) {
	manifests, err := manifest.LoadAll(paths...)
	if err != nil {
		return nil, err
	}
	session, err := core.NewSession(core.Options{SourceRoot: cfg.Model.SourceRoot})
	if err != nil {
		return nil, err
	}
	if err := session.Load(ctx, manifests...); err != nil {
		return nil, err
	}
	if freeze {
		if err := session.Freeze(ctx); err != nil {
			return nil, err
		}
	}
	return session, nil
}

// keepSession records session on the command context so the post-run hook
// can report on it.
func keepSession(cmd *cobra.Command, session *core.Session) {
	cmd.SetContext(appctx.WithSession(cmd.Context(), session))
}

func newFormatter(cmd *cobra.Command, output string, quiet bool) format.Formatter {
	cfg := currentConfig(cmd.Context())
	useColor := !cfg.Log.NoColor && os.Getenv("NO_COLOR") == ""
	return format.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), format.ParseMode(output), quiet, useColor)
}
