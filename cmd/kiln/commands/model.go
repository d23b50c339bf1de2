// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/kilnbuild/kiln/cmd/kiln/internal/format"
	"github.com/kilnbuild/kiln/pkg/core"
	"github.com/kilnbuild/kiln/pkg/manifest"
	"github.com/kilnbuild/kiln/pkg/modelerr"
)

// NewModelCommand groups the commands that work on the configuration model.
func NewModelCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "model",
		Short:   "Inspect and validate the configuration model",
		GroupID: "model",
	}
	cmd.AddCommand(newInspectCommand())
	cmd.AddCommand(newValidateCommand())
	return cmd
}

type inspectOptions struct {
	output   string
	noFreeze bool
	watch    bool
	quiet    bool
}

func newInspectCommand() *cobra.Command {
	opts := inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect [manifest...]",
		Short: "Load plugin manifests and show the resulting model",
		Long: `Load plugin manifests into a new session, realize the language catalog
and the component container, and print what was registered.

Manifests given as arguments are loaded before those listed in model.manifests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := format.ValidateMode(opts.output); err != nil {
				return err
			}
			cfg := currentConfig(cmd.Context())
			paths, err := manifestPaths(args, cfg)
			if err != nil {
				return err
			}
			f := newFormatter(cmd, opts.output, opts.quiet)
			freeze := cfg.Model.FreezeAfterConfigure && !opts.noFreeze

			run := func(ctx context.Context) error {
				session, err := openSession(ctx, cfg, paths, freeze)
				if err != nil {
					return err
				}
				keepSession(cmd, session)
				report, err := session.Report()
				if err != nil {
					return err
				}
				if format.ParseMode(opts.output) != format.ModeTable {
					return f.PrintDocument(report)
				}
				return printReport(f, report)
			}

			if !opts.watch {
				return run(cmd.Context())
			}
			return watchManifests(cmd.Context(), paths, f, run)
		},
	}
	cmd.Flags().StringVarP(&opts.output, "output", "o", string(format.ModeTable), "Output format (table, json, yaml)")
	cmd.Flags().BoolVar(&opts.noFreeze, "no-freeze", false, "Do not freeze the session after loading")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Reload whenever a manifest changes")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Suppress the summary line")
	return cmd
}

// watchManifests runs fn once, then again after every manifest change,
// until interrupted. Reload errors are printed, not returned.
func watchManifests(ctx context.Context, paths []string, f format.Formatter, fn func(context.Context) error) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var mu sync.Mutex
	reload := func() {
		mu.Lock()
		defer mu.Unlock()
		if err := fn(ctx); err != nil {
			_ = f.PrintError(err)
		}
	}
	reload()

	w, err := manifest.NewWatcher(paths, reload, log.Logger)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func printReport(f format.Formatter, r *core.Report) error {
	if err := f.PrintSection("Plugins"); err != nil {
		return err
	}
	if err := f.PrintTable([]string{"ID", "Version"}, pluginRows(r)); err != nil {
		return err
	}
	if err := f.PrintSection("Languages"); err != nil {
		return err
	}
	languages := make([][]string, 0, len(r.Languages))
	for _, l := range r.Languages {
		languages = append(languages, []string{l.Name, l.Type, l.Implementation})
	}
	if err := f.PrintTable([]string{"Name", "Type", "Implementation"}, languages); err != nil {
		return err
	}
	if err := f.PrintSection("Components"); err != nil {
		return err
	}
	components := make([][]string, 0, len(r.Components))
	for _, c := range r.Components {
		components = append(components, []string{c})
	}
	if err := f.PrintTable([]string{"Type"}, components); err != nil {
		return err
	}
	if err := f.PrintSection("Model elements"); err != nil {
		return err
	}
	elements := make([][]string, 0, len(r.Elements))
	for _, e := range r.Elements {
		elements = append(elements, []string{e.Element, e.State, strconv.Itoa(e.Fired)})
	}
	if err := f.PrintTable([]string{"Element", "State", "Fired"}, elements); err != nil {
		return err
	}

	state := "configurable"
	if r.Frozen {
		state = "frozen"
	}
	return f.PrintSummary(fmt.Sprintf("%d plugin(s), %d language(s), %d component type(s); session %s",
		len(r.Plugins), len(r.Languages), len(r.Components), state))
}

func pluginRows(r *core.Report) [][]string {
	rows := make([][]string, 0, len(r.Plugins))
	for _, p := range r.Plugins {
		rows = append(rows, []string{p.ID, p.Version})
	}
	return rows
}

func newValidateCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "validate [manifest...]",
		Short: "Check plugin manifests without loading them into a build",
		Long: `Validate every manifest field, check the model API constraint, then declare
the types and apply the rules to a scratch session. All field problems in a
manifest are reported together.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := format.ValidateMode(output); err != nil {
				return err
			}
			cfg := currentConfig(cmd.Context())
			paths, err := manifestPaths(args, cfg)
			if err != nil {
				return err
			}
			f := newFormatter(cmd, output, false)

			scratch, err := core.NewSession(core.Options{SourceRoot: cfg.Model.SourceRoot})
			if err != nil {
				return err
			}
			failed := 0
			for _, path := range paths {
				problems := validateManifest(cmd.Context(), scratch, path)
				if len(problems) > 0 {
					failed++
				}
				if err := f.PrintProblems(path, problems); err != nil {
					return err
				}
			}
			if failed > 0 {
				return modelerr.New(modelerr.ErrInvalidManifest,
					fmt.Sprintf("%d of %d manifest(s) are invalid.", failed, len(paths)))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", string(format.ModeTable), "Output format (table, json)")
	return cmd
}

// validateManifest returns the problems of the manifest at path. Valid
// manifests are loaded into the scratch session so later manifests can
// extend their types.
func validateManifest(ctx context.Context, scratch *core.Session, path string) []string {
	m, err := manifest.Load(path)
	if err != nil {
		return []string{err.Error()}
	}
	if err := scratch.Load(ctx, m); err != nil {
		var verr *manifest.ValidationError
		if errors.As(err, &verr) {
			return verr.Problems
		}
		return []string{err.Error()}
	}
	return nil
}
