// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kilnbuild/kiln/cmd/kiln/internal/format"
	"github.com/kilnbuild/kiln/pkg/compile"
	"github.com/kilnbuild/kiln/pkg/config"
	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/workspace"
)

type compileOptions struct {
	sourceSet string
	language  string
	full      bool
	outputDir string
	platform  string
	includes  []string
	defines   []string
}

// NewCompileCommand compiles the resource scripts of one source set.
func NewCompileCommand() *cobra.Command {
	opts := compileOptions{}
	cmd := &cobra.Command{
		Use:     "compile [manifest...]",
		Short:   "Compile the resource scripts of a source set",
		GroupID: "build",
		Long: `Load and freeze the model, create the named source set of the given
language and compile every .rc file below its source directory.

The resource compiler command lines are printed instead of executed.`,
		Example: `  kiln compile plugins/native-rc.yaml --source-set main
  kiln compile plugins/native-rc.yaml -s main -D WINVER=0x0601 --full`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := currentConfig(ctx)
			paths, err := manifestPaths(args, cfg)
			if err != nil {
				return err
			}
			if err := opts.apply(&cfg.Compile); err != nil {
				return err
			}
			if cfg.Compile.TempDir == "" {
				if root, ok := workspace.FromContext(ctx); ok {
					cfg.Compile.TempDir = filepath.Join(root, workspace.TmpDir)
				}
			}

			session, err := openSession(ctx, cfg, paths, true)
			if err != nil {
				return err
			}
			keepSession(cmd, session)

			catalog, err := session.Catalog()
			if err != nil {
				return err
			}
			reg, ok := catalog.Find(opts.language)
			if !ok {
				return modelerr.New(modelerr.ErrUnknownCreatableType,
					fmt.Sprintf("No language named %s is registered.", opts.language))
			}
			sets, err := session.SourceSets()
			if err != nil {
				return err
			}
			set, err := sets.CreateOfType(opts.sourceSet, reg.DeclaredType)
			if err != nil {
				return err
			}

			task, err := compile.FromSourceSet(set, cfg.Compile, &compile.DryRunToolChain{Out: cmd.OutOrStdout()})
			if err != nil {
				return err
			}
			result, err := task.Execute(ctx, !opts.full)
			if err != nil {
				return err
			}

			f := newFormatter(cmd, string(format.ModeTable), false)
			if !result.DidWork {
				return f.PrintSummary(fmt.Sprintf("%s: nothing to compile", set))
			}
			return f.PrintSummary(fmt.Sprintf("Compiled %d resource script(s) into %s", len(task.Source), task.OutputDir))
		},
	}
	cmd.Flags().StringVarP(&opts.sourceSet, "source-set", "s", "main", "Name of the source set to compile")
	cmd.Flags().StringVarP(&opts.language, "language", "l", "rc", "Language of the source set")
	cmd.Flags().BoolVar(&opts.full, "full", false, "Remove previous outputs and rebuild everything")
	cmd.Flags().StringVar(&opts.outputDir, "output-dir", "", "Override compile.output_dir")
	cmd.Flags().StringVar(&opts.platform, "target-platform", "", "Override compile.target_platform (os-arch)")
	cmd.Flags().StringSliceVarP(&opts.includes, "include", "I", nil, "Additional include directory (repeatable)")
	cmd.Flags().StringArrayVarP(&opts.defines, "define", "D", nil, "Preprocessor macro NAME or NAME=value (repeatable)")
	return cmd
}

// apply layers the command line overrides over the configured settings.
func (o compileOptions) apply(cfg *config.CompileConfig) error {
	if o.outputDir != "" {
		cfg.OutputDir = o.outputDir
	}
	if o.platform != "" {
		cfg.TargetPlatform = o.platform
	}
	cfg.Includes = append(cfg.Includes, o.includes...)
	if len(o.defines) > 0 {
		macros := make(map[string]any, len(cfg.Macros)+len(o.defines))
		for k, v := range cfg.Macros {
			macros[k] = v
		}
		for _, def := range o.defines {
			name, value, _ := strings.Cut(def, "=")
			if strings.TrimSpace(name) == "" {
				return fmt.Errorf("invalid macro definition %q", def)
			}
			macros[name] = value
		}
		cfg.Macros = macros
	}
	return nil
}
