// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package compile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// CleaningBuilder removes stale object files before a full rebuild and
// passes incremental compilations straight through.
type CleaningBuilder struct{}

// CreateIncrementalCompiler implements IncrementalCompilerBuilder.
func (CleaningBuilder) CreateIncrementalCompiler(task *ResourceCompile, compiler Compiler, toolChain ToolChain) Compiler {
	logger := log.With().Str("component", "compile").Str("toolchain", toolChain.Name()).Logger()
	return CompilerFunc(func(ctx context.Context, spec *Spec) (WorkResult, error) {
		if spec.Incremental {
			return compiler.Execute(ctx, spec)
		}
		removed, err := removeObjectFiles(spec.ObjectFileDir, logger)
		if err != nil {
			return WorkResult{}, err
		}
		result, err := compiler.Execute(ctx, spec)
		if err != nil {
			return WorkResult{}, err
		}
		return WorkResult{DidWork: result.DidWork || removed > 0}, nil
	})
}

func removeObjectFiles(dir string, logger zerolog.Logger) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.res"))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return removed, fmt.Errorf("remove stale output %s: %w", m, err)
		}
		removed++
	}
	if removed > 0 {
		logger.Debug().Int("files", removed).Str("dir", dir).Msg("Removed stale outputs")
	}
	return removed, nil
}
