// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package compile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofrs/flock"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"

	"github.com/kilnbuild/kiln/pkg/config"
	"github.com/kilnbuild/kiln/pkg/language"
)

const (
	lockFileName   = ".kiln.lock"
	lockRetryDelay = 50 * time.Millisecond
)

// ResourceCompile compiles resource scripts into object files.
type ResourceCompile struct {
	ToolChain      ToolChain
	TargetPlatform Platform
	OutputDir      string
	// TempDir defaults to the system temp dir.
	TempDir  string
	Includes []string
	Source   []string
	// Macros may hold untyped configuration values; they are rendered as
	// strings, nil meaning a macro without a value.
	Macros       map[string]any
	CompilerArgs []string
	// Builder defaults to CleaningBuilder.
	Builder IncrementalCompilerBuilder
	// LockTimeout bounds the wait for the output directory lock. Zero waits
	// as long as ctx allows.
	LockTimeout time.Duration

	didWork bool
}

// FromSourceSet creates a task compiling every .rc file below the source
// directory of set, with defaults taken from cfg.
func FromSourceSet(set language.SourceSet, cfg config.CompileConfig, toolChain ToolChain) (*ResourceCompile, error) {
	platform, err := ParsePlatform(cfg.TargetPlatform)
	if err != nil {
		return nil, err
	}
	sources, err := findSources(set.SourceDir(), ".rc")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", set, err)
	}
	return &ResourceCompile{
		ToolChain:      toolChain,
		TargetPlatform: platform,
		OutputDir:      filepath.Join(cfg.OutputDir, set.Name()),
		TempDir:        cfg.TempDir,
		Includes:       append([]string{set.SourceDir()}, cfg.Includes...),
		Source:         sources,
		Macros:         cfg.Macros,
		CompilerArgs:   append([]string(nil), cfg.Args...),
		LockTimeout:    cfg.LockTimeout,
	}, nil
}

func findSources(dir, ext string) ([]string, error) {
	var sources []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(filepath.Ext(path), ext) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(sources)
	return sources, nil
}

// OutputType identifies what the task produces, for up-to-date checks.
func (t *ResourceCompile) OutputType() string {
	return t.ToolChain.OutputType() + ":" + t.TargetPlatform.CompatibilityString()
}

// DidWork reports whether the last Execute did any work.
func (t *ResourceCompile) DidWork() bool { return t.didWork }

// Spec builds the compile spec from the task's current state.
func (t *ResourceCompile) Spec(incremental bool) (*Spec, error) {
	macros, err := NormalizeMacros(t.Macros)
	if err != nil {
		return nil, err
	}
	tempDir := t.TempDir
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Spec{
		TempDir:       tempDir,
		ObjectFileDir: t.OutputDir,
		Includes:      append([]string(nil), t.Includes...),
		Sources:       append([]string(nil), t.Source...),
		Macros:        macros,
		Args:          append([]string(nil), t.CompilerArgs...),
		Incremental:   incremental,
	}, nil
}

// Execute compiles the sources while holding the output directory lock.
func (t *ResourceCompile) Execute(ctx context.Context, incremental bool) (WorkResult, error) {
	if t.ToolChain == nil {
		return WorkResult{}, errors.New("resource compile task has no tool chain")
	}
	if t.OutputDir == "" {
		return WorkResult{}, errors.New("resource compile task has no output directory")
	}
	spec, err := t.Spec(incremental)
	if err != nil {
		return WorkResult{}, err
	}

	if err := os.MkdirAll(t.OutputDir, 0o750); err != nil {
		return WorkResult{}, fmt.Errorf("create output directory: %w", err)
	}
	unlock, err := t.lock(ctx)
	if err != nil {
		return WorkResult{}, err
	}
	defer unlock()

	platformToolChain, err := t.ToolChain.Select(t.TargetPlatform)
	if err != nil {
		return WorkResult{}, err
	}
	compiler, err := platformToolChain.NewCompiler(spec)
	if err != nil {
		return WorkResult{}, err
	}
	builder := t.Builder
	if builder == nil {
		builder = CleaningBuilder{}
	}

	logger := log.With().Str("component", "compile").Str("output", t.OutputDir).Logger()
	logger.Debug().Int("sources", len(spec.Sources)).Bool("incremental", incremental).Str("output_type", t.OutputType()).Msg("Compiling resources")

	result, err := builder.CreateIncrementalCompiler(t, compiler, t.ToolChain).Execute(ctx, spec)
	if err != nil {
		return WorkResult{}, err
	}
	t.didWork = result.DidWork
	logger.Debug().Bool("did_work", result.DidWork).Msg("Resource compilation finished")
	return result, nil
}

func (t *ResourceCompile) lock(ctx context.Context) (func(), error) {
	if t.LockTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.LockTimeout)
		defer cancel()
	}
	fl := flock.New(filepath.Join(t.OutputDir, lockFileName))
	locked, err := fl.TryLockContext(ctx, lockRetryDelay)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) {
		return nil, fmt.Errorf("lock output directory: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, t.OutputDir)
	}
	return func() { _ = fl.Unlock() }, nil
}

// NormalizeMacros renders macro values as strings.
func NormalizeMacros(macros map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(macros))
	for name, v := range macros {
		if strings.TrimSpace(name) == "" {
			return nil, errors.New("macro with empty name")
		}
		if v == nil {
			out[name] = ""
			continue
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return nil, fmt.Errorf("macro %s: %w", name, err)
		}
		out[name] = s
	}
	return out, nil
}
