// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package compile turns resolved model state into resource compilation work.
// It builds the compile spec and hands it to a tool chain; compilers
// themselves live outside kiln.
package compile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

var (
	// ErrPlatformNotSupported is returned when a tool chain cannot target a platform.
	ErrPlatformNotSupported = errors.New("platform not supported by tool chain")
	// ErrOutputLocked is returned when another compilation holds the output directory.
	ErrOutputLocked = errors.New("output directory is locked")
)

// Platform is a compilation target such as windows-x86-64.
type Platform struct {
	OperatingSystem string
	Architecture    string
}

// ParsePlatform parses "os-arch".
func ParsePlatform(s string) (Platform, error) {
	osName, arch, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "-")
	if !ok || osName == "" || arch == "" {
		return Platform{}, fmt.Errorf("invalid platform %q, want <os>-<arch>", s)
	}
	return Platform{OperatingSystem: osName, Architecture: arch}, nil
}

// CompatibilityString identifies the platform in output types.
func (p Platform) CompatibilityString() string {
	return p.OperatingSystem + "-" + p.Architecture
}

func (p Platform) String() string { return p.CompatibilityString() }

// Spec is the work handed to a compiler.
type Spec struct {
	TempDir       string
	ObjectFileDir string
	Includes      []string
	Sources       []string
	Macros        map[string]string
	Args          []string
	Incremental   bool
}

// ObjectFile returns the output file for source.
func (s *Spec) ObjectFile(source string) string {
	base := strings.TrimSuffix(filepath.Base(source), filepath.Ext(source))
	return filepath.Join(s.ObjectFileDir, base+".res")
}

// Arguments renders the resource compiler command line for source. Macros
// are sorted by name; a macro with an empty value is defined without one.
func (s *Spec) Arguments(source string) []string {
	args := append([]string{"/nologo"}, s.Args...)
	for _, inc := range s.Includes {
		args = append(args, "/I", inc)
	}
	names := make([]string, 0, len(s.Macros))
	for name := range s.Macros {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v := s.Macros[name]; v != "" {
			args = append(args, "/D", name+"="+v)
		} else {
			args = append(args, "/D", name)
		}
	}
	return append(args, "/fo", s.ObjectFile(source), source)
}

// WorkResult reports what a compilation did.
type WorkResult struct {
	DidWork bool
}

// Compiler executes a spec.
type Compiler interface {
	Execute(ctx context.Context, spec *Spec) (WorkResult, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, spec *Spec) (WorkResult, error)

// Execute implements Compiler.
func (f CompilerFunc) Execute(ctx context.Context, spec *Spec) (WorkResult, error) {
	return f(ctx, spec)
}

// PlatformToolChain is a tool chain selected for one platform.
type PlatformToolChain interface {
	NewCompiler(spec *Spec) (Compiler, error)
}

// ToolChain provides compilers.
type ToolChain interface {
	Name() string
	OutputType() string
	Select(platform Platform) (PlatformToolChain, error)
}

// IncrementalCompilerBuilder wraps a compiler with incremental behaviour.
type IncrementalCompilerBuilder interface {
	CreateIncrementalCompiler(task *ResourceCompile, compiler Compiler, toolChain ToolChain) Compiler
}
