// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package compile

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// DryRunToolChain records the specs it is asked to compile and prints the
// command lines it would run. It supports every windows platform.
type DryRunToolChain struct {
	// Out receives one command line per source; nil discards them.
	Out io.Writer

	mu    sync.Mutex
	specs []*Spec
}

// Name implements ToolChain.
func (tc *DryRunToolChain) Name() string { return "dry-run" }

// OutputType implements ToolChain.
func (tc *DryRunToolChain) OutputType() string { return "rc-dry-run" }

// Select implements ToolChain.
func (tc *DryRunToolChain) Select(platform Platform) (PlatformToolChain, error) {
	if platform.OperatingSystem != "windows" {
		return nil, fmt.Errorf("%w: tool chain %s cannot build for %s", ErrPlatformNotSupported, tc.Name(), platform)
	}
	return tc, nil
}

// NewCompiler implements PlatformToolChain.
func (tc *DryRunToolChain) NewCompiler(*Spec) (Compiler, error) {
	return CompilerFunc(tc.execute), nil
}

func (tc *DryRunToolChain) execute(ctx context.Context, spec *Spec) (WorkResult, error) {
	tc.mu.Lock()
	tc.specs = append(tc.specs, spec)
	tc.mu.Unlock()

	for _, source := range spec.Sources {
		if err := ctx.Err(); err != nil {
			return WorkResult{}, err
		}
		if tc.Out != nil {
			if _, err := fmt.Fprintln(tc.Out, "rc "+strings.Join(spec.Arguments(source), " ")); err != nil {
				return WorkResult{}, err
			}
		}
	}
	return WorkResult{DidWork: len(spec.Sources) > 0}, nil
}

// Specs returns the specs compiled so far.
func (tc *DryRunToolChain) Specs() []*Spec {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return append([]*Spec(nil), tc.specs...)
}
