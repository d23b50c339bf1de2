// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package compile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnbuild/kiln/pkg/config"
	"github.com/kilnbuild/kiln/pkg/language"
	"github.com/kilnbuild/kiln/pkg/paths"
)

var win64 = Platform{OperatingSystem: "windows", Architecture: "x86-64"}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" Windows-x86-64 ")
	require.NoError(t, err)
	assert.Equal(t, win64, p)
	assert.Equal(t, "windows-x86-64", p.String())

	for _, bad := range []string{"", "windows", "-x86", "windows-"} {
		_, err := ParsePlatform(bad)
		assert.Error(t, err, bad)
	}
}

func TestSpec_Arguments(t *testing.T) {
	spec := &Spec{
		ObjectFileDir: "out",
		Includes:      []string{"inc"},
		Macros:        map[string]string{"B": "", "A": "1"},
		Args:          []string{"/v"},
	}
	assert.Equal(t, []string{
		"/nologo", "/v", "/I", "inc", "/D", "A=1", "/D", "B",
		"/fo", filepath.Join("out", "app.res"), filepath.Join("src", "app.rc"),
	}, spec.Arguments(filepath.Join("src", "app.rc")))
}

func TestNormalizeMacros(t *testing.T) {
	got, err := NormalizeMacros(map[string]any{
		"WINVER":  0x0601,
		"UNICODE": nil,
		"DEBUG":   true,
		"NAME":    "kiln",
		"RATIO":   1.5,
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"WINVER":  "1537",
		"UNICODE": "",
		"DEBUG":   "true",
		"NAME":    "kiln",
		"RATIO":   "1.5",
	}, got)

	_, err = NormalizeMacros(map[string]any{"BAD": struct{}{}})
	assert.Error(t, err)
	_, err = NormalizeMacros(map[string]any{" ": "x"})
	assert.Error(t, err)
}

type fakeToolChain struct {
	platforms map[Platform]bool
	specs     []*Spec
	result    WorkResult
	err       error
}

func (f *fakeToolChain) Name() string       { return "fake" }
func (f *fakeToolChain) OutputType() string { return "fake-rc" }

func (f *fakeToolChain) Select(p Platform) (PlatformToolChain, error) {
	if !f.platforms[p] {
		return nil, ErrPlatformNotSupported
	}
	return f, nil
}

func (f *fakeToolChain) NewCompiler(*Spec) (Compiler, error) {
	return CompilerFunc(func(_ context.Context, spec *Spec) (WorkResult, error) {
		f.specs = append(f.specs, spec)
		return f.result, f.err
	}), nil
}

func newTask(t *testing.T, tc ToolChain) *ResourceCompile {
	t.Helper()
	return &ResourceCompile{
		ToolChain:      tc,
		TargetPlatform: win64,
		OutputDir:      filepath.Join(t.TempDir(), "out"),
		TempDir:        "tmp",
		Includes:       []string{"inc"},
		Source:         []string{"a.rc", "b.rc"},
		Macros:         map[string]any{"WINVER": 0x0601},
		CompilerArgs:   []string{"/v"},
	}
}

func TestExecute_BuildsSpecFromTaskState(t *testing.T) {
	tc := &fakeToolChain{platforms: map[Platform]bool{win64: true}, result: WorkResult{DidWork: true}}
	task := newTask(t, tc)

	result, err := task.Execute(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, result.DidWork)
	assert.True(t, task.DidWork())
	assert.Equal(t, "fake-rc:windows-x86-64", task.OutputType())

	require.Len(t, tc.specs, 1)
	spec := tc.specs[0]
	assert.Equal(t, "tmp", spec.TempDir)
	assert.Equal(t, task.OutputDir, spec.ObjectFileDir)
	assert.Equal(t, []string{"inc"}, spec.Includes)
	assert.Equal(t, []string{"a.rc", "b.rc"}, spec.Sources)
	assert.Equal(t, map[string]string{"WINVER": "1537"}, spec.Macros)
	assert.Equal(t, []string{"/v"}, spec.Args)
	assert.True(t, spec.Incremental)

	info, err := os.Stat(task.OutputDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExecute_FullRebuildRemovesStaleOutputs(t *testing.T) {
	tc := &fakeToolChain{platforms: map[Platform]bool{win64: true}}
	task := newTask(t, tc)
	require.NoError(t, os.MkdirAll(task.OutputDir, 0o750))
	stale := filepath.Join(task.OutputDir, "old.res")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o600))

	result, err := task.Execute(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, result.DidWork)
	assert.FileExists(t, stale, "incremental compilation keeps outputs")

	result, err = task.Execute(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.DidWork, "removing stale outputs is work")
	assert.NoFileExists(t, stale)
}

func TestExecute_Errors(t *testing.T) {
	tc := &fakeToolChain{platforms: map[Platform]bool{win64: true}}

	_, err := (&ResourceCompile{OutputDir: t.TempDir()}).Execute(context.Background(), false)
	assert.Error(t, err)

	_, err = (&ResourceCompile{ToolChain: tc}).Execute(context.Background(), false)
	assert.Error(t, err)

	task := newTask(t, tc)
	task.TargetPlatform = Platform{OperatingSystem: "linux", Architecture: "arm64"}
	_, err = task.Execute(context.Background(), false)
	assert.ErrorIs(t, err, ErrPlatformNotSupported)

	task = newTask(t, tc)
	task.Macros = map[string]any{"BAD": struct{}{}}
	_, err = task.Execute(context.Background(), false)
	assert.Error(t, err)

	boom := errors.New("boom")
	failing := &fakeToolChain{platforms: map[Platform]bool{win64: true}, err: boom}
	task = newTask(t, failing)
	_, err = task.Execute(context.Background(), true)
	assert.ErrorIs(t, err, boom)
	assert.False(t, task.DidWork())
}

func TestExecute_OutputLocked(t *testing.T) {
	tc := &fakeToolChain{platforms: map[Platform]bool{win64: true}}
	task := newTask(t, tc)
	task.LockTimeout = 100 * time.Millisecond
	require.NoError(t, os.MkdirAll(task.OutputDir, 0o750))

	held := flock.New(filepath.Join(task.OutputDir, lockFileName))
	locked, err := held.TryLock()
	require.NoError(t, err)
	require.True(t, locked)

	_, err = task.Execute(context.Background(), false)
	assert.ErrorIs(t, err, ErrOutputLocked)
	assert.Empty(t, tc.specs)

	require.NoError(t, held.Unlock())
	_, err = task.Execute(context.Background(), false)
	assert.NoError(t, err)
	assert.Len(t, tc.specs, 1)
}

func TestDryRunToolChain(t *testing.T) {
	var out bytes.Buffer
	tc := &DryRunToolChain{Out: &out}
	task := newTask(t, tc)
	task.Macros = nil

	result, err := task.Execute(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, result.DidWork)
	require.Len(t, tc.Specs(), 1)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "rc /nologo /v /I inc /fo "))
	assert.True(t, strings.HasSuffix(lines[1], " b.rc"))

	_, err = tc.Select(Platform{OperatingSystem: "macos", Architecture: "arm64"})
	assert.ErrorIs(t, err, ErrPlatformNotSupported)

	empty := newTask(t, &DryRunToolChain{})
	empty.Source = nil
	result, err = empty.Execute(context.Background(), true)
	require.NoError(t, err)
	assert.False(t, result.DidWork)
}

func TestFromSourceSet(t *testing.T) {
	root := t.TempDir()
	resolver, err := paths.NewResolver(root)
	require.NoError(t, err)

	set := &language.BaseSourceSet{}
	require.NoError(t, set.Initialize("main", "rc", resolver))
	for _, f := range []string{"b.rc", "nested/a.RC", "readme.txt"} {
		p := filepath.Join(set.SourceDir(), f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, nil, 0o600))
	}

	cfg := config.DefaultConfig().Compile
	cfg.OutputDir = filepath.Join(root, "build")
	cfg.Includes = []string{"sdk"}
	cfg.Macros = map[string]any{"A": 1}

	task, err := FromSourceSet(set, cfg, &DryRunToolChain{})
	require.NoError(t, err)
	assert.Equal(t, win64, task.TargetPlatform)
	assert.Equal(t, filepath.Join(root, "build", "main"), task.OutputDir)
	assert.Equal(t, []string{set.SourceDir(), "sdk"}, task.Includes)
	assert.Equal(t, []string{
		filepath.Join(set.SourceDir(), "b.rc"),
		filepath.Join(set.SourceDir(), "nested", "a.RC"),
	}, task.Source)
	assert.Equal(t, cfg.LockTimeout, task.LockTimeout)

	cfg.TargetPlatform = "bogus"
	_, err = FromSourceSet(set, cfg, &DryRunToolChain{})
	assert.Error(t, err)

	missing := &language.BaseSourceSet{}
	require.NoError(t, missing.Initialize("absent", "rc", resolver))
	_, err = FromSourceSet(missing, config.DefaultConfig().Compile, &DryRunToolChain{})
	assert.Error(t, err)
}
