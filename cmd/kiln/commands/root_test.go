// Copyright 2025 Kiln Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/kilnbuild/kiln/pkg/core"
	"github.com/kilnbuild/kiln/pkg/modelerr"
	"github.com/kilnbuild/kiln/pkg/version"
	"github.com/kilnbuild/kiln/pkg/workspace"
)

var nativeRC, _ = filepath.Abs(filepath.Join("..", "..", "..", "pkg", "manifest", "testdata", "native-rc.yaml"))

// execute runs the root command with an isolated workspace and config
// directory and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(workspace.EnvWorkspace, filepath.Join(t.TempDir(), "ws"))
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")

	cmd := NewCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRootCommandPreparesWorkspace(t *testing.T) {
	ws := filepath.Join(t.TempDir(), "workspace")
	_, _, err := execute(t, "--workspace-dir", ws, "version", "--short")
	require.NoError(t, err)

	for _, sub := range workspace.Subdirectories() {
		_, err := os.Stat(filepath.Join(ws, sub))
		assert.NoError(t, err, "workspace subdir %s", sub)
	}
}

func TestRootCommandRejectsBrokenConfig(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("log: [unclosed\n"), 0o644))

	_, _, err := execute(t, "--config", cfg, "version")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load configuration")
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version", "--short")
	require.NoError(t, err)
	assert.Equal(t, version.Version+"\n", stdout)

	stdout, _, err = execute(t, "version", "-o", "json")
	require.NoError(t, err)
	var info version.Struct
	require.NoError(t, json.Unmarshal([]byte(stdout), &info))
	assert.Equal(t, version.APIVersion, info.APIVersion)
}

func TestModelInspect_JSON(t *testing.T) {
	stdout, _, err := execute(t, "model", "inspect", nativeRC, "-o", "json", "-q")
	require.NoError(t, err)

	var r core.Report
	require.NoError(t, json.Unmarshal([]byte(stdout), &r))
	require.Len(t, r.Plugins, 1)
	assert.Equal(t, core.PluginReport{ID: "native-rc", Version: "1.2.0"}, r.Plugins[0])
	require.Len(t, r.Languages, 1)
	assert.Equal(t, "rc", r.Languages[0].Name)
	assert.Equal(t, "example.com/native/rc.WindowsResourceSet", r.Languages[0].Type)
	assert.Equal(t, []string{"example.com/native/rc.NativeLibrarySpec"}, r.Components)
	assert.Len(t, r.Elements, 3)
	assert.True(t, r.Frozen)
}

func TestModelInspect_YAML(t *testing.T) {
	stdout, _, err := execute(t, "model", "inspect", nativeRC, "-o", "yaml", "--no-freeze")
	require.NoError(t, err)

	var r core.Report
	require.NoError(t, yaml.Unmarshal([]byte(stdout), &r))
	assert.Equal(t, "native-rc", r.Plugins[0].ID)
	assert.False(t, r.Frozen)
	assert.Contains(t, stdout, "implementation: example.com/native/rc.DefaultWindowsResourceSet")
}

func TestModelInspect_Table(t *testing.T) {
	stdout, _, err := execute(t, "model", "inspect", nativeRC)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Languages")
	assert.Contains(t, stdout, "IMPLEMENTATION")
	assert.Contains(t, stdout, "1 plugin(s), 1 language(s), 1 component type(s); session frozen")

	stdout, _, err = execute(t, "model", "inspect", nativeRC, "--no-freeze")
	require.NoError(t, err)
	assert.Contains(t, stdout, "session configurable")
}

func TestModelInspect_UsesConfiguredManifests(t *testing.T) {
	t.Setenv("KILN_MODEL_MANIFESTS", nativeRC)
	stdout, _, err := execute(t, "model", "inspect")
	require.NoError(t, err)
	assert.Contains(t, stdout, "native-rc")
}

func TestModelInspect_Errors(t *testing.T) {
	_, _, err := execute(t, "model", "inspect")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no plugin manifests given")

	_, _, err = execute(t, "model", "inspect", nativeRC, "-o", "xml")
	require.Error(t, err)

	invalid := filepath.Join(filepath.Dir(nativeRC), "invalid.yaml")
	_, _, err = execute(t, "model", "inspect", invalid)
	require.Error(t, err)
	assert.Equal(t, 2, ExitCode(err))
}

func TestModelValidate(t *testing.T) {
	stdout, _, err := execute(t, "model", "validate", nativeRC)
	require.NoError(t, err)
	assert.Contains(t, stdout, "is valid")

	invalid := filepath.Join(filepath.Dir(nativeRC), "invalid.yaml")
	stdout, _, err = execute(t, "model", "validate", nativeRC, invalid)
	require.Error(t, err)
	assert.ErrorIs(t, err, modelerr.ErrInvalidManifest)
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, err.Error(), "1 of 2 manifest(s) are invalid.")
	assert.Contains(t, stdout, "has 7 problem(s)")
	assert.Contains(t, stdout, "rule dup is declared more than once")
}

func TestModelValidate_DeclarationProblems(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dangling.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`plugin:
  id: dangling
  version: 0.1.0
types:
  - name: A
    kind: interface
    extends: [Missing]
`), 0o644))

	stdout, _, err := execute(t, "model", "validate", path, "-o", "json")
	require.Error(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, false, out["valid"])
	assert.Contains(t, out["problems"].([]any)[0], "Type A extends unknown type Missing.")
}

func TestModelValidate_RuleProblems(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad-rule.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`plugin:
  id: bad-rule
  version: 0.1.0
types:
  - name: Widget
    kind: interface
rules:
  - name: widgets
    model: language
    type: Widget
    language: widget
`), 0o644))

	stdout, _, err := execute(t, "model", "validate", path)
	require.Error(t, err)
	assert.ErrorIs(t, err, modelerr.ErrInvalidManifest)
	assert.Equal(t, 2, ExitCode(err))
	assert.Contains(t, stdout, "bad-rule#widgets is not a valid language model rule method.")
	assert.Contains(t, stdout, "'Widget' is not a subtype of")

	// the same manifest next to a valid one: only it is reported
	stdout, _, err = execute(t, "model", "validate", nativeRC, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 manifest(s) are invalid.")
	assert.Contains(t, stdout, "is valid")
}

func TestCompile(t *testing.T) {
	root := t.TempDir()
	src := filepath.Join(root, "src", "main")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "icons"), 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(src, "app.rc"), []byte("1 ICON app.ico\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "icons", "extra.RC"), []byte(""), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "readme.txt"), []byte(""), 0o644))
	out := filepath.Join(root, "out")

	stdout, _, err := execute(t, "compile", nativeRC,
		"--model.source_root", root,
		"--output-dir", out,
		"-D", "WINVER=0x0601", "-D", "NDEBUG",
		"-I", "/opt/include")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "rc /nologo /I "+src+" /I /opt/include /D NDEBUG /D WINVER=0x0601 /fo "+
		filepath.Join(out, "main", "app.res")+" "+filepath.Join(src, "app.rc"), lines[0])
	assert.Contains(t, lines[1], filepath.Join(src, "icons", "extra.RC"))
	assert.Equal(t, "Compiled 2 resource script(s) into "+filepath.Join(out, "main"), lines[2])
}

func TestCompile_Errors(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "main"), 0o750))

	_, _, err := execute(t, "compile", nativeRC, "--model.source_root", root, "--language", "c")
	require.Error(t, err)
	assert.Equal(t, 4, ExitCode(err))

	_, _, err = execute(t, "compile", nativeRC, "--model.source_root", root,
		"--output-dir", filepath.Join(root, "out"), "--target-platform", "linux-x86-64")
	require.Error(t, err)

	_, _, err = execute(t, "compile", nativeRC, "--model.source_root", root, "-D", "=1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid macro definition")
}

func TestCompile_NothingToDo(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "main"), 0o750))

	stdout, _, err := execute(t, "compile", nativeRC, "--model.source_root", root, "--output-dir", filepath.Join(root, "out"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "nothing to compile")
}

func TestOpenSession_Freeze(t *testing.T) {
	cfg := currentConfig(context.Background())
	cfg.Model.SourceRoot = t.TempDir()

	s, err := openSession(context.Background(), cfg, []string{nativeRC}, false)
	require.NoError(t, err)
	assert.False(t, s.Frozen())

	s, err = openSession(context.Background(), cfg, []string{nativeRC}, true)
	require.NoError(t, err)
	assert.True(t, s.Frozen())
}
