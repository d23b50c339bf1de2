// Package workspace prepares the per-user directory kiln keeps scratch
// state in: the compiler temp dir and output locks.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kilnbuild/kiln/pkg/paths"
)

// Workspace subdirectories.
const (
	TmpDir   = "tmp"
	LocksDir = "locks"
)

var defaultSubdirs = []string{TmpDir, LocksDir}

// EnvWorkspace overrides the default workspace root.
const EnvWorkspace = "KILN_WORKSPACE"

// Prepare ensures the workspace root and required subdirectories exist.
// It returns the absolute path to the workspace root that was prepared.
func Prepare(root string) (string, error) {
	if root == "" {
		root = defaultRoot()
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve workspace path: %w", err)
	}
	if err := os.MkdirAll(absRoot, 0o750); err != nil {
		return "", fmt.Errorf("create workspace root: %w", err)
	}
	for _, sub := range defaultSubdirs {
		if err := os.MkdirAll(filepath.Join(absRoot, sub), 0o750); err != nil {
			return "", fmt.Errorf("create workspace subdir %q: %w", sub, err)
		}
	}
	return absRoot, nil
}

type ctxKey string

const workspaceRootKey ctxKey = "workspace.root"

// WithContext stores the prepared workspace root on the provided context.
func WithContext(ctx context.Context, root string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, workspaceRootKey, root)
}

// FromContext extracts the workspace root from context.
func FromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	if root, ok := ctx.Value(workspaceRootKey).(string); ok && root != "" {
		return root, true
	}
	return "", false
}

func defaultRoot() string {
	if dir := os.Getenv(EnvWorkspace); dir != "" {
		return dir
	}
	return filepath.Join(paths.CacheDir(), "workspace")
}

// Subdirectories returns the list of default workspace subdirectories.
func Subdirectories() []string {
	return append([]string(nil), defaultSubdirs...)
}
