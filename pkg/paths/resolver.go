package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kilnbuild/kiln/pkg/modeltype"
)

// ResolverType is the service type under which the file resolver is registered.
var ResolverType = modeltype.Interface("FileResolver", modeltype.InPackage("kiln/paths"))

// Resolver turns relative paths into absolute ones under a base directory.
type Resolver struct {
	base string
}

// NewResolver creates a resolver rooted at base. An empty base means the
// current working directory.
func NewResolver(base string) (*Resolver, error) {
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolve working directory: %w", err)
		}
		base = wd
	}
	abs, err := filepath.Abs(base)
	if err != nil {
		return nil, fmt.Errorf("resolve base directory %s: %w", base, err)
	}
	return &Resolver{base: filepath.Clean(abs)}, nil
}

// Base returns the absolute base directory.
func (r *Resolver) Base() string { return r.base }

// Resolve returns p as an absolute, cleaned path. Relative paths are joined to
// the base directory; a leading "~/" expands to the user's home directory.
func (r *Resolver) Resolve(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("cannot resolve an empty path")
	}
	if p == "~" || strings.HasPrefix(p, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("expand %s: %w", p, err)
		}
		p = filepath.Join(home, strings.TrimPrefix(strings.TrimPrefix(p, "~"), "/"))
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p), nil
	}
	return filepath.Join(r.base, p), nil
}

// ResolveAll resolves every path in ps.
func (r *Resolver) ResolveAll(ps ...string) ([]string, error) {
	out := make([]string, 0, len(ps))
	for _, p := range ps {
		abs, err := r.Resolve(p)
		if err != nil {
			return nil, err
		}
		out = append(out, abs)
	}
	return out, nil
}

// Within reports whether p resolves to a location inside the base directory.
func (r *Resolver) Within(p string) bool {
	abs, err := r.Resolve(p)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(r.base, abs)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
