package paths

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver(t *testing.T) {
	base := t.TempDir()
	r, err := NewResolver(base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Clean(base), r.Base())

	got, err := r.Resolve("src/main/rc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "src", "main", "rc"), got)

	abs := filepath.Join(base, "elsewhere", "..", "abs")
	got, err = r.Resolve(abs)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "abs"), got)

	_, err = r.Resolve("")
	assert.Error(t, err)

	all, err := r.ResolveAll("a", "b")
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(base, "a"), filepath.Join(base, "b")}, all)

	assert.True(t, r.Within("a/b"))
	assert.False(t, r.Within("../outside"))
}

func TestResolver_HomeExpansion(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)

	r, err := NewResolver(t.TempDir())
	require.NoError(t, err)
	got, err := r.Resolve("~/sources")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "sources"), got)
}

func TestResolver_DefaultsToWorkingDirectory(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	r, err := NewResolver("")
	require.NoError(t, err)
	assert.Equal(t, wd, r.Base())
}
