package appctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilnbuild/kiln/pkg/config"
)

func TestWithConfig_RoundTrip(t *testing.T) {
	mgr := config.NewManager()
	require.NoError(t, mgr.LoadWithSources([]config.ConfigSource{&config.DefaultSource{}}))

	got, ok := Config(WithConfig(context.Background(), mgr))
	require.True(t, ok)
	assert.Same(t, mgr, got)
	assert.Equal(t, "windows-x86-64", got.Get().Compile.TargetPlatform)

	//nolint:staticcheck
	got, ok = Config(WithConfig(nil, mgr))
	require.True(t, ok)
	assert.Same(t, mgr, got)
}

func TestConfig_Missing(t *testing.T) {
	tests := map[string]context.Context{
		"empty context": context.Background(),
		"nil manager":   context.WithValue(context.Background(), configKey, (*config.Manager)(nil)),
		"wrong type":    context.WithValue(context.Background(), configKey, "kiln.yaml"),
		"session key":   context.WithValue(context.Background(), sessionKey, config.NewManager()),
	}
	for name, ctx := range tests {
		t.Run(name, func(t *testing.T) {
			_, ok := Config(ctx)
			assert.False(t, ok)
		})
	}

	//nolint:staticcheck
	_, ok := Config(nil)
	assert.False(t, ok)
}
