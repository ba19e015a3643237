package env_vars

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/weave/internal/registry"
)

func TestEnv(t *testing.T) {
	m := &Module{Environ: func() []string {
		return []string{"HOME=/home/ada", "EMPTY=", "BROKEN"}
	}}
	ctx := context.Background()

	all, err := m.Env(ctx, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"HOME": "/home/ada", "EMPTY": ""}, all)

	home, err := m.Env(ctx, map[string]any{"Name": "HOME"})
	require.NoError(t, err)
	require.Equal(t, "/home/ada", home)

	missing, err := m.Env(ctx, map[string]any{"0": "MISSING"})
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestRegister(t *testing.T) {
	reg := registry.New().Use(&Module{})
	_, ok := reg.ResolveFormula("env", "anything")
	require.True(t, ok)
}
