package access

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestControllerRoles(t *testing.T) {
	c, err := NewController("adm", "op")
	require.NoError(t, err)

	// Admin passes every role check.
	require.NoError(t, c.RequireRole("adm", RoleAdmin))
	require.NoError(t, c.RequireRole("adm", RoleOperator))

	// Operator passes only the operator check.
	require.NoError(t, c.RequireRole("op", RoleOperator))
	require.ErrorIs(t, c.RequireRole("op", RoleAdmin), ErrUnauthorized)

	require.ErrorIs(t, c.RequireRole("rando", RoleOperator), ErrUnauthorized)
	require.ErrorIs(t, c.RequireRole("", RoleOperator), ErrUnauthorized)
}

func TestControllerConstruction(t *testing.T) {
	_, err := NewController("", "op")
	require.Error(t, err)
	_, err = NewController("adm", "")
	require.Error(t, err)
}

func TestPauseLifecycle(t *testing.T) {
	c, err := NewController("adm", "op")
	require.NoError(t, err)

	require.NoError(t, c.RequireActive())
	require.False(t, c.Paused())

	// Only the admin may pause.
	require.ErrorIs(t, c.Pause("op"), ErrUnauthorized)

	require.NoError(t, c.Pause("adm"))
	require.True(t, c.Paused())
	require.ErrorIs(t, c.RequireActive(), ErrPaused)

	// Pausing twice is an error, as is unpausing a running vault.
	require.ErrorIs(t, c.Pause("adm"), ErrPaused)

	require.NoError(t, c.Unpause("adm"))
	require.NoError(t, c.RequireActive())
	require.ErrorIs(t, c.Unpause("adm"), ErrNotPaused)
}
