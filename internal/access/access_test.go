package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sejf-plikow/internal/models"
)

func TestRequireRole(t *testing.T) {
	require.NoError(t, RequireRole(models.RoleAdmin, models.RoleAdmin, models.RolePremium))
	require.NoError(t, RequireRole(models.RolePremium, models.RoleAdmin, models.RolePremium))
	require.ErrorIs(t, RequireRole(models.RoleGuest, models.RoleAdmin, models.RolePremium), ErrNotPermitted)
}

func TestRequireResourceAccess(t *testing.T) {
	require.NoError(t, RequireResourceAccess(models.RoleGuest, ResourceFiles, ActionRead))
	require.NoError(t, RequireResourceAccess(models.RoleAdmin, ResourceAudit, ActionRead))

	require.ErrorIs(t, RequireResourceAccess(models.RoleGuest, ResourceAudit, ActionRead), ErrNotPermitted)
	require.ErrorIs(t, RequireResourceAccess(models.RolePremium, ResourceUsers, ActionWrite), ErrNotPermitted)

	// Unknown resources and actions fail closed.
	require.ErrorIs(t, RequireResourceAccess(models.RoleAdmin, Resource("unknown"), ActionRead), ErrNotPermitted)
	require.ErrorIs(t, RequireResourceAccess(models.RoleAdmin, ResourceAudit, ActionDelete), ErrNotPermitted)
}

func TestRequireOwnership(t *testing.T) {
	owner := func() (int64, error) { return 42, nil }

	require.NoError(t, RequireOwnership(models.RolePremium, 42, owner))
	require.ErrorIs(t, RequireOwnership(models.RolePremium, 7, owner), ErrNotPermitted)

	// Admin passes without even resolving the owner.
	require.NoError(t, RequireOwnership(models.RoleAdmin, 7, func() (int64, error) {
		t.Fatal("resolver should not be called for admin")
		return 0, nil
	}))

	resolveErr := errors.New("lookup failed")
	err := RequireOwnership(models.RoleGuest, 7, func() (int64, error) { return 0, resolveErr })
	require.ErrorIs(t, err, resolveErr)
}
