// Package access evaluates role, resource and ownership gates. All three
// gates fail with the same external error so a denial never reveals which
// roles an endpoint accepts.
package access

import (
	"errors"

	"sejf-plikow/internal/models"
)

// ErrNotPermitted is the uniform failure for every gate.
var ErrNotPermitted = errors.New("not permitted")

type Resource string

const (
	ResourceFiles Resource = "files"
	ResourceUsers Resource = "users"
	ResourceAudit Resource = "audit"
)

type Action string

const (
	ActionRead   Action = "read"
	ActionWrite  Action = "write"
	ActionDelete Action = "delete"
)

// permissions is the static resource-class × action table.
var permissions = map[Resource]map[Action][]models.Role{
	ResourceFiles: {
		ActionRead:   {models.RoleAdmin, models.RolePremium, models.RoleGuest},
		ActionWrite:  {models.RoleAdmin, models.RolePremium, models.RoleGuest},
		ActionDelete: {models.RoleAdmin, models.RolePremium, models.RoleGuest},
	},
	ResourceUsers: {
		ActionRead:   {models.RoleAdmin},
		ActionWrite:  {models.RoleAdmin},
		ActionDelete: {models.RoleAdmin},
	},
	ResourceAudit: {
		ActionRead: {models.RoleAdmin},
	},
}

// RequireRole passes when the caller's role is in allowed.
func RequireRole(role models.Role, allowed ...models.Role) error {
	for _, a := range allowed {
		if role == a {
			return nil
		}
	}
	return ErrNotPermitted
}

// RequireResourceAccess consults the static permission table.
func RequireResourceAccess(role models.Role, resource Resource, action Action) error {
	actions, ok := permissions[resource]
	if !ok {
		return ErrNotPermitted
	}
	roles, ok := actions[action]
	if !ok {
		return ErrNotPermitted
	}
	return RequireRole(role, roles...)
}

// RequireOwnership passes for the resource owner; admin always passes.
func RequireOwnership(role models.Role, userID int64, resolveOwner func() (int64, error)) error {
	if role == models.RoleAdmin {
		return nil
	}
	ownerID, err := resolveOwner()
	if err != nil {
		return err
	}
	if ownerID != userID {
		return ErrNotPermitted
	}
	return nil
}
