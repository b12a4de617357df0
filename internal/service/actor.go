package service

import (
	"strings"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/models"
)

// Actor is the authenticated identity performing an operation.
type Actor struct {
	ID          uint
	Email       string
	Roles       []string
	Permissions []string
}

// NewActor builds an actor from a user with its roles and permissions loaded.
func NewActor(user models.User) Actor {
	return Actor{
		ID:          user.ID,
		Email:       user.Email,
		Roles:       user.RoleNames(),
		Permissions: user.PermissionCodes(),
	}
}

// HasRole reports whether the actor holds role.
func (a Actor) HasRole(role string) bool {
	role = strings.ToLower(strings.TrimSpace(role))
	for _, held := range a.Roles {
		if strings.EqualFold(held, role) {
			return true
		}
	}
	return false
}

// Can reports whether the actor holds permission.
func (a Actor) Can(permission string) bool {
	for _, held := range a.Permissions {
		if held == permission {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the actor holds the admin role.
func (a Actor) IsAdmin() bool {
	return a.HasRole(models.RoleAdmin)
}

var rolePrecedence = []string{models.RoleAdmin, models.RoleStaff, models.RoleTeacher, models.RoleStudent}

// PrimaryRole returns the most privileged built-in role, used for activity attribution.
func (a Actor) PrimaryRole() string {
	for _, role := range rolePrecedence {
		if a.HasRole(role) {
			return role
		}
	}
	if len(a.Roles) > 0 {
		return a.Roles[0]
	}
	return ""
}

// Authorize admits the actor when its roles or permissions intersect required.
// An empty required set admits any authenticated actor.
func Authorize(actor Actor, required ...string) error {
	if actor.ID == 0 {
		return apperror.Unauthenticated("authentication required")
	}
	if len(required) == 0 {
		return nil
	}
	for _, item := range required {
		if actor.HasRole(item) || actor.Can(item) {
			return nil
		}
	}
	return apperror.Forbidden("insufficient permissions")
}

// authorizeOwnerOr admits the owner of a record or an actor holding one of required.
func authorizeOwnerOr(actor Actor, ownerID uint, required ...string) error {
	if actor.ID != 0 && actor.ID == ownerID {
		return nil
	}
	return Authorize(actor, required...)
}
