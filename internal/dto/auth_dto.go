package dto

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// RegisterRequest creates a new student account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Username string `json:"username" validate:"required,alphanum,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,min=2,max=255"`
	Phone    string `json:"phone" validate:"omitempty,max=32"`
}

// LoginRequest exchanges credentials for tokens.
type LoginRequest struct {
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required"`
	RememberMe bool   `json:"remember_me"`
}

// RefreshRequest exchanges a refresh token for a new pair.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// TokenResponse is returned by login and refresh.
type TokenResponse struct {
	AccessToken      string       `json:"access_token"`
	AccessExpiresAt  time.Time    `json:"access_expires_at"`
	RefreshToken     string       `json:"refresh_token"`
	RefreshExpiresAt time.Time    `json:"refresh_expires_at"`
	TokenType        string       `json:"token_type"`
	User             UserResponse `json:"user"`
}

// UserResponse is the public representation of an actor.
type UserResponse struct {
	ID          uint       `json:"id"`
	Email       string     `json:"email"`
	Username    string     `json:"username"`
	FullName    string     `json:"full_name"`
	Phone       string     `json:"phone"`
	IsActive    bool       `json:"is_active"`
	IsDeleted   bool       `json:"is_deleted"`
	Roles       []string   `json:"roles"`
	Permissions []string   `json:"permissions,omitempty"`
	LastLoginAt *time.Time `json:"last_login_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NewUserResponse converts a model into a DTO.
func NewUserResponse(user models.User) UserResponse {
	return UserResponse{
		ID:          user.ID,
		Email:       user.Email,
		Username:    user.Username,
		FullName:    user.FullName,
		Phone:       user.Phone,
		IsActive:    user.IsActive,
		IsDeleted:   user.IsDeleted,
		Roles:       user.RoleNames(),
		Permissions: user.PermissionCodes(),
		LastLoginAt: user.LastLoginAt,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
	}
}

// NewUserResponseSlice converts a slice of models into DTOs.
func NewUserResponseSlice(users []models.User) []UserResponse {
	responses := make([]UserResponse, 0, len(users))
	for _, user := range users {
		responses = append(responses, NewUserResponse(user))
	}
	return responses
}

// UserListRequest filters the user listing.
type UserListRequest struct {
	ListQuery
	Role     string `query:"role"`
	IsActive *bool  `query:"is_active"`
	Search   string `query:"search"`
}

// UserProfilePatch is the typed partial update for a profile.
type UserProfilePatch struct {
	FullName *string `json:"full_name" validate:"omitempty,min=2,max=255"`
	Phone    *string `json:"phone" validate:"omitempty,max=32"`
	Username *string `json:"username" validate:"omitempty,alphanum,min=3,max=64"`
}

// AssignRolesRequest replaces the role set of a user.
type AssignRolesRequest struct {
	Roles []string `json:"roles" validate:"required,min=1,dive,required,max=64"`
}

// SetActiveRequest toggles an account.
type SetActiveRequest struct {
	IsActive *bool `json:"is_active" validate:"required"`
}

// RoleCreateRequest defines a new permission bundle.
type RoleCreateRequest struct {
	Name        string   `json:"name" validate:"required,min=2,max=64"`
	Description string   `json:"description" validate:"omitempty,max=255"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,required,max=64"`
}

// RolePatch renames or re-describes a role.
type RolePatch struct {
	Name        *string `json:"name" validate:"omitempty,min=2,max=64"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

// RolePermissionRequest names a catalog permission to grant or revoke.
type RolePermissionRequest struct {
	Permission string `json:"permission" validate:"required,max=64"`
}

// PermissionCreateRequest adds a permission to the catalog.
type PermissionCreateRequest struct {
	Code   string `json:"code" validate:"required,min=3,max=64"`
	Name   string `json:"name" validate:"omitempty,max=128"`
	Module string `json:"module" validate:"omitempty,max=64"`
}

// PermissionPatch updates the descriptive fields of a permission. Codes are immutable.
type PermissionPatch struct {
	Name   *string `json:"name" validate:"omitempty,max=128"`
	Module *string `json:"module" validate:"omitempty,max=64"`
}

// RoleResponse serializes a role.
type RoleResponse struct {
	ID          uint     `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

// NewRoleResponse converts a model into a DTO.
func NewRoleResponse(role models.Role) RoleResponse {
	permissions := make([]string, 0, len(role.Permissions))
	for _, permission := range role.Permissions {
		permissions = append(permissions, permission.Code)
	}
	return RoleResponse{
		ID:          role.ID,
		Name:        role.Name,
		Description: role.Description,
		Permissions: permissions,
	}
}
