package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/database"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
	"github.com/noah-isme/edu-center-api/internal/repository"
)

// UserService manages accounts, role assignments and role definitions.
type UserService interface {
	GetMe(ctx context.Context, actor Actor) (dto.UserResponse, error)
	Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (dto.UserResponse, error)
	List(ctx context.Context, actor Actor, req dto.UserListRequest) (dto.ListResponse[dto.UserResponse], error)
	UpdateProfile(ctx context.Context, actor Actor, id uint, patch dto.UserProfilePatch) (dto.UserResponse, error)
	AssignRoles(ctx context.Context, actor Actor, id uint, req dto.AssignRolesRequest) (dto.UserResponse, error)
	SetActive(ctx context.Context, actor Actor, id uint, req dto.SetActiveRequest) (dto.UserResponse, error)
	Delete(ctx context.Context, actor Actor, id uint) error
	ListRoles(ctx context.Context, actor Actor) ([]dto.RoleResponse, error)
	CreateRole(ctx context.Context, actor Actor, req dto.RoleCreateRequest) (dto.RoleResponse, error)
	UpdateRole(ctx context.Context, actor Actor, id uint, patch dto.RolePatch) (dto.RoleResponse, error)
	DeleteRole(ctx context.Context, actor Actor, id uint) error
	AddRolePermission(ctx context.Context, actor Actor, id uint, req dto.RolePermissionRequest) (dto.RoleResponse, error)
	RemoveRolePermission(ctx context.Context, actor Actor, id uint, code string) (dto.RoleResponse, error)

	ListPermissions(ctx context.Context, actor Actor) ([]models.Permission, error)
	CreatePermission(ctx context.Context, actor Actor, req dto.PermissionCreateRequest) (models.Permission, error)
	UpdatePermission(ctx context.Context, actor Actor, id uint, patch dto.PermissionPatch) (models.Permission, error)
	DeletePermission(ctx context.Context, actor Actor, id uint) error
}

type userService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	transactor database.Transactor
	activity   ActivityRecorder
	validator  *validator.Validate
	logger     zerolog.Logger
	now        func() time.Time
}

// NewUserService constructs the user service.
func NewUserService(users repository.UserRepository, roles repository.RoleRepository, transactor database.Transactor, activity ActivityRecorder, validate *validator.Validate, logger zerolog.Logger) UserService {
	return &userService{
		users:      users,
		roles:      roles,
		transactor: transactor,
		activity:   activity,
		validator:  validate,
		logger:     logger.With().Str("component", "user_service").Logger(),
		now:        time.Now,
	}
}

func (s *userService) GetMe(ctx context.Context, actor Actor) (dto.UserResponse, error) {
	if err := Authorize(actor); err != nil {
		return dto.UserResponse{}, err
	}
	user, err := s.users.GetByID(ctx, actor.ID, false)
	if err != nil {
		return dto.UserResponse{}, apperror.FromStorage(err, "user")
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) Get(ctx context.Context, actor Actor, id uint, includeDeleted bool) (dto.UserResponse, error) {
	if err := authorizeOwnerOr(actor, id, models.PermissionUserManage); err != nil {
		return dto.UserResponse{}, err
	}
	if includeDeleted {
		if err := Authorize(actor, models.PermissionIncludeDeleted); err != nil {
			return dto.UserResponse{}, err
		}
	}

	user, err := s.users.GetByID(ctx, id, includeDeleted)
	if err != nil {
		return dto.UserResponse{}, apperror.FromStorage(err, "user")
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) List(ctx context.Context, actor Actor, req dto.UserListRequest) (dto.ListResponse[dto.UserResponse], error) {
	if err := Authorize(actor, models.PermissionUserManage); err != nil {
		return dto.ListResponse[dto.UserResponse]{}, err
	}
	if req.IncludeDeleted {
		if err := Authorize(actor, models.PermissionIncludeDeleted); err != nil {
			return dto.ListResponse[dto.UserResponse]{}, err
		}
	}

	offset, limit := req.Window()
	opts := repository.ListOptions{Offset: offset, Limit: limit, IncludeDeleted: req.IncludeDeleted}.Normalize()
	users, total, err := s.users.List(ctx, repository.UserFilter{
		Role:     req.Role,
		IsActive: req.IsActive,
		Search:   req.Search,
	}, opts)
	if err != nil {
		return dto.ListResponse[dto.UserResponse]{}, apperror.Internal(err)
	}

	return dto.NewListResponse(dto.NewUserResponseSlice(users), opts.Offset, opts.Limit, total), nil
}

func (s *userService) UpdateProfile(ctx context.Context, actor Actor, id uint, patch dto.UserProfilePatch) (dto.UserResponse, error) {
	if err := authorizeOwnerOr(actor, id, models.PermissionUserManage); err != nil {
		return dto.UserResponse{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, id, false)
	if err != nil {
		return dto.UserResponse{}, apperror.FromStorage(err, "user")
	}

	if patch.FullName != nil {
		user.FullName = strings.TrimSpace(*patch.FullName)
	}
	if patch.Phone != nil {
		user.Phone = strings.TrimSpace(*patch.Phone)
	}
	if patch.Username != nil {
		user.Username = strings.TrimSpace(*patch.Username)
	}
	user.UpdatedAt = s.now().UTC()

	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, apperror.FromStorage(err, "user")
	}
	return dto.NewUserResponse(user), nil
}

func (s *userService) AssignRoles(ctx context.Context, actor Actor, id uint, req dto.AssignRolesRequest) (dto.UserResponse, error) {
	if err := Authorize(actor, models.PermissionRoleManage); err != nil {
		return dto.UserResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.UserResponse{}, err
	}

	var user models.User
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		users := s.users.WithTx(tx)
		loaded, err := users.GetByID(ctx, id, false)
		if err != nil {
			return apperror.FromStorage(err, "user")
		}

		roles, err := s.roles.WithTx(tx).GetByNames(ctx, req.Roles)
		if err != nil {
			return apperror.Internal(err)
		}
		if len(roles) != len(uniqueNames(req.Roles)) {
			return apperror.NotFound("role")
		}

		if err := users.ReplaceRoles(ctx, &loaded, roles); err != nil {
			return apperror.Internal(err)
		}
		user, err = users.GetByID(ctx, id, false)
		return apperror.FromStorage(err, "user")
	})
	if err != nil {
		return dto.UserResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "user.roles_assigned",
		EntityType: "user",
		EntityID:   &user.ID,
		Metadata:   map[string]interface{}{"roles": user.RoleNames()},
	})

	return dto.NewUserResponse(user), nil
}

func (s *userService) SetActive(ctx context.Context, actor Actor, id uint, req dto.SetActiveRequest) (dto.UserResponse, error) {
	if err := Authorize(actor, models.PermissionUserManage); err != nil {
		return dto.UserResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.UserResponse{}, err
	}

	user, err := s.users.GetByID(ctx, id, false)
	if err != nil {
		return dto.UserResponse{}, apperror.FromStorage(err, "user")
	}

	user.IsActive = *req.IsActive
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, &user); err != nil {
		return dto.UserResponse{}, apperror.FromStorage(err, "user")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "user.active_changed",
		EntityType: "user",
		EntityID:   &user.ID,
		Metadata:   map[string]interface{}{"is_active": user.IsActive},
	})

	return dto.NewUserResponse(user), nil
}

func (s *userService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor, models.PermissionUserManage); err != nil {
		return err
	}

	user, err := s.users.GetByID(ctx, id, true)
	if err != nil {
		return apperror.FromStorage(err, "user")
	}
	if user.IsDeleted {
		return apperror.InvalidState("user is already deleted")
	}

	user.IsDeleted = true
	user.IsActive = false
	user.UpdatedAt = s.now().UTC()
	if err := s.users.Update(ctx, &user); err != nil {
		return apperror.FromStorage(err, "user")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "user.deleted",
		EntityType: "user",
		EntityID:   &user.ID,
	})
	return nil
}

func (s *userService) ListRoles(ctx context.Context, actor Actor) ([]dto.RoleResponse, error) {
	if err := Authorize(actor, models.PermissionRoleManage, models.PermissionUserManage); err != nil {
		return nil, err
	}

	roles, err := s.roles.List(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}

	responses := make([]dto.RoleResponse, 0, len(roles))
	for _, role := range roles {
		responses = append(responses, dto.NewRoleResponse(role))
	}
	return responses, nil
}

func (s *userService) CreateRole(ctx context.Context, actor Actor, req dto.RoleCreateRequest) (dto.RoleResponse, error) {
	if err := Authorize(actor, models.PermissionRoleManage); err != nil {
		return dto.RoleResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.RoleResponse{}, err
	}

	name := strings.ToLower(strings.TrimSpace(req.Name))
	var created models.Role
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		roles := s.roles.WithTx(tx)
		role := models.Role{Name: name, Description: strings.TrimSpace(req.Description)}
		if err := roles.Create(ctx, &role); err != nil {
			return apperror.FromStorage(err, "role")
		}

		permissions, err := roles.EnsurePermissions(ctx, req.Permissions)
		if err != nil {
			return apperror.Internal(err)
		}
		created, err = roles.EnsureRole(ctx, name, permissions)
		return apperror.FromStorage(err, "role")
	})
	if err != nil {
		return dto.RoleResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "role.created",
		EntityType: "role",
		EntityID:   &created.ID,
	})

	return dto.NewRoleResponse(created), nil
}

// UpdateRole edits a role. Built-in roles keep their names.
func (s *userService) UpdateRole(ctx context.Context, actor Actor, id uint, patch dto.RolePatch) (dto.RoleResponse, error) {
	if err := Authorize(actor, models.PermissionRoleManage); err != nil {
		return dto.RoleResponse{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return dto.RoleResponse{}, err
	}

	role, err := s.roles.GetByID(ctx, id)
	if err != nil {
		return dto.RoleResponse{}, apperror.FromStorage(err, "role")
	}
	if patch.Name != nil {
		name := strings.ToLower(strings.TrimSpace(*patch.Name))
		if name != role.Name && models.IsBuiltInRole(role.Name) {
			return dto.RoleResponse{}, apperror.InvalidState("built-in roles cannot be renamed")
		}
		role.Name = name
	}
	if patch.Description != nil {
		role.Description = strings.TrimSpace(*patch.Description)
	}
	role.UpdatedAt = s.now().UTC()

	if err := s.roles.Update(ctx, &role); err != nil {
		return dto.RoleResponse{}, apperror.FromStorage(err, "role")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "role.updated",
		EntityType: "role",
		EntityID:   &role.ID,
		Metadata:   map[string]interface{}{"name": role.Name},
	})
	return dto.NewRoleResponse(role), nil
}

// DeleteRole removes a custom role nobody holds.
func (s *userService) DeleteRole(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor, models.PermissionRoleManage); err != nil {
		return err
	}

	var deleted models.Role
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		roles := s.roles.WithTx(tx)
		role, err := roles.GetByID(ctx, id)
		if err != nil {
			return apperror.FromStorage(err, "role")
		}
		if models.IsBuiltInRole(role.Name) {
			return apperror.InvalidState("built-in roles cannot be deleted")
		}
		holders, err := roles.CountHolders(ctx, id)
		if err != nil {
			return apperror.Internal(err)
		}
		if holders > 0 {
			return apperror.Conflict("role is still assigned to users")
		}
		deleted = role
		return apperror.FromStorage(roles.Delete(ctx, id), "role")
	})
	if err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "role.deleted",
		EntityType: "role",
		EntityID:   &deleted.ID,
		Metadata:   map[string]interface{}{"name": deleted.Name},
	})
	return nil
}

// AddRolePermission grants a catalog permission to a role. Granting twice is a no-op.
func (s *userService) AddRolePermission(ctx context.Context, actor Actor, id uint, req dto.RolePermissionRequest) (dto.RoleResponse, error) {
	if err := Authorize(actor, models.PermissionRoleManage); err != nil {
		return dto.RoleResponse{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return dto.RoleResponse{}, err
	}

	var updated models.Role
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		roles := s.roles.WithTx(tx)
		role, err := roles.GetByID(ctx, id)
		if err != nil {
			return apperror.FromStorage(err, "role")
		}
		permission, err := roles.GetPermissionByCode(ctx, req.Permission)
		if err != nil {
			return apperror.FromStorage(err, "permission")
		}
		if err := roles.AttachPermission(ctx, &role, permission); err != nil {
			return apperror.Internal(err)
		}
		updated, err = roles.GetByID(ctx, id)
		return apperror.FromStorage(err, "role")
	})
	if err != nil {
		return dto.RoleResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "role.permission_added",
		EntityType: "role",
		EntityID:   &updated.ID,
		Metadata:   map[string]interface{}{"permission": req.Permission},
	})
	return dto.NewRoleResponse(updated), nil
}

// RemoveRolePermission revokes a permission from a role. The admin role
// always keeps role.manage so the role catalog stays reachable.
func (s *userService) RemoveRolePermission(ctx context.Context, actor Actor, id uint, code string) (dto.RoleResponse, error) {
	if err := Authorize(actor, models.PermissionRoleManage); err != nil {
		return dto.RoleResponse{}, err
	}
	code = strings.ToLower(strings.TrimSpace(code))

	var updated models.Role
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		roles := s.roles.WithTx(tx)
		role, err := roles.GetByID(ctx, id)
		if err != nil {
			return apperror.FromStorage(err, "role")
		}
		if role.Name == models.RoleAdmin && code == models.PermissionRoleManage {
			return apperror.InvalidState("the admin role must keep role.manage")
		}

		var granted *models.Permission
		for i := range role.Permissions {
			if role.Permissions[i].Code == code {
				granted = &role.Permissions[i]
				break
			}
		}
		if granted == nil {
			return apperror.NotFound("role permission")
		}
		if err := roles.DetachPermission(ctx, &role, *granted); err != nil {
			return apperror.Internal(err)
		}
		updated, err = roles.GetByID(ctx, id)
		return apperror.FromStorage(err, "role")
	})
	if err != nil {
		return dto.RoleResponse{}, err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "role.permission_removed",
		EntityType: "role",
		EntityID:   &updated.ID,
		Metadata:   map[string]interface{}{"permission": code},
	})
	return dto.NewRoleResponse(updated), nil
}

func (s *userService) ListPermissions(ctx context.Context, actor Actor) ([]models.Permission, error) {
	if err := Authorize(actor, models.PermissionRoleManage); err != nil {
		return nil, err
	}
	permissions, err := s.roles.ListPermissions(ctx)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return permissions, nil
}

func (s *userService) CreatePermission(ctx context.Context, actor Actor, req dto.PermissionCreateRequest) (models.Permission, error) {
	if err := Authorize(actor, models.PermissionRoleManage); err != nil {
		return models.Permission{}, err
	}
	if err := validatePayload(s.validator, req); err != nil {
		return models.Permission{}, err
	}

	code := strings.ToLower(strings.TrimSpace(req.Code))
	permission := models.Permission{
		Code:   code,
		Name:   strings.TrimSpace(req.Name),
		Module: strings.TrimSpace(req.Module),
	}
	if permission.Name == "" {
		permission.Name = code
	}
	if permission.Module == "" {
		permission.Module, _, _ = strings.Cut(code, ".")
	}

	if err := s.roles.CreatePermission(ctx, &permission); err != nil {
		return models.Permission{}, apperror.FromStorage(err, "permission")
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "permission.created",
		EntityType: "permission",
		EntityID:   &permission.ID,
		Metadata:   map[string]interface{}{"code": permission.Code},
	})
	return permission, nil
}

func (s *userService) UpdatePermission(ctx context.Context, actor Actor, id uint, patch dto.PermissionPatch) (models.Permission, error) {
	if err := Authorize(actor, models.PermissionRoleManage); err != nil {
		return models.Permission{}, err
	}
	if err := validatePayload(s.validator, patch); err != nil {
		return models.Permission{}, err
	}

	permission, err := s.roles.GetPermission(ctx, id)
	if err != nil {
		return models.Permission{}, apperror.FromStorage(err, "permission")
	}
	if patch.Name != nil {
		permission.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Module != nil {
		permission.Module = strings.TrimSpace(*patch.Module)
	}
	permission.UpdatedAt = s.now().UTC()

	if err := s.roles.UpdatePermission(ctx, &permission); err != nil {
		return models.Permission{}, apperror.FromStorage(err, "permission")
	}
	return permission, nil
}

// DeletePermission removes a custom permission from the catalog and from every role.
func (s *userService) DeletePermission(ctx context.Context, actor Actor, id uint) error {
	if err := Authorize(actor, models.PermissionRoleManage); err != nil {
		return err
	}

	var deleted models.Permission
	err := s.transactor.WithinTransaction(ctx, func(tx *gorm.DB) error {
		roles := s.roles.WithTx(tx)
		permission, err := roles.GetPermission(ctx, id)
		if err != nil {
			return apperror.FromStorage(err, "permission")
		}
		if models.IsBuiltInPermission(permission.Code) {
			return apperror.InvalidState("built-in permissions cannot be deleted")
		}
		deleted = permission
		return apperror.FromStorage(roles.DeletePermission(ctx, id), "permission")
	})
	if err != nil {
		return err
	}

	recordActivity(ctx, s.activity, s.logger, ActivityEntry{
		Actor:      actor,
		Action:     "permission.deleted",
		EntityType: "permission",
		EntityID:   &deleted.ID,
		Metadata:   map[string]interface{}{"code": deleted.Code},
	})
	return nil
}

func uniqueNames(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	unique := make([]string, 0, len(names))
	for _, name := range names {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		unique = append(unique, normalized)
	}
	return unique
}
