package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// RoleRepository persists roles and their permission bundles.
type RoleRepository interface {
	List(ctx context.Context) ([]models.Role, error)
	GetByName(ctx context.Context, name string) (models.Role, error)
	GetByNames(ctx context.Context, names []string) ([]models.Role, error)
	Create(ctx context.Context, role *models.Role) error
	EnsurePermissions(ctx context.Context, codes []string) ([]models.Permission, error)
	EnsureRole(ctx context.Context, name string, permissions []models.Permission) (models.Role, error)
	GetByID(ctx context.Context, id uint) (models.Role, error)
	Update(ctx context.Context, role *models.Role) error
	Delete(ctx context.Context, id uint) error
	CountHolders(ctx context.Context, id uint) (int64, error)
	AttachPermission(ctx context.Context, role *models.Role, permission models.Permission) error
	DetachPermission(ctx context.Context, role *models.Role, permission models.Permission) error

	ListPermissions(ctx context.Context) ([]models.Permission, error)
	GetPermission(ctx context.Context, id uint) (models.Permission, error)
	GetPermissionByCode(ctx context.Context, code string) (models.Permission, error)
	CreatePermission(ctx context.Context, permission *models.Permission) error
	UpdatePermission(ctx context.Context, permission *models.Permission) error
	DeletePermission(ctx context.Context, id uint) error
	WithTx(tx *gorm.DB) RoleRepository
}

type roleRepository struct {
	db *gorm.DB
}

// NewRoleRepository constructs a role repository.
func NewRoleRepository(db *gorm.DB) RoleRepository {
	return &roleRepository{db: db}
}

func (r *roleRepository) WithTx(tx *gorm.DB) RoleRepository {
	return &roleRepository{db: tx}
}

func (r *roleRepository) List(ctx context.Context) ([]models.Role, error) {
	var roles []models.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").Order("name ASC").Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) GetByName(ctx context.Context, name string) (models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").
		Where("name = ?", strings.ToLower(strings.TrimSpace(name))).
		First(&role).Error; err != nil {
		return models.Role{}, err
	}
	return role, nil
}

func (r *roleRepository) GetByNames(ctx context.Context, names []string) ([]models.Role, error) {
	normalized := make([]string, 0, len(names))
	for _, name := range names {
		if trimmed := strings.ToLower(strings.TrimSpace(name)); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	if len(normalized) == 0 {
		return []models.Role{}, nil
	}

	var roles []models.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").
		Where("name IN ?", normalized).
		Order("name ASC").
		Find(&roles).Error; err != nil {
		return nil, err
	}
	return roles, nil
}

func (r *roleRepository) Create(ctx context.Context, role *models.Role) error {
	return r.db.WithContext(ctx).Create(role).Error
}

func (r *roleRepository) EnsurePermissions(ctx context.Context, codes []string) ([]models.Permission, error) {
	permissions := make([]models.Permission, 0, len(codes))
	for _, code := range codes {
		module := code
		if idx := strings.Index(code, "."); idx > 0 {
			module = code[:idx]
		}

		permission := models.Permission{Code: code}
		if err := r.db.WithContext(ctx).
			Where(models.Permission{Code: code}).
			Attrs(models.Permission{Name: code, Module: module}).
			FirstOrCreate(&permission).Error; err != nil {
			return nil, err
		}
		permissions = append(permissions, permission)
	}
	return permissions, nil
}

func (r *roleRepository) EnsureRole(ctx context.Context, name string, permissions []models.Permission) (models.Role, error) {
	role := models.Role{Name: name}
	if err := r.db.WithContext(ctx).Where(models.Role{Name: name}).FirstOrCreate(&role).Error; err != nil {
		return models.Role{}, err
	}

	if len(permissions) > 0 {
		if err := r.db.WithContext(ctx).Model(&role).Association("Permissions").Append(permissions); err != nil {
			return models.Role{}, err
		}
	}

	return r.GetByName(ctx, name)
}

func (r *roleRepository) GetByID(ctx context.Context, id uint) (models.Role, error) {
	var role models.Role
	if err := r.db.WithContext(ctx).Preload("Permissions").First(&role, id).Error; err != nil {
		return models.Role{}, err
	}
	return role, nil
}

func (r *roleRepository) Update(ctx context.Context, role *models.Role) error {
	return r.db.WithContext(ctx).Model(role).Select("name", "description", "updated_at").Updates(role).Error
}

// Delete removes the role together with its permission and holder links.
func (r *roleRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("DELETE FROM role_permissions WHERE role_id = ?", id).Error; err != nil {
		return err
	}
	if err := db.Exec("DELETE FROM user_roles WHERE role_id = ?", id).Error; err != nil {
		return err
	}
	result := db.Delete(&models.Role{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountHolders counts users currently holding the role.
func (r *roleRepository) CountHolders(ctx context.Context, id uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("user_roles").Where("role_id = ?", id).Count(&count).Error
	return count, err
}

func (r *roleRepository) AttachPermission(ctx context.Context, role *models.Role, permission models.Permission) error {
	return r.db.WithContext(ctx).Model(role).Association("Permissions").Append(&permission)
}

func (r *roleRepository) DetachPermission(ctx context.Context, role *models.Role, permission models.Permission) error {
	return r.db.WithContext(ctx).Model(role).Association("Permissions").Delete(&permission)
}

func (r *roleRepository) ListPermissions(ctx context.Context) ([]models.Permission, error) {
	var permissions []models.Permission
	if err := r.db.WithContext(ctx).Order("module ASC, code ASC").Find(&permissions).Error; err != nil {
		return nil, err
	}
	return permissions, nil
}

func (r *roleRepository) GetPermission(ctx context.Context, id uint) (models.Permission, error) {
	var permission models.Permission
	err := r.db.WithContext(ctx).First(&permission, id).Error
	return permission, err
}

func (r *roleRepository) GetPermissionByCode(ctx context.Context, code string) (models.Permission, error) {
	var permission models.Permission
	err := r.db.WithContext(ctx).Where("code = ?", strings.ToLower(strings.TrimSpace(code))).First(&permission).Error
	return permission, err
}

func (r *roleRepository) CreatePermission(ctx context.Context, permission *models.Permission) error {
	return r.db.WithContext(ctx).Create(permission).Error
}

func (r *roleRepository) UpdatePermission(ctx context.Context, permission *models.Permission) error {
	return r.db.WithContext(ctx).Model(permission).Select("name", "module", "updated_at").Updates(permission).Error
}

// DeletePermission removes the permission and detaches it from every role.
func (r *roleRepository) DeletePermission(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("DELETE FROM role_permissions WHERE permission_id = ?", id).Error; err != nil {
		return err
	}
	result := db.Delete(&models.Permission{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
