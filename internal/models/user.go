package models

import (
	"sort"
	"time"
)

// Built-in role names seeded at startup.
const (
	RoleAdmin   = "admin"
	RoleStaff   = "staff"
	RoleTeacher = "teacher"
	RoleStudent = "student"
)

// Permission codes checked by the authorization gate.
const (
	PermissionUserManage        = "user.manage"
	PermissionRoleManage        = "role.manage"
	PermissionCourseManage      = "course.manage"
	PermissionLessonManage      = "lesson.manage"
	PermissionMaterialManage    = "material.manage"
	PermissionStaffManage       = "staff.manage"
	PermissionEnrollmentDecide  = "enrollment.decide"
	PermissionAssignmentManage  = "assignment.manage"
	PermissionSubmissionGrade   = "submission.grade"
	PermissionExamManage        = "exam.manage"
	PermissionPaymentManage     = "payment.manage"
	PermissionForumModerate     = "forum.moderate"
	PermissionMessageBroadcast  = "message.broadcast"
	PermissionActivityView      = "activity.view"
	PermissionIncludeDeleted    = "record.include_deleted"
	PermissionNotificationWrite = "notification.write"
	PermissionReportView        = "report.view"
)

// User is the actor authenticated by the API.
type User struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	Email        string     `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Username     string     `gorm:"size:64;not null;uniqueIndex" json:"username"`
	PasswordHash string     `gorm:"size:255;not null" json:"-"`
	FullName     string     `gorm:"size:255" json:"full_name"`
	Phone        string     `gorm:"size:32" json:"phone"`
	IsActive     bool       `gorm:"not null" json:"is_active"`
	IsDeleted    bool       `gorm:"not null;default:false;index" json:"is_deleted"`
	LastLoginAt  *time.Time `json:"last_login_at"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	Roles        []Role     `gorm:"many2many:user_roles;" json:"roles"`
}

// CanAuthenticate reports whether the account may hold a session.
func (u User) CanAuthenticate() bool {
	return u.IsActive && !u.IsDeleted
}

// RoleNames returns the sorted role names held by the user.
func (u User) RoleNames() []string {
	names := make([]string, 0, len(u.Roles))
	for _, role := range u.Roles {
		names = append(names, role.Name)
	}
	sort.Strings(names)
	return names
}

// PermissionCodes returns the sorted, de-duplicated permission codes granted by the user's roles.
func (u User) PermissionCodes() []string {
	seen := make(map[string]struct{})
	codes := make([]string, 0)
	for _, role := range u.Roles {
		for _, permission := range role.Permissions {
			if _, ok := seen[permission.Code]; ok {
				continue
			}
			seen[permission.Code] = struct{}{}
			codes = append(codes, permission.Code)
		}
	}
	sort.Strings(codes)
	return codes
}

// Role is a named permission bundle.
type Role struct {
	ID          uint         `gorm:"primaryKey" json:"id"`
	Name        string       `gorm:"size:64;not null;uniqueIndex" json:"name"`
	Description string       `gorm:"size:255" json:"description"`
	Permissions []Permission `gorm:"many2many:role_permissions;" json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Permission is a single capability code.
type Permission struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:64;not null;uniqueIndex" json:"code"`
	Name      string    `gorm:"size:128" json:"name"`
	Module    string    `gorm:"size:64" json:"module"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsBuiltInRole reports whether name is one of the seeded roles.
func IsBuiltInRole(name string) bool {
	_, ok := DefaultRolePermissions()[name]
	return ok
}

// IsBuiltInPermission reports whether code is checked by the authorization gate.
func IsBuiltInPermission(code string) bool {
	for _, held := range DefaultRolePermissions()[RoleAdmin] {
		if held == code {
			return true
		}
	}
	return false
}

// DefaultRolePermissions lists the permission bundles seeded for built-in roles.
func DefaultRolePermissions() map[string][]string {
	return map[string][]string{
		RoleAdmin: {
			PermissionUserManage, PermissionRoleManage, PermissionCourseManage, PermissionLessonManage,
			PermissionMaterialManage, PermissionStaffManage, PermissionEnrollmentDecide,
			PermissionAssignmentManage, PermissionSubmissionGrade, PermissionExamManage,
			PermissionPaymentManage, PermissionForumModerate, PermissionMessageBroadcast,
			PermissionActivityView, PermissionIncludeDeleted, PermissionNotificationWrite,
			PermissionReportView,
		},
		RoleStaff: {
			PermissionCourseManage, PermissionLessonManage, PermissionMaterialManage, PermissionStaffManage,
			PermissionEnrollmentDecide, PermissionPaymentManage, PermissionForumModerate,
			PermissionMessageBroadcast, PermissionActivityView, PermissionReportView,
		},
		RoleTeacher: {
			PermissionLessonManage, PermissionMaterialManage, PermissionAssignmentManage,
			PermissionSubmissionGrade, PermissionExamManage, PermissionForumModerate,
			PermissionMessageBroadcast,
		},
		RoleStudent: {},
	}
}
