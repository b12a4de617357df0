package models

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/apperror"
)

// Course statuses.
const (
	CourseStatusDraft     = "draft"
	CourseStatusPublished = "published"
	CourseStatusArchived  = "archived"
)

// Course is the aggregate that owns lessons, materials, assignments and exams.
type Course struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	Code          string     `gorm:"size:32;not null;uniqueIndex" json:"code"`
	Title         string     `gorm:"size:255;not null" json:"title"`
	Description   string     `gorm:"type:text" json:"description"`
	Level         string     `gorm:"size:32" json:"level"`
	TeacherID     *uint      `gorm:"index" json:"teacher_id"`
	Credits       int        `gorm:"not null;default:0" json:"credits"`
	MaxStudents   int        `gorm:"not null;default:0" json:"max_students"`
	Price         float64    `gorm:"not null;default:0" json:"price"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	ImageURL      string     `gorm:"size:512" json:"image_url"`
	Syllabus      string     `gorm:"type:text" json:"syllabus"`
	Prerequisites string     `gorm:"type:text" json:"prerequisites"`
	Location      string     `gorm:"size:255" json:"location"`
	Status        string     `gorm:"size:16;not null;default:draft;index" json:"status"`
	IsPublished   bool       `gorm:"not null;default:false" json:"is_published"`
	Audit
}

// ValidateSchedule rejects an end date before the start date.
func (c Course) ValidateSchedule() error {
	if c.StartDate != nil && c.EndDate != nil && c.EndDate.Before(*c.StartDate) {
		return apperror.Validation("end date must not precede start date")
	}
	return nil
}

// HasCapacity reports whether another member fits; zero max students means unlimited.
func (c Course) HasCapacity(members int64) bool {
	return c.MaxStudents <= 0 || members < int64(c.MaxStudents)
}

// Course member roles.
const (
	MemberRoleStudent = "student"
	MemberRoleAuditor = "auditor"
)

// CourseMember records a user admitted to a course.
type CourseMember struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CourseID  uint      `gorm:"not null;uniqueIndex:idx_course_member" json:"course_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_course_member;index" json:"user_id"`
	Role      string    `gorm:"size:32;not null;default:student" json:"role"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	JoinedAt  time.Time `gorm:"not null" json:"joined_at"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lesson statuses.
const (
	LessonStatusDraft     = "draft"
	LessonStatusPublished = "published"
)

// Lesson is a unit of content inside a course.
type Lesson struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	CourseID      uint   `gorm:"not null;index" json:"course_id"`
	Title         string `gorm:"size:255;not null" json:"title"`
	Content       string `gorm:"type:text" json:"content"`
	Order         int    `gorm:"column:lesson_order;not null;default:0" json:"order"`
	Type          string `gorm:"size:32;not null;default:lecture" json:"type"`
	Status        string `gorm:"size:16;not null;default:draft" json:"status"`
	EstimatedTime int    `gorm:"not null;default:0" json:"estimated_time"`
	Audit
}

// Teaching material types.
const (
	MaterialTypeDocument = "document"
	MaterialTypeVideo    = "video"
	MaterialTypeLink     = "link"
	MaterialTypeImage    = "image"
	MaterialTypeOther    = "other"
)

// TeachingMaterial is a file or link attached to a course or lesson.
type TeachingMaterial struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	CourseID     uint   `gorm:"not null;index" json:"course_id"`
	LessonID     *uint  `gorm:"index" json:"lesson_id"`
	Title        string `gorm:"size:255;not null" json:"title"`
	Description  string `gorm:"type:text" json:"description"`
	MaterialType string `gorm:"size:16;not null" json:"material_type"`
	URL          string `gorm:"size:1024;not null" json:"url"`
	MimeType     string `gorm:"size:128" json:"mime_type"`
	SizeBytes    int64  `gorm:"not null;default:0" json:"size_bytes"`
	Audit
}

// Staff assignment roles and statuses.
const (
	StaffRoleInstructor       = "instructor"
	StaffRoleTeacherAssistant = "teacher_assistant"
	StaffRoleGrader           = "grader"
	StaffRoleMentor           = "mentor"

	StaffStatusPending    = "pending"
	StaffStatusAssigned   = "assigned"
	StaffStatusInProgress = "in_progress"
	StaffStatusCompleted  = "completed"
)

// StaffAssignment attaches a staff member to a course, optionally scoped to a lesson.
type StaffAssignment struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	StaffID   uint       `gorm:"not null;index" json:"staff_id"`
	CourseID  uint       `gorm:"not null;index" json:"course_id"`
	LessonID  *uint      `gorm:"index" json:"lesson_id"`
	Role      string     `gorm:"size:32;not null" json:"role"`
	Status    string     `gorm:"size:16;not null;default:pending" json:"status"`
	IsPrimary bool       `gorm:"not null;default:false" json:"is_primary"`
	Notes     string     `gorm:"type:text" json:"notes"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Audit
}

var staffTransitions = map[string][]string{
	StaffStatusPending:    {StaffStatusAssigned, StaffStatusCompleted},
	StaffStatusAssigned:   {StaffStatusInProgress, StaffStatusCompleted},
	StaffStatusInProgress: {StaffStatusCompleted},
}

// TransitionTo moves the assignment forward; completed is terminal.
func (s *StaffAssignment) TransitionTo(next string) error {
	if s.Status == next {
		return nil
	}
	for _, allowed := range staffTransitions[s.Status] {
		if allowed == next {
			s.Status = next
			return nil
		}
	}
	return apperror.Newf(apperror.KindInvalidState, "cannot move staff assignment from %q to %q", s.Status, next)
}
