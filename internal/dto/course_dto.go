package dto

import "time"

// CourseCreateRequest describes a new course.
type CourseCreateRequest struct {
	Code          string     `json:"code" validate:"required,min=2,max=32"`
	Title         string     `json:"title" validate:"required,min=3,max=255"`
	Description   string     `json:"description" validate:"omitempty"`
	Level         string     `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	TeacherID     *uint      `json:"teacher_id" validate:"omitempty,gt=0"`
	Credits       int        `json:"credits" validate:"gte=0"`
	MaxStudents   int        `json:"max_students" validate:"gte=0"`
	Price         float64    `json:"price" validate:"gte=0"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	ImageURL      string     `json:"image_url" validate:"omitempty,url"`
	Syllabus      string     `json:"syllabus"`
	Prerequisites string     `json:"prerequisites"`
	Location      string     `json:"location" validate:"omitempty,max=255"`
}

// CoursePatch is the typed partial update for a course.
type CoursePatch struct {
	Title         *string    `json:"title" validate:"omitempty,min=3,max=255"`
	Description   *string    `json:"description"`
	Level         *string    `json:"level" validate:"omitempty,oneof=beginner intermediate advanced"`
	TeacherID     *uint      `json:"teacher_id" validate:"omitempty,gt=0"`
	Credits       *int       `json:"credits" validate:"omitempty,gte=0"`
	MaxStudents   *int       `json:"max_students" validate:"omitempty,gte=0"`
	Price         *float64   `json:"price" validate:"omitempty,gte=0"`
	StartDate     *time.Time `json:"start_date"`
	EndDate       *time.Time `json:"end_date"`
	ImageURL      *string    `json:"image_url" validate:"omitempty,url"`
	Syllabus      *string    `json:"syllabus"`
	Prerequisites *string    `json:"prerequisites"`
	Location      *string    `json:"location" validate:"omitempty,max=255"`
	Status        *string    `json:"status" validate:"omitempty,oneof=draft published archived"`
}

// CourseListRequest filters the course listing.
type CourseListRequest struct {
	ListQuery
	Status    string `query:"status"`
	TeacherID uint   `query:"teacher_id"`
	Search    string `query:"search"`
}

// LessonCreateRequest describes a new lesson.
type LessonCreateRequest struct {
	Title         string `json:"title" validate:"required,min=3,max=255"`
	Content       string `json:"content"`
	Order         int    `json:"order" validate:"gte=0"`
	Type          string `json:"type" validate:"omitempty,oneof=lecture lab workshop reading video"`
	EstimatedTime int    `json:"estimated_time" validate:"gte=0"`
}

// LessonPatch is the typed partial update for a lesson.
type LessonPatch struct {
	Title         *string `json:"title" validate:"omitempty,min=3,max=255"`
	Content       *string `json:"content"`
	Order         *int    `json:"order" validate:"omitempty,gte=0"`
	Type          *string `json:"type" validate:"omitempty,oneof=lecture lab workshop reading video"`
	Status        *string `json:"status" validate:"omitempty,oneof=draft published"`
	EstimatedTime *int    `json:"estimated_time" validate:"omitempty,gte=0"`
}

// MaterialCreateRequest attaches a link; uploads arrive as multipart with the same fields.
type MaterialCreateRequest struct {
	LessonID     *uint  `form:"lesson_id" json:"lesson_id" validate:"omitempty,gt=0"`
	Title        string `form:"title" json:"title" validate:"required,min=2,max=255"`
	Description  string `form:"description" json:"description"`
	MaterialType string `form:"material_type" json:"material_type" validate:"omitempty,oneof=document video link image other"`
	URL          string `form:"url" json:"url" validate:"omitempty,url"`
}

// StaffAssignmentCreateRequest attaches a staff member to a course.
type StaffAssignmentCreateRequest struct {
	StaffID   uint       `json:"staff_id" validate:"required,gt=0"`
	LessonID  *uint      `json:"lesson_id" validate:"omitempty,gt=0"`
	Role      string     `json:"role" validate:"required,oneof=instructor teacher_assistant grader mentor"`
	IsPrimary bool       `json:"is_primary"`
	Notes     string     `json:"notes"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

// StaffAssignmentPatch is the typed partial update for a staff assignment.
type StaffAssignmentPatch struct {
	Role      *string `json:"role" validate:"omitempty,oneof=instructor teacher_assistant grader mentor"`
	Status    *string `json:"status" validate:"omitempty,oneof=pending assigned in_progress completed"`
	IsPrimary *bool   `json:"is_primary"`
	Notes     *string `json:"notes"`
}

// CourseMemberPatch changes a member's role or suspends the membership.
type CourseMemberPatch struct {
	Role     *string `json:"role" validate:"omitempty,oneof=student auditor"`
	IsActive *bool   `json:"is_active"`
}
