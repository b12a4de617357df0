package models

import "time"

// Assignment statuses.
const (
	AssignmentStatusDraft     = "draft"
	AssignmentStatusPublished = "published"
	AssignmentStatusClosed    = "closed"
)

// Assignment is a gradable task published inside a course.
type Assignment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	CourseID      uint      `gorm:"not null;index" json:"course_id"`
	LessonID      *uint     `gorm:"index" json:"lesson_id"`
	TeacherID     *uint     `gorm:"index" json:"teacher_id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	Instructions  string    `gorm:"type:text" json:"instructions"`
	DueDate       time.Time `gorm:"not null" json:"due_date"`
	MaxScore      float64   `gorm:"not null;default:100" json:"max_score"`
	AttachmentURL string    `gorm:"size:1024" json:"attachment_url"`
	Status        string    `gorm:"size:16;not null;default:draft;index" json:"status"`
	Audit
}

// IsPastDue returns true when the assignment deadline has already passed.
func (a Assignment) IsPastDue(reference time.Time) bool {
	return reference.After(a.DueDate)
}

// AcceptsSubmissions reports whether students may start work on the assignment.
func (a Assignment) AcceptsSubmissions() bool {
	return a.Status == AssignmentStatusPublished && !a.IsDeleted
}
