package models

import "time"

// Submission content types.
const (
	SubmissionTypeText  = "text"
	SubmissionTypeFile  = "file"
	SubmissionTypeLink  = "link"
	SubmissionTypeOther = "other"
)

// Submission is a student's work for an assignment.
type Submission struct {
	ID           uint                     `gorm:"primaryKey" json:"id"`
	UserID       uint                     `gorm:"not null;index" json:"user_id"`
	CourseID     uint                     `gorm:"not null;index" json:"course_id"`
	LessonID     *uint                    `gorm:"index" json:"lesson_id"`
	AssignmentID uint                     `gorm:"not null;index" json:"assignment_id"`
	Type         string                   `gorm:"size:16;not null;default:text" json:"type"`
	Title        string                   `gorm:"size:255" json:"title"`
	Content      string                   `gorm:"type:text" json:"content"`
	FileURL      string                   `gorm:"size:1024" json:"file_url"`
	Grading
	Audit
	History      []SubmissionGradeHistory `gorm:"constraint:OnDelete:CASCADE" json:"history,omitempty"`
}

// SubmissionGradeHistory keeps every grade applied to a submission.
type SubmissionGradeHistory struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	SubmissionID uint      `gorm:"not null;index" json:"submission_id"`
	Score        float64   `gorm:"not null" json:"score"`
	MaxScore     float64   `gorm:"not null" json:"max_score"`
	Feedback     string    `gorm:"type:text" json:"feedback"`
	GradedBy     uint      `gorm:"not null" json:"graded_by"`
	GradedAt     time.Time `gorm:"not null" json:"graded_at"`
	Regrade      bool      `gorm:"not null;default:false" json:"regrade"`
}

// NewGradeHistory snapshots the current grade of a graded record.
func NewGradeHistory(submissionID uint, grading Grading, regrade bool) SubmissionGradeHistory {
	entry := SubmissionGradeHistory{
		SubmissionID: submissionID,
		Feedback:     grading.Feedback,
		Regrade:      regrade,
	}
	if grading.Score != nil {
		entry.Score = *grading.Score
	}
	if grading.MaxScore != nil {
		entry.MaxScore = *grading.MaxScore
	}
	if grading.GradedBy != nil {
		entry.GradedBy = *grading.GradedBy
	}
	if grading.GradedAt != nil {
		entry.GradedAt = *grading.GradedAt
	}
	return entry
}
