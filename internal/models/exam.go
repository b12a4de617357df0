package models

import (
	"time"

	"gorm.io/datatypes"

	"github.com/noah-isme/edu-center-api/internal/apperror"
)

// Exam types.
const (
	ExamTypeQuiz      = "quiz"
	ExamTypeMidterm   = "midterm"
	ExamTypeFinal     = "final"
	ExamTypePlacement = "placement"
	ExamTypePractice  = "practice"
)

// ExamStatus moves strictly forward: draft, published, active, closed, archived.
type ExamStatus string

// Exam statuses.
const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusPublished ExamStatus = "published"
	ExamStatusActive    ExamStatus = "active"
	ExamStatusClosed    ExamStatus = "closed"
	ExamStatusArchived  ExamStatus = "archived"
)

var examStatusRank = map[ExamStatus]int{
	ExamStatusDraft:     0,
	ExamStatusPublished: 1,
	ExamStatusActive:    2,
	ExamStatusClosed:    3,
	ExamStatusArchived:  4,
}

// Exam is a timed assessment belonging to a course.
type Exam struct {
	ID                    uint           `gorm:"primaryKey" json:"id"`
	CourseID              uint           `gorm:"not null;index" json:"course_id"`
	TeacherID             *uint          `gorm:"index" json:"teacher_id"`
	Title                 string         `gorm:"size:255;not null" json:"title"`
	Description           string         `gorm:"type:text" json:"description"`
	Instructions          string         `gorm:"type:text" json:"instructions"`
	Type                  string         `gorm:"size:16;not null;default:quiz" json:"type"`
	Status                ExamStatus     `gorm:"size:16;not null;default:draft;index" json:"status"`
	DurationMinutes       int            `gorm:"not null;default:0" json:"duration_minutes"`
	MaxScore              float64        `gorm:"not null;default:100" json:"max_score"`
	PassingScore          float64        `gorm:"not null;default:0" json:"passing_score"`
	StartDate             *time.Time     `json:"start_date"`
	EndDate               *time.Time     `json:"end_date"`
	Questions             datatypes.JSON `gorm:"type:json" json:"questions"`
	MaxAttempts           int            `gorm:"not null;default:1" json:"max_attempts"`
	AllowMultipleAttempts bool           `gorm:"not null;default:false" json:"allow_multiple_attempts"`
	ShuffleQuestions      bool           `gorm:"not null;default:false" json:"shuffle_questions"`
	ShowResults           bool           `gorm:"not null" json:"show_results"`
	Audit
}

// AdvanceTo moves the exam to a later status.
func (e *Exam) AdvanceTo(next ExamStatus) error {
	nextRank, ok := examStatusRank[next]
	if !ok {
		return apperror.Newf(apperror.KindValidation, "unknown exam status %q", next)
	}
	if nextRank <= examStatusRank[e.Status] {
		return apperror.Newf(apperror.KindInvalidState, "cannot move exam from %q to %q", e.Status, next)
	}
	e.Status = next
	return nil
}

// IsOpen reports whether attempts may be started at now.
func (e Exam) IsOpen(now time.Time) bool {
	if e.IsDeleted {
		return false
	}
	if e.Status != ExamStatusPublished && e.Status != ExamStatusActive {
		return false
	}
	if e.StartDate != nil && now.Before(*e.StartDate) {
		return false
	}
	if e.EndDate != nil && now.After(*e.EndDate) {
		return false
	}
	return true
}

// AttemptLimit is the number of attempts a student may start.
func (e Exam) AttemptLimit() int {
	if !e.AllowMultipleAttempts {
		return 1
	}
	if e.MaxAttempts <= 0 {
		return 1
	}
	return e.MaxAttempts
}

// ValidateWindow rejects an end date before the start date.
func (e Exam) ValidateWindow() error {
	if e.StartDate != nil && e.EndDate != nil && e.EndDate.Before(*e.StartDate) {
		return apperror.Validation("end date must not precede start date")
	}
	if e.PassingScore > e.MaxScore {
		return apperror.Validation("passing score must not exceed max score")
	}
	return nil
}

// ExamSubmission is one attempt of a student at an exam.
type ExamSubmission struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	ExamID           uint           `gorm:"not null;uniqueIndex:idx_exam_attempt;index" json:"exam_id"`
	StudentID        uint           `gorm:"not null;uniqueIndex:idx_exam_attempt;index" json:"student_id"`
	Attempt          int            `gorm:"not null;uniqueIndex:idx_exam_attempt" json:"attempt"`
	Answers          datatypes.JSON `gorm:"type:json" json:"answers"`
	StartedAt        time.Time      `gorm:"not null" json:"started_at"`
	TimeSpentSeconds int            `gorm:"not null;default:0" json:"time_spent_seconds"`
	Grading
	Audit
}
