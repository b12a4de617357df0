package models

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/apperror"
)

// GradingStatus is the lifecycle shared by assignment and exam submissions.
type GradingStatus string

const (
	// GradingStatusDraft is the initial (started) state.
	GradingStatusDraft GradingStatus = "draft"
	// GradingStatusSubmitted indicates the work was handed in on time.
	GradingStatusSubmitted GradingStatus = "submitted"
	// GradingStatusLate indicates the work was handed in after the deadline.
	GradingStatusLate GradingStatus = "late"
	// GradingStatusGraded indicates the work has a final score.
	GradingStatusGraded GradingStatus = "graded"
)

// Grading is the status and score cluster embedded in gradable records.
// Score, GradedBy and GradedAt stay nil until the status reaches graded.
type Grading struct {
	Status      GradingStatus `gorm:"size:16;not null;index" json:"status"`
	IsLate      bool          `gorm:"not null;default:false" json:"is_late"`
	SubmittedAt *time.Time    `json:"submitted_at"`
	Score       *float64      `json:"score"`
	MaxScore    *float64      `json:"max_score"`
	Feedback    string        `gorm:"type:text" json:"feedback"`
	GradedBy    *uint         `json:"graded_by"`
	GradedAt    *time.Time    `json:"graded_at"`
}

// IsGraded reports whether the record has a final grade.
func (g Grading) IsGraded() bool {
	return g.Status == GradingStatusGraded
}

// Submit moves a draft to submitted, or to late when now is past deadline.
func (g *Grading) Submit(now time.Time, deadline *time.Time) error {
	if g.Status != GradingStatusDraft {
		return apperror.Newf(apperror.KindInvalidState, "cannot submit from status %q", g.Status)
	}

	submittedAt := now
	g.SubmittedAt = &submittedAt
	if deadline != nil && now.After(*deadline) {
		g.Status = GradingStatusLate
		g.IsLate = true
		return nil
	}

	g.Status = GradingStatusSubmitted
	return nil
}

// Grade records the first grade of submitted or late work.
func (g *Grading) Grade(graderID uint, score, maxScore float64, feedback string, now time.Time) error {
	switch g.Status {
	case GradingStatusSubmitted, GradingStatusLate:
	case GradingStatusGraded:
		return apperror.InvalidState("submission is already graded, use regrade")
	default:
		return apperror.Newf(apperror.KindInvalidState, "cannot grade from status %q", g.Status)
	}

	if err := ValidateScore(score, maxScore); err != nil {
		return err
	}

	g.apply(graderID, score, maxScore, feedback, now)
	return nil
}

// Regrade replaces the grade of already graded work.
func (g *Grading) Regrade(graderID uint, score, maxScore float64, feedback string, now time.Time) error {
	if g.Status != GradingStatusGraded {
		return apperror.Newf(apperror.KindInvalidState, "cannot regrade from status %q", g.Status)
	}

	if err := ValidateScore(score, maxScore); err != nil {
		return err
	}

	g.apply(graderID, score, maxScore, feedback, now)
	return nil
}

func (g *Grading) apply(graderID uint, score, maxScore float64, feedback string, now time.Time) {
	gradedScore := score
	gradedMax := maxScore
	grader := graderID
	gradedAt := now

	g.Score = &gradedScore
	g.MaxScore = &gradedMax
	g.Feedback = feedback
	g.GradedBy = &grader
	g.GradedAt = &gradedAt
	g.Status = GradingStatusGraded
}

// ValidateScore enforces 0 <= score <= maxScore with a positive maximum.
func ValidateScore(score, maxScore float64) error {
	if maxScore <= 0 {
		return apperror.Validation("max score must be greater than zero")
	}
	if score < 0 || score > maxScore {
		return apperror.Newf(apperror.KindValidation, "score must be between 0 and %g", maxScore)
	}
	return nil
}
