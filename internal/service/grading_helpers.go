package service

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/apperror"
	"github.com/noah-isme/edu-center-api/internal/dto"
	"github.com/noah-isme/edu-center-api/internal/models"
)

// applyGrade grades or regrades in memory and returns the status the stored
// row must still have for the write to succeed.
func applyGrade(grading *models.Grading, regrade bool, graderID uint, req dto.GradeRequest, defaultMax float64, now time.Time) (models.GradingStatus, error) {
	if req.Score == nil {
		return "", apperror.Validation("score is required")
	}

	maxScore := defaultMax
	if req.MaxScore != nil {
		maxScore = *req.MaxScore
	}

	expected := grading.Status
	var err error
	if regrade {
		err = grading.Regrade(graderID, *req.Score, maxScore, req.Feedback, now)
	} else {
		err = grading.Grade(graderID, *req.Score, maxScore, req.Feedback, now)
	}
	return expected, err
}

func gradeOperation(regrade bool) string {
	if regrade {
		return "regrade"
	}
	return "grade"
}
