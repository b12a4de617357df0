package dto

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// EnrollmentCreateRequest asks to join a course.
type EnrollmentCreateRequest struct {
	CourseID uint   `json:"course_id" validate:"required,gt=0"`
	Notes    string `json:"notes" validate:"omitempty,max=2000"`
}

// EnrollmentDecisionRequest resolves a pending request.
type EnrollmentDecisionRequest struct {
	Outcome                string `json:"outcome" validate:"required,oneof=approved rejected"`
	Notes                  string `json:"notes" validate:"omitempty,max=2000"`
	AdditionalRequirements string `json:"additional_requirements" validate:"omitempty,max=2000"`
}

// EnrollmentAssignRequest routes a pending request to a staff member.
type EnrollmentAssignRequest struct {
	StaffID uint `json:"staff_id" validate:"required,gt=0"`
}

// EnrollmentCancelRequest withdraws a pending request.
type EnrollmentCancelRequest struct {
	Notes string `json:"notes" validate:"omitempty,max=2000"`
}

// EnrollmentListRequest filters enrollment requests.
type EnrollmentListRequest struct {
	ListQuery
	UserID          uint   `query:"user_id"`
	CourseID        uint   `query:"course_id"`
	AssignedStaffID uint   `query:"assigned_staff_id"`
	Status          string `query:"status" validate:"omitempty,oneof=pending approved rejected cancelled"`
}

// EnrollmentResponse serializes an enrollment request.
type EnrollmentResponse struct {
	ID                     uint       `json:"id"`
	UserID                 uint       `json:"user_id"`
	CourseID               uint       `json:"course_id"`
	AssignedStaffID        *uint      `json:"assigned_staff_id"`
	Status                 string     `json:"status"`
	RequestDate            time.Time  `json:"request_date"`
	ResponseDate           *time.Time `json:"response_date"`
	RequestNotes           string     `json:"request_notes"`
	ResponseNotes          string     `json:"response_notes"`
	AdditionalRequirements string     `json:"additional_requirements"`
}

// NewEnrollmentResponse converts a model into a DTO.
func NewEnrollmentResponse(model models.EnrollmentRequest) EnrollmentResponse {
	return EnrollmentResponse{
		ID:                     model.ID,
		UserID:                 model.UserID,
		CourseID:               model.CourseID,
		AssignedStaffID:        model.AssignedStaffID,
		Status:                 string(model.Status),
		RequestDate:            model.RequestDate,
		ResponseDate:           model.ResponseDate,
		RequestNotes:           model.RequestNotes,
		ResponseNotes:          model.ResponseNotes,
		AdditionalRequirements: model.AdditionalRequirements,
	}
}

// NewEnrollmentResponseSlice converts a slice of models into DTOs.
func NewEnrollmentResponseSlice(items []models.EnrollmentRequest) []EnrollmentResponse {
	responses := make([]EnrollmentResponse, 0, len(items))
	for _, item := range items {
		responses = append(responses, NewEnrollmentResponse(item))
	}
	return responses
}
