package models

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/apperror"
)

// EnrollmentStatus is the lifecycle of an enrollment request.
type EnrollmentStatus string

// Enrollment request statuses. Only pending is non-terminal.
const (
	EnrollmentStatusPending   EnrollmentStatus = "pending"
	EnrollmentStatusApproved  EnrollmentStatus = "approved"
	EnrollmentStatusRejected  EnrollmentStatus = "rejected"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// IsTerminal reports whether no further transition is defined.
func (s EnrollmentStatus) IsTerminal() bool {
	return s != EnrollmentStatusPending
}

// EnrollmentRequest is a user's request to join a course. The partial unique
// index keeps at most one pending request per (user, course).
type EnrollmentRequest struct {
	ID                     uint             `gorm:"primaryKey" json:"id"`
	UserID                 uint             `gorm:"not null;index;index:idx_enrollment_pending,unique,where:status = 'pending'" json:"user_id"`
	CourseID               uint             `gorm:"not null;index;index:idx_enrollment_pending,unique,where:status = 'pending'" json:"course_id"`
	AssignedStaffID        *uint            `gorm:"index" json:"assigned_staff_id"`
	Status                 EnrollmentStatus `gorm:"size:16;not null;index" json:"status"`
	RequestDate            time.Time        `gorm:"not null" json:"request_date"`
	ResponseDate           *time.Time       `json:"response_date"`
	RequestNotes           string           `gorm:"type:text" json:"request_notes"`
	ResponseNotes          string           `gorm:"type:text" json:"response_notes"`
	AdditionalRequirements string           `gorm:"type:text" json:"additional_requirements"`
	CreatedAt              time.Time        `json:"created_at"`
	UpdatedAt              time.Time        `json:"updated_at"`
}

// NewEnrollmentRequest builds a pending request.
func NewEnrollmentRequest(userID, courseID uint, notes string, now time.Time) EnrollmentRequest {
	return EnrollmentRequest{
		UserID:       userID,
		CourseID:     courseID,
		Status:       EnrollmentStatusPending,
		RequestDate:  now,
		RequestNotes: notes,
	}
}

// Decide resolves a pending request to approved or rejected.
func (r *EnrollmentRequest) Decide(outcome EnrollmentStatus, staffID uint, notes string, now time.Time) error {
	if outcome != EnrollmentStatusApproved && outcome != EnrollmentStatusRejected {
		return apperror.Newf(apperror.KindValidation, "outcome must be approved or rejected, got %q", outcome)
	}
	if r.Status != EnrollmentStatusPending {
		return apperror.Newf(apperror.KindInvalidState, "enrollment request is already %s", r.Status)
	}

	handler := staffID
	responded := now
	r.Status = outcome
	r.AssignedStaffID = &handler
	r.ResponseDate = &responded
	r.ResponseNotes = notes
	return nil
}

// Cancel withdraws a pending request.
func (r *EnrollmentRequest) Cancel(notes string, now time.Time) error {
	if r.Status != EnrollmentStatusPending {
		return apperror.Newf(apperror.KindInvalidState, "enrollment request is already %s", r.Status)
	}

	responded := now
	r.Status = EnrollmentStatusCancelled
	r.ResponseDate = &responded
	if notes != "" {
		r.ResponseNotes = notes
	}
	return nil
}

// AssignHandler routes a pending request to a staff member.
func (r *EnrollmentRequest) AssignHandler(staffID uint) error {
	if r.Status != EnrollmentStatusPending {
		return apperror.Newf(apperror.KindInvalidState, "enrollment request is already %s", r.Status)
	}
	handler := staffID
	r.AssignedStaffID = &handler
	return nil
}
