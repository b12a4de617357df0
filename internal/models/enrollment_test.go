package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-center-api/internal/apperror"
)

func TestEnrollmentRequestDecideApproves(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	request := NewEnrollmentRequest(7, 3, "please", now)

	require.Equal(t, EnrollmentStatusPending, request.Status)
	require.Nil(t, request.ResponseDate)

	require.NoError(t, request.Decide(EnrollmentStatusApproved, 9, "welcome", now.Add(time.Hour)))
	require.Equal(t, EnrollmentStatusApproved, request.Status)
	require.NotNil(t, request.ResponseDate)
	require.Equal(t, uint(9), *request.AssignedStaffID)

	err := request.Decide(EnrollmentStatusRejected, 9, "", now)
	require.True(t, errors.Is(err, apperror.ErrInvalidState))
	require.Equal(t, EnrollmentStatusApproved, request.Status)
}

func TestEnrollmentRequestRejectsUnknownOutcome(t *testing.T) {
	request := NewEnrollmentRequest(7, 3, "", time.Now())

	err := request.Decide(EnrollmentStatusCancelled, 9, "", time.Now())
	require.True(t, errors.Is(err, apperror.ErrValidation))
	require.Equal(t, EnrollmentStatusPending, request.Status)
	require.Nil(t, request.ResponseDate)
}

func TestEnrollmentRequestCancelIsTerminal(t *testing.T) {
	now := time.Now()
	request := NewEnrollmentRequest(7, 3, "", now)

	require.NoError(t, request.Cancel("changed my mind", now))
	require.Equal(t, EnrollmentStatusCancelled, request.Status)
	require.NotNil(t, request.ResponseDate)
	require.True(t, request.Status.IsTerminal())

	require.True(t, errors.Is(request.AssignHandler(4), apperror.ErrInvalidState))
	require.True(t, errors.Is(request.Cancel("", now), apperror.ErrInvalidState))
}
