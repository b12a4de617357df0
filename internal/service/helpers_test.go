package service

import (
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/noah-isme/edu-center-api/internal/models"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func testValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}

func ptrUint(v uint) *uint {
	return &v
}

func ptrString(v string) *string {
	return &v
}

func ptrFloat(v float64) *float64 {
	return &v
}

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func actorWithRole(id uint, role string) Actor {
	return Actor{
		ID:          id,
		Roles:       []string{role},
		Permissions: models.DefaultRolePermissions()[role],
	}
}

func adminActor(id uint) Actor {
	return actorWithRole(id, models.RoleAdmin)
}

func staffActor(id uint) Actor {
	return actorWithRole(id, models.RoleStaff)
}

func teacherActor(id uint) Actor {
	return actorWithRole(id, models.RoleTeacher)
}

func studentActor(id uint) Actor {
	return actorWithRole(id, models.RoleStudent)
}
