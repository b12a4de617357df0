package database

import (
	"gorm.io/gorm"

	"github.com/noah-isme/edu-center-api/internal/models"
)

// Models lists every persisted model in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Permission{},
		&models.Role{},
		&models.User{},
		&models.Course{},
		&models.CourseMember{},
		&models.Lesson{},
		&models.TeachingMaterial{},
		&models.StaffAssignment{},
		&models.EnrollmentRequest{},
		&models.Assignment{},
		&models.Submission{},
		&models.SubmissionGradeHistory{},
		&models.Exam{},
		&models.ExamSubmission{},
		&models.Payment{},
		&models.Message{},
		&models.ForumTopic{},
		&models.ForumPost{},
		&models.Notification{},
		&models.ActivityLog{},
	}
}

// Migrate creates or updates the schema for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}
