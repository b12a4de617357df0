package models

import (
	"time"

	"github.com/noah-isme/edu-center-api/internal/apperror"
)

// Audit carries the attribution and soft-delete columns shared by domain entities.
// Timestamps are stamped explicitly by the service layer, not by GORM hooks.
type Audit struct {
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime:false" json:"updated_at"`
	CreatedBy *uint     `gorm:"index" json:"created_by"`
	UpdatedBy *uint     `json:"updated_by"`
	IsDeleted bool      `gorm:"not null;default:false;index" json:"is_deleted"`
}

// Audited is implemented by every model embedding Audit.
type Audited interface {
	AuditFields() *Audit
}

// AuditFields exposes the embedded audit block.
func (a *Audit) AuditFields() *Audit {
	return a
}

// StampCreated records the creating actor.
func (a *Audit) StampCreated(actorID uint, now time.Time) {
	creator := actorID
	updater := actorID
	a.CreatedAt = now
	a.UpdatedAt = now
	a.CreatedBy = &creator
	a.UpdatedBy = &updater
}

// StampUpdated records the mutating actor. updated_at never moves backwards
// and never precedes created_at.
func (a *Audit) StampUpdated(actorID uint, now time.Time) {
	if now.Before(a.CreatedAt) {
		now = a.CreatedAt
	}
	if now.Before(a.UpdatedAt) {
		now = a.UpdatedAt
	}
	updater := actorID
	a.UpdatedAt = now
	a.UpdatedBy = &updater
}

// MarkDeleted soft-deletes the entity. There is no way back.
func (a *Audit) MarkDeleted(actorID uint, now time.Time) error {
	if a.IsDeleted {
		return apperror.InvalidState("entity is already deleted")
	}
	a.IsDeleted = true
	a.StampUpdated(actorID, now)
	return nil
}
