package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	StructureRunQueued    = "queued"
	StructureRunRunning   = "running"
	StructureRunSucceeded = "succeeded"
	StructureRunFailed    = "failed"
)

type StructureRun struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"tenant_id"`
	CourseID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"course_id"`
	Course       *Course    `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	Status       string     `gorm:"column:status;not null;default:queued" json:"status"`
	Fingerprint  string     `gorm:"column:fingerprint;not null;index" json:"fingerprint"`
	ErrorMessage string     `gorm:"column:error_message" json:"error_message,omitempty"`
	StartedAt    *time.Time `gorm:"column:started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time `gorm:"column:finished_at" json:"finished_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (StructureRun) TableName() string { return "structure_run" }

func (r *StructureRun) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
