package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Exercise struct {
	ID                uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID          uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	LessonID          uuid.UUID `gorm:"type:uuid;not null;index" json:"lesson_id"`
	Description       string    `gorm:"column:description;not null" json:"description"`
	ReferenceSolution string    `gorm:"column:reference_solution" json:"reference_solution,omitempty"`
	GradingCriteria   string    `gorm:"column:grading_criteria" json:"grading_criteria,omitempty"`
	DifficultyLevel   int       `gorm:"column:difficulty_level;not null;default:1" json:"difficulty_level"`
	CreatedAt         time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt         time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (Exercise) TableName() string { return "exercise" }

func (e *Exercise) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
