package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Concept struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	LessonID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"lesson_id"`
	Title         string         `gorm:"column:title;not null" json:"title"`
	Definition    string         `gorm:"column:definition" json:"definition"`
	Examples      datatypes.JSON `gorm:"column:examples;type:jsonb" json:"examples"`
	Timecodes     datatypes.JSON `gorm:"column:timecodes;type:jsonb" json:"timecodes"`
	SlideRefs     datatypes.JSON `gorm:"column:slide_references;type:jsonb" json:"slide_references"`
	WebReferences datatypes.JSON `gorm:"column:web_references;type:jsonb" json:"web_references"`
	CreatedAt     time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Concept) TableName() string { return "concept" }

func (c *Concept) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}
