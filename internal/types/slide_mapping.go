package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type SlideMapping struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID      uuid.UUID `gorm:"type:uuid;not null;index" json:"tenant_id"`
	CourseID      uuid.UUID `gorm:"type:uuid;not null;index" json:"course_id"`
	Course        *Course   `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	SlideNumber   int       `gorm:"column:slide_number;not null" json:"slide_number"`
	VideoTimecode string    `gorm:"column:video_timecode;not null" json:"video_timecode"`
	CreatedAt     time.Time `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt     time.Time `gorm:"not null;default:now()" json:"updated_at"`
}

func (SlideMapping) TableName() string { return "slide_mapping" }

func (s *SlideMapping) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
