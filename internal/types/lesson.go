package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Lesson struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID           uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	CourseModuleID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_module_id"`
	CourseModule       *CourseModule  `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseModuleID;references:ID" json:"course_module,omitempty"`
	Title              string         `gorm:"column:title;not null" json:"title"`
	Order              int            `gorm:"column:order_index;not null;default:0" json:"order"`
	VideoStartTimecode string         `gorm:"column:video_start_timecode" json:"video_start_timecode,omitempty"`
	VideoEndTimecode   string         `gorm:"column:video_end_timecode" json:"video_end_timecode,omitempty"`
	SlideRangeStart    *int           `gorm:"column:slide_range_start" json:"slide_range_start,omitempty"`
	SlideRangeEnd      *int           `gorm:"column:slide_range_end" json:"slide_range_end,omitempty"`
	Metadata           datatypes.JSON `gorm:"column:metadata;type:jsonb" json:"metadata"`
	Concepts           []Concept      `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"concepts,omitempty"`
	Exercises          []Exercise     `gorm:"constraint:OnDelete:CASCADE;foreignKey:LessonID;references:ID" json:"exercises,omitempty"`
	CreatedAt          time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt          time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (Lesson) TableName() string { return "lesson" }

func (l *Lesson) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
