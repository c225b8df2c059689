package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	MaterialStatusUploaded   = "uploaded"
	MaterialStatusProcessing = "processing"
	MaterialStatusReady      = "ready"
	MaterialStatusError      = "error"
)

type MaterialFile struct {
	ID           uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	CourseID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"course_id"`
	Course       *Course        `gorm:"constraint:OnDelete:CASCADE;foreignKey:CourseID;references:ID" json:"course,omitempty"`
	SourceType   string         `gorm:"column:source_type;not null" json:"source_type"`
	SourceURL    string         `gorm:"column:source_url" json:"source_url,omitempty"`
	OriginalName string         `gorm:"column:original_name" json:"original_name,omitempty"`
	StorageKey   string         `gorm:"column:storage_key" json:"storage_key,omitempty"`
	MimeType     string         `gorm:"column:mime_type" json:"mime_type,omitempty"`
	SizeBytes    int64          `gorm:"column:size_bytes" json:"size_bytes,omitempty"`
	Status       string         `gorm:"column:status;not null;default:uploaded" json:"status"`
	ErrorMessage string         `gorm:"column:error_message" json:"error_message,omitempty"`
	Document     datatypes.JSON `gorm:"column:document;type:jsonb" json:"document,omitempty"`
	ProcessedAt  *time.Time     `gorm:"column:processed_at" json:"processed_at,omitempty"`
	CreatedAt    time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt    time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (MaterialFile) TableName() string { return "material_file" }

func (m *MaterialFile) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}
