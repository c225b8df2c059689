package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ScopePrep  = "prep"
	ScopeCheck = "check"
)

type APIKey struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID       uuid.UUID      `gorm:"type:uuid;not null;index" json:"tenant_id"`
	Tenant         *Tenant        `gorm:"constraint:OnDelete:CASCADE;foreignKey:TenantID;references:ID" json:"tenant,omitempty"`
	KeyHash        string         `gorm:"column:key_hash;not null;uniqueIndex" json:"-"`
	KeyPrefix      string         `gorm:"column:key_prefix;not null" json:"key_prefix"`
	Label          string         `gorm:"column:label" json:"label"`
	Scopes         datatypes.JSON `gorm:"column:scopes;type:jsonb" json:"scopes"`
	RateLimitPrep  int            `gorm:"column:rate_limit_prep;not null;default:60" json:"rate_limit_prep"`
	RateLimitCheck int            `gorm:"column:rate_limit_check;not null;default:120" json:"rate_limit_check"`
	Active         bool           `gorm:"column:active;not null;default:true" json:"active"`
	ExpiresAt      *time.Time     `gorm:"column:expires_at" json:"expires_at,omitempty"`
	CreatedAt      time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (APIKey) TableName() string { return "api_key" }

func (k *APIKey) BeforeCreate(tx *gorm.DB) error {
	if k.ID == uuid.Nil {
		k.ID = uuid.New()
	}
	return nil
}

func (k *APIKey) ScopeList() []string {
	if len(k.Scopes) == 0 {
		return nil
	}
	var scopes []string
	if err := json.Unmarshal(k.Scopes, &scopes); err != nil {
		return nil
	}
	return scopes
}

func ScopesJSON(scopes ...string) datatypes.JSON {
	b, _ := json.Marshal(scopes)
	return datatypes.JSON(b)
}
