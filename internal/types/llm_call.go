package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LLMCall struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	TenantID     *uuid.UUID `gorm:"type:uuid;index:idx_llm_call_tenant_created,priority:1" json:"tenant_id,omitempty"`
	Action       string     `gorm:"column:action;not null" json:"action"`
	Strategy     string     `gorm:"column:strategy;not null" json:"strategy"`
	Provider     string     `gorm:"column:provider;not null" json:"provider"`
	ModelID      string     `gorm:"column:model_id;not null" json:"model_id"`
	TokensIn     *int       `gorm:"column:tokens_in" json:"tokens_in,omitempty"`
	TokensOut    *int       `gorm:"column:tokens_out" json:"tokens_out,omitempty"`
	LatencyMS    int64      `gorm:"column:latency_ms;not null;default:0" json:"latency_ms"`
	CostUSD      *float64   `gorm:"column:cost_usd" json:"cost_usd,omitempty"`
	Success      bool       `gorm:"column:success;not null" json:"success"`
	ErrorMessage string     `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:now();index:idx_llm_call_tenant_created,priority:2" json:"created_at"`
}

func (LLMCall) TableName() string { return "llm_call" }

func (l *LLMCall) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
