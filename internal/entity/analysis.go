package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Analysis stores one fraud-analysis run over an invoice.
type Analysis struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	InvoiceID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"invoice_id"`
	Status         string          `gorm:"not null" json:"status"` // success | warning | error
	Message        string          `json:"message"`
	Issues         json.RawMessage `gorm:"type:jsonb" json:"issues,omitempty"`
	AnomalousItems json.RawMessage `gorm:"type:jsonb" json:"anomalous_items,omitempty"`
	ContractStart  *time.Time      `json:"contract_start,omitempty"`
	ContractEnd    *time.Time      `json:"contract_end,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

func (Analysis) TableName() string { return "analyses" }

// BeforeCreate assigns the UUID primary key.
func (a *Analysis) BeforeCreate(_ *gorm.DB) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	return nil
}
