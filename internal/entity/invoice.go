package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LineItem is one row of an invoice's item table.
type LineItem struct {
	Description  string   `json:"description"`
	Quantity     float64  `json:"quantity"`
	UnitPrice    *float64 `json:"unit_price"`
	AnomalyScore *float64 `json:"anomaly_score,omitempty"`
	IsAnomaly    bool     `json:"is_anomaly,omitempty"`
}

// Invoice is the structured record extracted from a document.
type Invoice struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID    uuid.UUID       `gorm:"type:uuid;index;not null" json:"document_id"`
	JobID         uuid.UUID       `gorm:"type:uuid;index;not null" json:"job_id"`
	InvoiceNumber string          `json:"invoice_number,omitempty"`
	SupplierName  string          `json:"supplier_name,omitempty"`
	InvoiceDate   string          `json:"invoice_date,omitempty"`
	DueDate       string          `json:"due_date,omitempty"`
	ServiceDate   string          `json:"service_date,omitempty"`
	TaxID         string          `json:"tax_id,omitempty"`
	BankAccount   string          `json:"bank_account,omitempty"`
	TotalAmount   *float64        `gorm:"type:numeric(12,2)" json:"total_amount,omitempty"`
	LineItems     json.RawMessage `gorm:"type:jsonb" json:"line_items,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (Invoice) TableName() string { return "invoices" }

// BeforeCreate assigns the UUID primary key.
func (i *Invoice) BeforeCreate(_ *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

// SetItems encodes items into the jsonb line-item column.
func (i *Invoice) SetItems(items []LineItem) error {
	if len(items) == 0 {
		i.LineItems = nil
		return nil
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return err
	}
	i.LineItems = raw
	return nil
}

// Items decodes the jsonb line-item column. A nil or invalid column decodes
// to an empty slice.
func (i *Invoice) Items() []LineItem {
	if len(i.LineItems) == 0 {
		return nil
	}
	var items []LineItem
	if err := json.Unmarshal(i.LineItems, &items); err != nil {
		return nil
	}
	return items
}
