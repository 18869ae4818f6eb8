package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExtractJob tracks one pass of a document through the pipeline.
type ExtractJob struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	DocumentID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"document_id"`
	InvoiceID    *uuid.UUID      `gorm:"type:uuid;index" json:"invoice_id,omitempty"`
	Format       string          `gorm:"not null" json:"format"`
	Status       string          `gorm:"index;not null" json:"status"`
	Method       string          `json:"method,omitempty"` // pdf-text | pdf-ocr | image-ocr | markdown
	Pages        int             `json:"pages,omitempty"`
	Confidence   float32         `json:"confidence,omitempty"`
	Text         string          `gorm:"type:text" json:"text,omitempty"`
	RawLLMJSON   json.RawMessage `gorm:"type:jsonb" json:"raw_llm_json,omitempty"`
	ModelName    string          `json:"model_name,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	StartedAt    time.Time       `json:"started_at"`
	FinishedAt   *time.Time      `json:"finished_at,omitempty"`
}

func (ExtractJob) TableName() string { return "extract_jobs" }

// BeforeCreate assigns the UUID primary key and start time.
func (j *ExtractJob) BeforeCreate(_ *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.StartedAt.IsZero() {
		j.StartedAt = time.Now().UTC()
	}
	return nil
}
