package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Document is an intake record for one uploaded or ingested file.
// Content is deduplicated by SHA-256 hash.
type Document struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SourcePath  string    `gorm:"not null" json:"source_path"`
	Filename    string    `gorm:"not null" json:"filename"`
	FileExt     string    `gorm:"not null" json:"file_ext"`
	FileSize    int64     `json:"file_size"`
	ContentType string    `json:"content_type"`
	ContentHash []byte    `gorm:"uniqueIndex;not null" json:"-"`
	UploadedAt  time.Time `json:"uploaded_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Document) TableName() string { return "documents" }

// BeforeCreate assigns the UUID primary key.
func (d *Document) BeforeCreate(_ *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
