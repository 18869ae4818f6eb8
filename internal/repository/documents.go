package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/entity"
)

type DocumentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error)
	GetByHash(ctx context.Context, hash []byte) (*entity.Document, error)
	Create(ctx context.Context, doc *entity.Document) error
	// UpsertByHash returns the existing document when the content hash is
	// already known; the bool reports deduplication.
	UpsertByHash(ctx context.Context, doc *entity.Document) (*entity.Document, bool, error)
	List(ctx context.Context, limit int) ([]entity.Document, error)
}

type documentRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewDocumentRepository(db *gorm.DB, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{db: db, logger: logger}
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Document, error) {
	var doc entity.Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		r.logger.Error("failed to get document", "document_id", id, "error", err)
		return nil, common.WrapError(err, "get document")
	}
	return &doc, nil
}

func (r *documentRepo) GetByHash(ctx context.Context, hash []byte) (*entity.Document, error) {
	var doc entity.Document
	if err := r.db.WithContext(ctx).First(&doc, "content_hash = ?", hash).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		r.logger.Error("failed to get document by hash", "error", err)
		return nil, common.WrapError(err, "get document by hash")
	}
	return &doc, nil
}

func (r *documentRepo) Create(ctx context.Context, doc *entity.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		r.logger.Error("failed to create document", "source_path", doc.SourcePath, "error", err)
		return common.WrapError(err, "create document")
	}
	return nil
}

func (r *documentRepo) UpsertByHash(ctx context.Context, doc *entity.Document) (*entity.Document, bool, error) {
	existing, err := r.GetByHash(ctx, doc.ContentHash)
	if err == nil {
		return existing, true, nil
	}
	if !errors.Is(err, common.ErrNotFound) {
		return nil, false, err
	}
	if err := r.Create(ctx, doc); err != nil {
		return nil, false, err
	}
	return doc, false, nil
}

func (r *documentRepo) List(ctx context.Context, limit int) ([]entity.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	var docs []entity.Document
	if err := r.db.WithContext(ctx).Order("uploaded_at DESC").Limit(limit).Find(&docs).Error; err != nil {
		r.logger.Error("failed to list documents", "error", err)
		return nil, common.WrapError(err, "list documents")
	}
	return docs, nil
}
