package repository

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/entity"
)

type AnalysisRepository interface {
	Create(ctx context.Context, a *entity.Analysis) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Analysis, error)
	GetLatestForInvoice(ctx context.Context, invoiceID uuid.UUID) (*entity.Analysis, error)
}

type analysisRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewAnalysisRepository(db *gorm.DB, logger *slog.Logger) AnalysisRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &analysisRepo{db: db, logger: logger}
}

func (r *analysisRepo) Create(ctx context.Context, a *entity.Analysis) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		r.logger.Error("failed to create analysis", "invoice_id", a.InvoiceID, "error", err)
		return common.WrapError(err, "create analysis")
	}
	r.logger.Info("analysis stored", "analysis_id", a.ID, "invoice_id", a.InvoiceID, "status", a.Status)
	return nil
}

func (r *analysisRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Analysis, error) {
	var a entity.Analysis
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.WrapError(err, "get analysis")
	}
	return &a, nil
}

func (r *analysisRepo) GetLatestForInvoice(ctx context.Context, invoiceID uuid.UUID) (*entity.Analysis, error) {
	var a entity.Analysis
	err := r.db.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("created_at DESC").
		First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.WrapError(err, "get latest analysis")
	}
	return &a, nil
}
