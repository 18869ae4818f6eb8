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

type InvoiceRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error)
	GetByDocument(ctx context.Context, documentID uuid.UUID) (*entity.Invoice, error)
	// Upsert creates the invoice or, when one already exists for the
	// document, replaces its extracted fields.
	Upsert(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error)
	List(ctx context.Context, limit int) ([]entity.Invoice, error)
}

type invoiceRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewInvoiceRepository(db *gorm.DB, logger *slog.Logger) InvoiceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &invoiceRepo{db: db, logger: logger}
}

func (r *invoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Invoice, error) {
	var inv entity.Invoice
	if err := r.db.WithContext(ctx).First(&inv, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.WrapError(err, "get invoice")
	}
	return &inv, nil
}

func (r *invoiceRepo) GetByDocument(ctx context.Context, documentID uuid.UUID) (*entity.Invoice, error) {
	var inv entity.Invoice
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("updated_at DESC").
		First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.WrapError(err, "get invoice by document")
	}
	return &inv, nil
}

func (r *invoiceRepo) Upsert(ctx context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	existing, err := r.GetByDocument(ctx, inv.DocumentID)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		if err := r.db.WithContext(ctx).Create(inv).Error; err != nil {
			r.logger.Error("failed to create invoice", "document_id", inv.DocumentID, "error", err)
			return nil, common.WrapError(err, "create invoice")
		}
		return inv, nil
	}

	existing.JobID = inv.JobID
	existing.InvoiceNumber = inv.InvoiceNumber
	existing.SupplierName = inv.SupplierName
	existing.InvoiceDate = inv.InvoiceDate
	existing.DueDate = inv.DueDate
	existing.ServiceDate = inv.ServiceDate
	existing.TaxID = inv.TaxID
	existing.BankAccount = inv.BankAccount
	existing.TotalAmount = inv.TotalAmount
	existing.LineItems = inv.LineItems
	if err := r.db.WithContext(ctx).Save(existing).Error; err != nil {
		r.logger.Error("failed to update invoice", "invoice_id", existing.ID, "error", err)
		return nil, common.WrapError(err, "update invoice")
	}
	return existing, nil
}

func (r *invoiceRepo) List(ctx context.Context, limit int) ([]entity.Invoice, error) {
	if limit <= 0 {
		limit = 100
	}
	var invs []entity.Invoice
	if err := r.db.WithContext(ctx).Order("updated_at DESC").Limit(limit).Find(&invs).Error; err != nil {
		r.logger.Error("failed to list invoices", "error", err)
		return nil, common.WrapError(err, "list invoices")
	}
	return invs, nil
}
