package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/docuflow/invoice-audit/constants"
	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/entity"
)

// TextOutcome is what the extract stage persists on success.
type TextOutcome struct {
	Text       string
	Method     string
	Pages      int
	Confidence float32
}

type JobRepository interface {
	Start(ctx context.Context, documentID uuid.UUID, format string) (*entity.ExtractJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ExtractJob, error)
	GetLatestForDocument(ctx context.Context, documentID uuid.UUID) (*entity.ExtractJob, error)
	FinishText(ctx context.Context, jobID uuid.UUID, out TextOutcome) error
	FinishParse(ctx context.Context, jobID, invoiceID uuid.UUID, modelName string, raw json.RawMessage) error
	MarkAnalyzed(ctx context.Context, jobID uuid.UUID) error
	FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error
}

type jobRepo struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewJobRepository(db *gorm.DB, logger *slog.Logger) JobRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &jobRepo{db: db, logger: logger}
}

func (r *jobRepo) Start(ctx context.Context, documentID uuid.UUID, format string) (*entity.ExtractJob, error) {
	job := &entity.ExtractJob{
		DocumentID: documentID,
		Format:     format,
		Status:     string(constants.JobStatusRunning),
	}
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		r.logger.Error("extract_job start failed", "document_id", documentID, "error", err)
		return nil, common.WrapError(err, "start extract job")
	}
	r.logger.Info("extract_job started", "job_id", job.ID, "document_id", documentID, "format", format)
	return job, nil
}

func (r *jobRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ExtractJob, error) {
	var job entity.ExtractJob
	if err := r.db.WithContext(ctx).First(&job, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.WrapError(err, "get extract job")
	}
	return &job, nil
}

func (r *jobRepo) GetLatestForDocument(ctx context.Context, documentID uuid.UUID) (*entity.ExtractJob, error) {
	var job entity.ExtractJob
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("started_at DESC").
		First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrNotFound
		}
		return nil, common.WrapError(err, "get latest job for document")
	}
	return &job, nil
}

func (r *jobRepo) FinishText(ctx context.Context, jobID uuid.UUID, out TextOutcome) error {
	err := r.db.WithContext(ctx).Model(&entity.ExtractJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"text":       out.Text,
			"method":     out.Method,
			"pages":      out.Pages,
			"confidence": out.Confidence,
			"status":     string(constants.JobStatusTextOK),
		}).Error
	if err != nil {
		r.logger.Error("extract_job finish(TEXT_OK) failed", "job_id", jobID, "error", err)
		return common.WrapError(err, "finish text stage")
	}
	r.logger.Info("extract_job finished text stage", "job_id", jobID, "method", out.Method, "pages", out.Pages)
	return nil
}

func (r *jobRepo) FinishParse(ctx context.Context, jobID, invoiceID uuid.UUID, modelName string, raw json.RawMessage) error {
	err := r.db.WithContext(ctx).Model(&entity.ExtractJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"invoice_id":   invoiceID,
			"model_name":   modelName,
			"raw_llm_json": raw,
			"status":       string(constants.JobStatusParsed),
		}).Error
	if err != nil {
		r.logger.Error("extract_job finish(PARSED) failed", "job_id", jobID, "error", err)
		return common.WrapError(err, "finish parse stage")
	}
	r.logger.Info("extract_job finished parse stage", "job_id", jobID, "invoice_id", invoiceID, "model", modelName)
	return nil
}

func (r *jobRepo) MarkAnalyzed(ctx context.Context, jobID uuid.UUID) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&entity.ExtractJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":      string(constants.JobStatusAnalyzed),
			"finished_at": &now,
		}).Error
	if err != nil {
		r.logger.Error("extract_job mark analyzed failed", "job_id", jobID, "error", err)
		return common.WrapError(err, "mark analyzed")
	}
	return nil
}

func (r *jobRepo) FinishFailure(ctx context.Context, jobID uuid.UUID, message string) error {
	now := time.Now().UTC()
	err := r.db.WithContext(ctx).Model(&entity.ExtractJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":        string(constants.JobStatusFailed),
			"error_message": message,
			"finished_at":   &now,
		}).Error
	if err != nil {
		r.logger.Error("extract_job finish(FAILED) failed", "job_id", jobID, "error", err)
		return common.WrapError(err, "finish failure")
	}
	r.logger.Warn("extract_job finished (FAILED)", "job_id", jobID, "error", message)
	return nil
}
