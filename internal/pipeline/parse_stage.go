package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-audit/constants"
	"github.com/docuflow/invoice-audit/internal/entity"
	"github.com/docuflow/invoice-audit/internal/llm"
	"github.com/docuflow/invoice-audit/internal/parse"
	"github.com/docuflow/invoice-audit/internal/repository"
)

// heuristicModelName marks invoices parsed without a model.
const heuristicModelName = "heuristic"

type ParseStage struct {
	Logger    *slog.Logger
	Jobs      repository.JobRepository
	Documents repository.DocumentRepository
	Invoices  repository.InvoiceRepository
	Extractor llm.FieldExtractor // nil means heuristic-only
	ModelName string
}

func NewParseStage(
	logger *slog.Logger,
	jobs repository.JobRepository,
	docs repository.DocumentRepository,
	invoices repository.InvoiceRepository,
	fe llm.FieldExtractor,
	modelName string,
) *ParseStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &ParseStage{
		Logger:    logger,
		Jobs:      jobs,
		Documents: docs,
		Invoices:  invoices,
		Extractor: fe,
		ModelName: modelName,
	}
}

// Run structures the extracted text of an existing job into an invoice row.
// The model path is tried first when configured; the line-oriented fallback
// keeps the pipeline useful without credentials or connectivity. A job fails
// only when both paths come back empty.
func (s *ParseStage) Run(ctx context.Context, jobID uuid.UUID) (uuid.UUID, error) {
	job, err := s.Jobs.GetByID(ctx, jobID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load job: %w", err)
	}
	if job.Status != string(constants.JobStatusTextOK) || job.Text == "" {
		return job.ID, fmt.Errorf("job not ready for parse: status=%s text_empty=%t", job.Status, job.Text == "")
	}

	doc, err := s.Documents.GetByID(ctx, job.DocumentID)
	if err != nil {
		return job.ID, fmt.Errorf("load document: %w", err)
	}

	fields, raw, modelName := s.extract(ctx, job, doc.Filename)
	if fields.IsEmpty() {
		msg := "no invoice fields could be extracted"
		_ = s.Jobs.FinishFailure(ctx, job.ID, msg)
		return job.ID, fmt.Errorf("%s (job %s)", msg, job.ID)
	}

	inv := &entity.Invoice{
		DocumentID:    job.DocumentID,
		JobID:         job.ID,
		InvoiceNumber: fields.InvoiceNumber,
		SupplierName:  fields.SupplierName,
		InvoiceDate:   fields.InvoiceDate,
		DueDate:       fields.DueDate,
		ServiceDate:   fields.ServiceDate,
		TaxID:         fields.TaxID,
		BankAccount:   fields.BankAccount,
		TotalAmount:   fields.TotalAmount,
	}
	if err := inv.SetItems(toEntityItems(fields.LineItems)); err != nil {
		return job.ID, fmt.Errorf("encode line items: %w", err)
	}

	stored, err := s.Invoices.Upsert(ctx, inv)
	if err != nil {
		return job.ID, fmt.Errorf("upsert invoice: %w", err)
	}

	if err := s.Jobs.FinishParse(ctx, job.ID, stored.ID, modelName, raw); err != nil {
		return job.ID, err
	}

	s.Logger.Info("parse.ok",
		"job_id", job.ID,
		"invoice_id", stored.ID,
		"model", modelName,
		"line_items", len(fields.LineItems),
	)
	return stored.ID, nil
}

// extract runs the model when available and falls back to the heuristic
// parser on any failure or empty result.
func (s *ParseStage) extract(ctx context.Context, job *entity.ExtractJob, filename string) (llm.InvoiceFields, json.RawMessage, string) {
	if s.Extractor != nil {
		fields, raw, err := s.Extractor.ExtractFields(ctx, llm.ExtractRequest{
			Text:         job.Text,
			FilenameHint: filepath.Base(filename),
			Confidence:   job.Confidence,
		})
		if err == nil && !fields.IsEmpty() {
			return fields, raw, s.ModelName
		}
		if err != nil {
			s.Logger.Warn("parse.model_failed, falling back", "job_id", job.ID, "error", err)
		}
	}

	fields := parse.ExtractInvoiceData(job.Text)
	raw, _ := json.Marshal(fields)
	return fields, raw, heuristicModelName
}

func toEntityItems(items []llm.LineItem) []entity.LineItem {
	if len(items) == 0 {
		return nil
	}
	out := make([]entity.LineItem, len(items))
	for i, it := range items {
		out[i] = entity.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		}
	}
	return out
}
