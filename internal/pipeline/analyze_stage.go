package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-audit/internal/analysis"
	"github.com/docuflow/invoice-audit/internal/entity"
	"github.com/docuflow/invoice-audit/internal/repository"
)

type AnalyzeStage struct {
	Logger   *slog.Logger
	Invoices repository.InvoiceRepository
	Analyses repository.AnalysisRepository
	Jobs     repository.JobRepository
	Analyzer *analysis.Analyzer
}

func NewAnalyzeStage(
	logger *slog.Logger,
	invoices repository.InvoiceRepository,
	analyses repository.AnalysisRepository,
	jobs repository.JobRepository,
	an *analysis.Analyzer,
) *AnalyzeStage {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyzeStage{
		Logger:   logger,
		Invoices: invoices,
		Analyses: analyses,
		Jobs:     jobs,
		Analyzer: an,
	}
}

// Run analyzes a stored invoice, persists the verdict, and writes anomaly
// annotations back onto the invoice line items. Contract dates are optional;
// when either is nil the window check is skipped.
func (s *AnalyzeStage) Run(ctx context.Context, invoiceID uuid.UUID, contractStart, contractEnd *time.Time) (*entity.Analysis, error) {
	inv, err := s.Invoices.GetByID(ctx, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("load invoice: %w", err)
	}

	res := s.Analyzer.Analyze(analysis.Input{
		InvoiceNumber: inv.InvoiceNumber,
		SupplierName:  inv.SupplierName,
		InvoiceDate:   inv.InvoiceDate,
		TaxID:         inv.TaxID,
		BankAccount:   inv.BankAccount,
		TotalAmount:   inv.TotalAmount,
		LineItems:     inv.Items(),
		ContractStart: contractStart,
		ContractEnd:   contractEnd,
	})

	row := &entity.Analysis{
		InvoiceID:     inv.ID,
		Status:        string(res.Status),
		Message:       res.Message,
		ContractStart: contractStart,
		ContractEnd:   contractEnd,
	}
	if len(res.Issues) > 0 {
		row.Issues, _ = json.Marshal(res.Issues)
	}
	if len(res.AnomalousItems) > 0 {
		row.AnomalousItems, _ = json.Marshal(res.AnomalousItems)
	}
	if err := s.Analyses.Create(ctx, row); err != nil {
		return nil, fmt.Errorf("store analysis: %w", err)
	}

	// keep the scores on the invoice so listings can show them
	if len(res.Items) > 0 {
		if err := inv.SetItems(res.Items); err == nil {
			if _, err := s.Invoices.Upsert(ctx, inv); err != nil {
				s.Logger.Warn("analysis.annotate_failed", "invoice_id", inv.ID, "error", err)
			}
		}
	}

	if err := s.Jobs.MarkAnalyzed(ctx, inv.JobID); err != nil {
		s.Logger.Warn("analysis.mark_job_failed", "job_id", inv.JobID, "error", err)
	}

	s.Logger.Info("analyze.ok",
		"invoice_id", inv.ID,
		"analysis_id", row.ID,
		"status", row.Status,
		"issues", len(res.Issues),
	)
	return row, nil
}
