package pipeline

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// Processor coordinates the three stages for one document. It satisfies
// async.DocumentProcessor so the queue can drive it.
type Processor struct {
	Logger  *slog.Logger
	Extract *ExtractStage
	Parse   *ParseStage
	Analyze *AnalyzeStage
}

func NewProcessor(logger *slog.Logger, extract *ExtractStage, parse *ParseStage, analyze *AnalyzeStage) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Extract: extract, Parse: parse, Analyze: analyze}
}

// ProcessDocument runs extract, parse, then analyze. Contract dates are not
// known at intake time; the fraud view re-runs analysis with them.
func (p *Processor) ProcessDocument(ctx context.Context, documentID uuid.UUID) error {
	job, err := p.Extract.Run(ctx, documentID)
	if err != nil {
		p.Logger.Error("processor.extract.failed", "document_id", documentID, "error", err)
		return err
	}

	invoiceID, err := p.Parse.Run(ctx, job.ID)
	if err != nil {
		p.Logger.Error("processor.parse.failed", "job_id", job.ID, "error", err)
		return err
	}

	if _, err := p.Analyze.Run(ctx, invoiceID, nil, nil); err != nil {
		p.Logger.Error("processor.analyze.failed", "invoice_id", invoiceID, "error", err)
		return err
	}
	return nil
}
