// Package pipeline chains the document stages: text extraction, field
// parsing, fraud analysis. Each stage advances the extract_jobs row so the
// dashboard can show progress and failures.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-audit/constants"
	"github.com/docuflow/invoice-audit/internal/convert"
	"github.com/docuflow/invoice-audit/internal/entity"
	"github.com/docuflow/invoice-audit/internal/ocr"
	"github.com/docuflow/invoice-audit/internal/repository"
)

// TextExtractor is the OCR surface the stage needs.
type TextExtractor interface {
	Extract(ctx context.Context, path string) (ocr.ExtractionResult, error)
}

// DocConverter turns office and text formats into markdown.
type DocConverter interface {
	ConvertFile(path string) (convert.Result, error)
}

// markdownConfidence is assigned to converted documents: the content is
// exact, only the layout is lossy.
const markdownConfidence = 0.9

type ExtractStage struct {
	Documents repository.DocumentRepository
	Jobs      repository.JobRepository
	OCR       TextExtractor
	Converter DocConverter
	Log       *slog.Logger
}

func NewExtractStage(docs repository.DocumentRepository, jobs repository.JobRepository, ocrx TextExtractor, conv DocConverter, log *slog.Logger) *ExtractStage {
	if log == nil {
		log = slog.Default()
	}
	return &ExtractStage{Documents: docs, Jobs: jobs, OCR: ocrx, Converter: conv, Log: log}
}

// Run starts an extract job for the document, pulls its text out by format,
// and persists the outcome. Returns the job with Text filled in.
func (s *ExtractStage) Run(ctx context.Context, documentID uuid.UUID) (*entity.ExtractJob, error) {
	doc, err := s.Documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}

	format := constants.MapExtToFormat(doc.FileExt)
	if format == "" {
		return nil, fmt.Errorf("unsupported format: %s", doc.FileExt)
	}

	job, err := s.Jobs.Start(ctx, doc.ID, format)
	if err != nil {
		return nil, err
	}

	var out repository.TextOutcome
	switch format {
	case constants.PDF, constants.IMAGE:
		res, err := s.OCR.Extract(ctx, doc.SourcePath)
		if err != nil {
			_ = s.Jobs.FinishFailure(ctx, job.ID, err.Error())
			return job, err
		}
		out = repository.TextOutcome{
			Text:       res.Text,
			Method:     res.Method,
			Pages:      res.Pages,
			Confidence: res.Confidence,
		}
	case constants.DOC:
		res, err := s.Converter.ConvertFile(doc.SourcePath)
		if err != nil {
			_ = s.Jobs.FinishFailure(ctx, job.ID, err.Error())
			return job, err
		}
		out = repository.TextOutcome{
			Text:       res.Markdown,
			Method:     "markdown",
			Pages:      1,
			Confidence: markdownConfidence,
		}
	}

	if strings.TrimSpace(out.Text) == "" {
		err := fmt.Errorf("no text extracted from %s", doc.Filename)
		_ = s.Jobs.FinishFailure(ctx, job.ID, err.Error())
		return job, err
	}

	if err := s.Jobs.FinishText(ctx, job.ID, out); err != nil {
		return job, err
	}
	job.Text = out.Text
	job.Method = out.Method
	job.Pages = out.Pages
	job.Confidence = out.Confidence
	job.Status = string(constants.JobStatusTextOK)

	s.Log.Info("extract.ok",
		"document_id", doc.ID,
		"job_id", job.ID,
		"method", out.Method,
		"pages", out.Pages,
		"confidence", out.Confidence,
	)
	return job, nil
}
