// invaudit-batch ingests a directory of documents, runs every new file
// through the pipeline, and writes an XLSX workbook of the results.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-audit/internal/analysis"
	"github.com/docuflow/invoice-audit/internal/async"
	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/convert"
	"github.com/docuflow/invoice-audit/internal/export"
	"github.com/docuflow/invoice-audit/internal/ingest"
	"github.com/docuflow/invoice-audit/internal/llm"
	"github.com/docuflow/invoice-audit/internal/llm/openai"
	"github.com/docuflow/invoice-audit/internal/ocr"
	"github.com/docuflow/invoice-audit/internal/pipeline"
	"github.com/docuflow/invoice-audit/internal/repository"
)

func main() {
	var (
		dir     = flag.String("dir", "", "directory to ingest (required)")
		out     = flag.String("out", "", "output XLSX path (default <dir>/../invoices.xlsx)")
		workers = flag.Int("workers", 4, "concurrent pipeline workers")
		force   = flag.Bool("force", false, "reprocess files already ingested")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: invaudit-batch -dir <directory> [-out file.xlsx]")
		flag.PrintDefaults()
		os.Exit(2)
	}
	if *out == "" {
		*out = filepath.Join(filepath.Dir(*dir), "invoices.xlsx")
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	db, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("open db", "error", err)
		os.Exit(1)
	}
	defer repository.Close(db, logger)

	docs := repository.NewDocumentRepository(db, logger)
	jobs := repository.NewJobRepository(db, logger)
	invoices := repository.NewInvoiceRepository(db, logger)
	analyses := repository.NewAnalysisRepository(db, logger)

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext:           cfg.OCR.Pdftotext,
		Pdftoppm:            cfg.OCR.Pdftoppm,
		Tesseract:           cfg.OCR.Tesseract,
		TesseractLang:       cfg.OCR.TesseractLang,
		TessdataDir:         cfg.OCR.TessdataDir,
		DPI:                 cfg.OCR.DPI,
		MaxPages:            cfg.OCR.MaxPages,
		EnableTSVConfidence: true,
		PreprocessImages:    true,
		PSM:                 6,
		OEM:                 1,
	}, logger)

	var fieldExtractor llm.FieldExtractor
	modelName := ""
	if cfg.LLM.APIKey != "" {
		fieldExtractor = openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		modelName = cfg.LLM.Model
	}

	analyzer := analysis.NewAnalyzer(analysis.Config{
		Contamination: cfg.Analyzer.Contamination,
		Trees:         cfg.Analyzer.Trees,
		Seed:          cfg.Analyzer.Seed,
		HighUnitPrice: cfg.Analyzer.HighUnitPrice,
	}, logger)

	processor := pipeline.NewProcessor(logger,
		pipeline.NewExtractStage(docs, jobs, extractor, convert.NewConverter(logger), logger),
		pipeline.NewParseStage(logger, jobs, docs, invoices, fieldExtractor, modelName),
		pipeline.NewAnalyzeStage(logger, invoices, analyses, jobs, analyzer),
	)
	queue := async.NewProcessorQueue(processor, logger, async.WithWorkers(*workers))

	ingestor := ingest.NewFSIngestor(docs, cfg.Storage.UploadDir, logger)
	results, stats, err := ingestor.IngestDirectory(ctx, *dir, true)
	if err != nil {
		logger.Error("directory ingest failed", "dir", *dir, "error", err)
		os.Exit(1)
	}
	logger.Info("directory ingested",
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
	)

	queued := 0
	for _, res := range results {
		if res.Err != "" {
			continue
		}
		if res.Deduplicated && !*force {
			continue
		}
		docID, err := uuid.Parse(res.DocumentID)
		if err != nil {
			logger.Warn("bad document id", "path", res.SourcePath, "error", err)
			continue
		}
		if err := queue.Enqueue(ctx, async.Job{DocumentID: docID, Force: *force, SubmittedAt: time.Now()}); err != nil {
			logger.Warn("enqueue failed", "path", res.SourcePath, "error", err)
			continue
		}
		queued++
	}
	logger.Info("processing", "queued", queued, "workers", *workers)

	drainCtx, cancel := context.WithTimeout(ctx, 30*time.Minute)
	defer cancel()
	queue.Shutdown(drainCtx)

	data, err := export.NewService(invoices, analyses, docs, logger).ExportInvoicesXLSX(ctx, 0)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("write workbook", "path", *out, "error", err)
		os.Exit(1)
	}
	logger.Info("workbook written", "path", *out)
}
