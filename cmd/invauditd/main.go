// invauditd is the long-running intake daemon: it serves the dashboard,
// processes uploads through the pipeline, and optionally watches intake
// directories for new files.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
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
	"github.com/docuflow/invoice-audit/internal/server"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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
	converter := convert.NewConverter(logger)

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
	} else {
		logger.Warn("no LLM API key configured, using heuristic parser only")
	}

	analyzer := analysis.NewAnalyzer(analysis.Config{
		Contamination: cfg.Analyzer.Contamination,
		Trees:         cfg.Analyzer.Trees,
		Seed:          cfg.Analyzer.Seed,
		HighUnitPrice: cfg.Analyzer.HighUnitPrice,
	}, logger)

	extractStage := pipeline.NewExtractStage(docs, jobs, extractor, converter, logger)
	parseStage := pipeline.NewParseStage(logger, jobs, docs, invoices, fieldExtractor, modelName)
	analyzeStage := pipeline.NewAnalyzeStage(logger, invoices, analyses, jobs, analyzer)
	processor := pipeline.NewProcessor(logger, extractStage, parseStage, analyzeStage)

	queue := async.NewProcessorQueue(processor, logger)
	ingestor := ingest.NewFSIngestor(docs, cfg.Storage.UploadDir, logger)

	if roots := watchRoots(); len(roots) > 0 {
		startWatchLoop(ctx, logger, roots, ingestor, queue)
	}

	srv, err := server.New(cfg.Server, server.Deps{
		DB:        db,
		Documents: docs,
		Jobs:      jobs,
		Invoices:  invoices,
		Analyses:  analyses,
		Ingestor:  ingestor,
		Queue:     queue,
		Processor: processor,
		Analyze:   analyzeStage,
		Analyzer:  analyzer,
		Exporter:  export.NewService(invoices, analyses, docs, logger),
		OCR:       cfg.OCR,
		LLMModel:  modelName,
	}, logger)
	if err != nil {
		logger.Error("server init", "error", err)
		os.Exit(1)
	}

	err = srv.Run(ctx)

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	queue.Shutdown(drainCtx)

	if err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func watchRoots() []string {
	raw := os.Getenv("WATCH_DIRS")
	if raw == "" {
		return nil
	}
	var roots []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			roots = append(roots, p)
		}
	}
	return roots
}

// startWatchLoop feeds files appearing under the watch roots into the queue.
func startWatchLoop(ctx context.Context, logger *slog.Logger, roots []string, ingestor ingest.Ingestor, queue async.Queue) {
	paths, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       roots,
		InitialScan: true,
		Debounce:    2 * time.Second,
	})
	if err != nil {
		logger.Error("watcher start failed", "roots", roots, "error", err)
		return
	}
	logger.Info("watching intake directories", "roots", roots)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case werr, ok := <-errs:
				if ok {
					logger.Warn("watcher error", "error", werr)
				}
			case path, ok := <-paths:
				if !ok {
					return
				}
				res, err := ingestor.IngestPath(ctx, path)
				if err != nil {
					logger.Warn("watch ingest failed", "path", path, "error", err)
					continue
				}
				if res.Deduplicated {
					continue
				}
				docID, err := uuid.Parse(res.DocumentID)
				if err != nil {
					logger.Warn("watch ingest returned bad id", "path", path, "error", err)
					continue
				}
				if err := queue.Enqueue(ctx, async.Job{DocumentID: docID, SubmittedAt: time.Now()}); err != nil {
					logger.Warn("enqueue failed", "path", path, "error", err)
				}
			}
		}
	}()
}
