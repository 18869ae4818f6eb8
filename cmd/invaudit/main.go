// invaudit runs the full intake pipeline on a single file without a
// database: extract text, structure the fields, analyze for fraud, and
// print the result as JSON.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/docuflow/invoice-audit/constants"
	"github.com/docuflow/invoice-audit/internal/analysis"
	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/convert"
	"github.com/docuflow/invoice-audit/internal/entity"
	"github.com/docuflow/invoice-audit/internal/llm"
	"github.com/docuflow/invoice-audit/internal/llm/openai"
	"github.com/docuflow/invoice-audit/internal/ocr"
	"github.com/docuflow/invoice-audit/internal/parse"
)

type output struct {
	File     string            `json:"file"`
	Method   string            `json:"method"`
	Model    string            `json:"model"`
	Fields   llm.InvoiceFields `json:"fields"`
	Analysis *analysis.Result  `json:"analysis,omitempty"`
	Text     string            `json:"text,omitempty"`
}

func main() {
	var (
		startStr = flag.String("contract-start", "", "contract start YYYY-MM-DD")
		endStr   = flag.String("contract-end", "", "contract end YYYY-MM-DD")
		noLLM    = flag.Bool("no-llm", false, "skip the model and use the heuristic parser")
		withText = flag.Bool("text", false, "include extracted text in the output")
		quiet    = flag.Bool("quiet", false, "suppress progress logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *quiet {
		level = slog.LevelError
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: invaudit [flags] <file>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	path := flag.Arg(0)

	cfg := common.LoadConfig()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	out, err := run(ctx, cfg, logger, path, *startStr, *endStr, *noLLM)
	if err != nil {
		logger.Error("pipeline failed", "file", path, "error", err)
		os.Exit(1)
	}
	if !*withText {
		out.Text = ""
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode output", "error", err)
		os.Exit(1)
	}
	if out.Analysis != nil && out.Analysis.Status == constants.AnalysisError {
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *common.Config, logger *slog.Logger, path, startStr, endStr string, noLLM bool) (*output, error) {
	ext := filepath.Ext(path)
	format := constants.MapExtToFormat(ext)
	if format == "" {
		return nil, fmt.Errorf("unsupported file type %q", ext)
	}

	text, method, confidence, err := extractText(ctx, cfg, logger, path, format)
	if err != nil {
		return nil, err
	}

	fields, model := structureFields(ctx, cfg, logger, path, text, confidence, noLLM)
	if fields.IsEmpty() {
		return nil, fmt.Errorf("no invoice fields could be extracted from %s", path)
	}

	start, end, err := contractWindow(startStr, endStr)
	if err != nil {
		return nil, err
	}

	analyzer := analysis.NewAnalyzer(analysis.Config{
		Contamination: cfg.Analyzer.Contamination,
		Trees:         cfg.Analyzer.Trees,
		Seed:          cfg.Analyzer.Seed,
		HighUnitPrice: cfg.Analyzer.HighUnitPrice,
	}, logger)

	res := analyzer.Analyze(analysis.Input{
		InvoiceNumber: fields.InvoiceNumber,
		SupplierName:  fields.SupplierName,
		InvoiceDate:   fields.InvoiceDate,
		TaxID:         fields.TaxID,
		BankAccount:   fields.BankAccount,
		TotalAmount:   fields.TotalAmount,
		LineItems:     toEntityItems(fields.LineItems),
		ContractStart: start,
		ContractEnd:   end,
	})

	return &output{
		File:     path,
		Method:   method,
		Model:    model,
		Fields:   fields,
		Analysis: &res,
		Text:     text,
	}, nil
}

func extractText(ctx context.Context, cfg *common.Config, logger *slog.Logger, path, format string) (string, string, float32, error) {
	if format == constants.DOC {
		res, err := convert.NewConverter(logger).ConvertFile(path)
		if err != nil {
			return "", "", 0, err
		}
		return res.Markdown, "markdown", 0.9, nil
	}
	res, err := ocr.NewExtractor(ocr.Config{
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
	}, logger).Extract(ctx, path)
	if err != nil {
		return "", "", 0, err
	}
	return res.Text, res.Method, res.Confidence, nil
}

func structureFields(ctx context.Context, cfg *common.Config, logger *slog.Logger, path, text string, confidence float32, noLLM bool) (llm.InvoiceFields, string) {
	if !noLLM && cfg.LLM.APIKey != "" {
		client := openai.NewClient(openai.Config{
			APIKey:      cfg.LLM.APIKey,
			BaseURL:     cfg.LLM.BaseURL,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		}, logger)
		fields, _, err := client.ExtractFields(ctx, llm.ExtractRequest{
			Text:         text,
			FilenameHint: filepath.Base(path),
			Confidence:   confidence,
		})
		if err == nil && !fields.IsEmpty() {
			return fields, cfg.LLM.Model
		}
		logger.Warn("model extraction failed, falling back to heuristic", "error", err)
	}
	return parse.ExtractInvoiceData(text), "heuristic"
}

func contractWindow(startStr, endStr string) (*time.Time, *time.Time, error) {
	if startStr == "" && endStr == "" {
		return nil, nil, nil
	}
	if startStr == "" || endStr == "" {
		return nil, nil, fmt.Errorf("both contract dates are required")
	}
	start, err := time.Parse("2006-01-02", startStr)
	if err != nil {
		return nil, nil, fmt.Errorf("contract-start: %w", err)
	}
	end, err := time.Parse("2006-01-02", endStr)
	if err != nil {
		return nil, nil, fmt.Errorf("contract-end: %w", err)
	}
	if !start.Before(end) {
		return nil, nil, fmt.Errorf("contract-end must be after contract-start")
	}
	return &start, &end, nil
}

func toEntityItems(items []llm.LineItem) []entity.LineItem {
	out := make([]entity.LineItem, 0, len(items))
	for _, it := range items {
		out = append(out, entity.LineItem{
			Description: it.Description,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	return out
}
