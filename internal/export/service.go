// Package export produces XLSX workbooks from stored invoices and their
// analysis verdicts.
package export

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/repository"
)

// Service is a tiny façade over repositories that produces XLSX bytes.
type Service struct {
	invoices  repository.InvoiceRepository
	analyses  repository.AnalysisRepository
	documents repository.DocumentRepository
	logger    *slog.Logger
}

func NewService(invoices repository.InvoiceRepository, analyses repository.AnalysisRepository, documents repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{invoices: invoices, analyses: analyses, documents: documents, logger: logger}
}

// ExportInvoicesXLSX returns a workbook with one sheet of invoice headers and
// one sheet of line items. Analysis status and issues are joined in per
// invoice where a run exists.
func (s *Service) ExportInvoicesXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	invoices, err := s.invoices.List(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query invoices: %w", err)
	}

	f := excelize.NewFile()
	const invoiceSheet = "Invoices"
	const itemSheet = "Line Items"

	// NewFile starts with "Sheet1"; rename it and add the second sheet
	if err := f.SetSheetName("Sheet1", invoiceSheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(itemSheet); err != nil {
		return nil, err
	}

	writeRow := func(sheet string, row int, values []any) {
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
	}

	writeRow(invoiceSheet, 1, []any{
		"Invoice Number", "Invoice Date", "Supplier", "Tax ID", "Bank Account",
		"Total Amount", "Items", "Status", "Issues", "Source File",
	})
	writeRow(itemSheet, 1, []any{
		"Invoice Number", "Description", "Quantity", "Unit Price", "Anomaly Score", "Anomaly",
	})

	invRow, itemRow := 2, 2
	for _, inv := range invoices {
		status, issues := "", ""
		if a, err := s.analyses.GetLatestForInvoice(ctx, inv.ID); err == nil {
			status = a.Status
			issues = joinIssues(a.Issues)
		} else if !errors.Is(err, common.ErrNotFound) {
			return nil, fmt.Errorf("load analysis: %w", err)
		}

		sourcePath := ""
		if doc, err := s.documents.GetByID(ctx, inv.DocumentID); err == nil {
			sourcePath = doc.SourcePath
		}

		total := any("")
		if inv.TotalAmount != nil {
			total = *inv.TotalAmount
		}

		items := inv.Items()
		writeRow(invoiceSheet, invRow, []any{
			inv.InvoiceNumber, inv.InvoiceDate, inv.SupplierName, inv.TaxID, inv.BankAccount,
			total, len(items), status, truncate(issues, 200), sourcePath,
		})
		invRow++

		for _, it := range items {
			price := any("")
			if it.UnitPrice != nil {
				price = *it.UnitPrice
			}
			score := any("")
			if it.AnomalyScore != nil {
				score = *it.AnomalyScore
			}
			flag := ""
			if it.IsAnomaly {
				flag = "yes"
			}
			writeRow(itemSheet, itemRow, []any{
				inv.InvoiceNumber, truncate(it.Description, 140), it.Quantity, price, score, flag,
			})
			itemRow++
		}
	}

	_ = f.SetColWidth(invoiceSheet, "A", "B", 16)
	_ = f.SetColWidth(invoiceSheet, "C", "C", 28)
	_ = f.SetColWidth(invoiceSheet, "D", "E", 24)
	_ = f.SetColWidth(invoiceSheet, "I", "I", 48)
	_ = f.SetColWidth(invoiceSheet, "J", "J", 60)
	_ = f.SetColWidth(itemSheet, "B", "B", 48)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"invoices", len(invoices),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func joinIssues(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var issues []string
	if err := json.Unmarshal(raw, &issues); err != nil {
		return ""
	}
	return strings.Join(issues, "; ")
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
