// Package analysis flags suspicious invoices. It combines plain rules
// (missing fields, contract window, high unit prices) with an isolation
// forest over the line items' unit price and quantity.
package analysis

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/docuflow/invoice-audit/constants"
	"github.com/docuflow/invoice-audit/internal/anomaly"
	"github.com/docuflow/invoice-audit/internal/entity"
)

// invoiceDateLayout is how extracted dates are normally printed.
const invoiceDateLayout = "01/02/2006"

// Input is one invoice handed to the analyzer.
type Input struct {
	InvoiceNumber string
	SupplierName  string
	InvoiceDate   string
	TaxID         string
	BankAccount   string
	TotalAmount   *float64
	LineItems     []entity.LineItem
	ContractStart *time.Time
	ContractEnd   *time.Time
}

// Result is the analyzer verdict. Items carries every line item with anomaly
// annotations filled in; AnomalousItems is the flagged subset.
type Result struct {
	Status         constants.AnalysisStatus `json:"status"`
	Message        string                   `json:"message"`
	Issues         []string                 `json:"issues,omitempty"`
	Items          []entity.LineItem        `json:"items,omitempty"`
	AnomalousItems []entity.LineItem        `json:"anomalous_items,omitempty"`
}

// Analyzer runs fraud checks over extracted invoices.
type Analyzer struct {
	contamination float64
	trees         int
	seed          int64
	highUnitPrice float64
	log           *slog.Logger
}

// Config for the analyzer. Zero values fall back to the defaults used
// throughout: contamination 0.25, 100 trees, seed 42, price ceiling 100.
type Config struct {
	Contamination float64
	Trees         int
	Seed          int64
	HighUnitPrice float64
}

func NewAnalyzer(cfg Config, logger *slog.Logger) *Analyzer {
	if cfg.Contamination <= 0 {
		cfg.Contamination = 0.25
	}
	if cfg.Trees <= 0 {
		cfg.Trees = 100
	}
	if cfg.Seed == 0 {
		cfg.Seed = 42
	}
	if cfg.HighUnitPrice <= 0 {
		cfg.HighUnitPrice = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		contamination: cfg.Contamination,
		trees:         cfg.Trees,
		seed:          cfg.Seed,
		highUnitPrice: cfg.HighUnitPrice,
		log:           logger,
	}
}

// Analyze checks an invoice. Missing required fields short-circuit to a
// warning without running the forest; otherwise rules and anomaly detection
// both contribute issues and the status is warning when any exist.
func (a *Analyzer) Analyze(in Input) Result {
	if missing := a.missingFields(in); len(missing) > 0 {
		return Result{
			Status:  constants.AnalysisWarning,
			Message: "Missing required fields: " + strings.Join(missing, ", "),
			Items:   in.LineItems,
		}
	}

	var issues []string

	if in.ContractStart != nil && in.ContractEnd != nil && in.InvoiceDate != "" {
		d, err := time.Parse(invoiceDateLayout, in.InvoiceDate)
		if err != nil {
			issues = append(issues, "Unable to parse invoice date format.")
		} else if d.Before(*in.ContractStart) || d.After(*in.ContractEnd) {
			issues = append(issues, "Invoice date is outside the contract period.")
		}
	}

	items := append([]entity.LineItem(nil), in.LineItems...)
	for _, item := range items {
		if item.UnitPrice != nil && *item.UnitPrice > a.highUnitPrice {
			issues = append(issues, fmt.Sprintf("High unit price detected: %v for %s", *item.UnitPrice, item.Description))
		}
	}

	anomalous := a.detectAnomalies(items)
	if len(anomalous) > 0 {
		issues = append(issues, "Potential fraud/anomalies detected via machine learning model.")
	}

	res := Result{
		Status:         constants.AnalysisSuccess,
		Message:        "No issues detected",
		Issues:         issues,
		Items:          items,
		AnomalousItems: anomalous,
	}
	if len(issues) > 0 {
		res.Status = constants.AnalysisWarning
		res.Message = "Analysis completed with warnings"
	}

	a.log.Info("analysis.done",
		"status", res.Status,
		"issues", len(issues),
		"items", len(items),
		"anomalous", len(anomalous),
	)
	return res
}

// detectAnomalies fits the forest on rows that have both numbers and writes
// scores back into items. Returns the flagged rows.
func (a *Analyzer) detectAnomalies(items []entity.LineItem) []entity.LineItem {
	var (
		points [][]float64
		rows   []int
	)
	for i, item := range items {
		if item.UnitPrice == nil {
			continue
		}
		points = append(points, []float64{*item.UnitPrice, item.Quantity})
		rows = append(rows, i)
	}
	if len(points) == 0 {
		return nil
	}

	forest := anomaly.New(anomaly.Config{
		Trees:         a.trees,
		Seed:          a.seed,
		Contamination: a.contamination,
	})
	forest.Fit(points)
	scores := forest.Scores(points)
	labels := forest.Predict(points)

	var flagged []entity.LineItem
	for k, i := range rows {
		s := scores[k]
		items[i].AnomalyScore = &s
		items[i].IsAnomaly = labels[k] == -1
		if items[i].IsAnomaly {
			flagged = append(flagged, items[i])
		}
	}
	return flagged
}

func (a *Analyzer) missingFields(in Input) []string {
	var missing []string
	require := func(name string, present bool) {
		if !present {
			missing = append(missing, name)
		}
	}
	require("invoice_number", in.InvoiceNumber != "")
	require("supplier_name", in.SupplierName != "")
	require("invoice_date", in.InvoiceDate != "")
	require("tax_id", in.TaxID != "")
	require("bank_account", in.BankAccount != "")
	require("total_amount", in.TotalAmount != nil)
	return missing
}

// ExplainAnomaly gives a short human reason for a flagged row.
func (a *Analyzer) ExplainAnomaly(item entity.LineItem) string {
	switch {
	case item.UnitPrice != nil && *item.UnitPrice > a.highUnitPrice:
		return "This item has a high unit price which may be unusual for this type of product."
	case item.Quantity > 10:
		return "High quantity detected, might be bulk order or mis-entry."
	default:
		return "Anomaly detection based on unit price and quantity patterns."
	}
}
