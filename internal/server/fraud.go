package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docuflow/invoice-audit/internal/analysis"
	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/entity"
)

const contractDateLayout = "2006-01-02"

// anomalyRow is one flagged line item plus its explanation for the page.
type anomalyRow struct {
	Item        entity.LineItem
	Explanation string
}

func (s *Server) loadInvoice(c *gin.Context) (*entity.Invoice, bool) {
	id, err := uuid.Parse(c.Param("invoiceID"))
	if err != nil {
		s.renderError(c, common.WrapError(common.ErrInvalidInput, "invalid invoice id"))
		return nil, false
	}
	inv, err := s.deps.Invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		s.renderError(c, err)
		return nil, false
	}
	return inv, true
}

func (s *Server) showFraud(c *gin.Context) {
	inv, ok := s.loadInvoice(c)
	if !ok {
		return
	}
	s.renderFraud(c, inv, nil)
}

// handleAnalyze re-runs the analysis with the submitted contract window and
// renders the verdict on the same page.
func (s *Server) handleAnalyze(c *gin.Context) {
	inv, ok := s.loadInvoice(c)
	if !ok {
		return
	}

	start, end, err := parseContractWindow(c.PostForm("contract_start"), c.PostForm("contract_end"))
	if err != nil {
		s.renderError(c, common.WrapError(common.ErrInvalidInput, err.Error()))
		return
	}

	row, err := s.deps.Analyze.Run(c.Request.Context(), inv.ID, start, end)
	if err != nil {
		s.renderError(c, err)
		return
	}

	// re-read: the stage wrote anomaly annotations back onto the invoice
	inv, err = s.deps.Invoices.GetByID(c.Request.Context(), inv.ID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	s.renderFraud(c, inv, row)
}

func (s *Server) renderFraud(c *gin.Context, inv *entity.Invoice, latest *entity.Analysis) {
	if latest == nil {
		if a, err := s.deps.Analyses.GetLatestForInvoice(c.Request.Context(), inv.ID); err == nil {
			latest = a
		}
	}

	items := inv.Items()
	var anomalies []anomalyRow
	for _, it := range items {
		if it.IsAnomaly {
			anomalies = append(anomalies, anomalyRow{Item: it, Explanation: s.deps.Analyzer.ExplainAnomaly(it)})
		}
	}

	var issues []string
	if latest != nil && len(latest.Issues) > 0 {
		_ = json.Unmarshal(latest.Issues, &issues)
	}

	fieldsJSON, _ := json.MarshalIndent(inv, "", "  ")

	s.render(c, http.StatusOK, "fraud.html", gin.H{
		"Invoice":    inv,
		"Items":      items,
		"Anomalies":  anomalies,
		"Analysis":   latest,
		"Issues":     issues,
		"FieldsJSON": string(fieldsJSON),
		"HasChart":   len(items) > 0,
	})
}

// renderChart serves the unit price vs quantity scatter for the invoice.
func (s *Server) renderChart(c *gin.Context) {
	inv, ok := s.loadInvoice(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := analysis.RenderScatterPNG(inv.Items(), &buf); err != nil {
		c.String(http.StatusNotFound, "no plottable line items")
		return
	}
	c.Data(http.StatusOK, "image/png", buf.Bytes())
}

// downloadAnalysis exposes the latest verdict as a JSON attachment.
func (s *Server) downloadAnalysis(c *gin.Context) {
	inv, ok := s.loadInvoice(c)
	if !ok {
		return
	}
	a, err := s.deps.Analyses.GetLatestForInvoice(c.Request.Context(), inv.ID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="fraud_analysis.json"`)
	c.JSON(http.StatusOK, gin.H{
		"status":          a.Status,
		"message":         a.Message,
		"issues":          json.RawMessage(nonEmpty(a.Issues)),
		"anomalous_items": json.RawMessage(nonEmpty(a.AnomalousItems)),
		"invoice":         inv,
		"created_at":      a.CreatedAt,
	})
}

func parseContractWindow(startStr, endStr string) (*time.Time, *time.Time, error) {
	if startStr == "" && endStr == "" {
		return nil, nil, nil
	}
	if startStr == "" || endStr == "" {
		return nil, nil, errors.New("both contract dates are required")
	}
	start, err := time.Parse(contractDateLayout, startStr)
	if err != nil {
		return nil, nil, errors.New("contract start must be YYYY-MM-DD")
	}
	end, err := time.Parse(contractDateLayout, endStr)
	if err != nil {
		return nil, nil, errors.New("contract end must be YYYY-MM-DD")
	}
	if !start.Before(end) {
		return nil, nil, errors.New("contract end date must be after the start date")
	}
	return &start, &end, nil
}

func nonEmpty(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 {
		return json.RawMessage("[]")
	}
	return raw
}
