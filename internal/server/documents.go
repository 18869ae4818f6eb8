package server

import (
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docuflow/invoice-audit/constants"
	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/convert"
	"github.com/docuflow/invoice-audit/internal/entity"
)

// maxUploadBytes caps one multipart upload.
const maxUploadBytes = 32 << 20

func (s *Server) showUpload(c *gin.Context) {
	s.render(c, http.StatusOK, "upload.html", gin.H{
		"LLMModel": s.deps.LLMModel,
	})
}

// handleUpload stores the file, runs the pipeline synchronously, and sends
// the browser to the document page. Processing errors still land on the
// document page, which shows the failed job.
func (s *Server) handleUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("document")
	if err != nil {
		s.renderError(c, common.WrapError(common.ErrInvalidInput, "no file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		s.renderError(c, err)
		return
	}
	if len(data) > maxUploadBytes {
		s.renderError(c, common.WrapError(common.ErrInvalidInput, "file too large"))
		return
	}

	res, err := s.deps.Ingestor.IngestBytes(c.Request.Context(), header.Filename, data)
	if err != nil {
		s.renderError(c, common.WrapError(common.ErrInvalidInput, err.Error()))
		return
	}

	docID, err := uuid.Parse(res.DocumentID)
	if err != nil {
		s.renderError(c, err)
		return
	}
	if !res.Deduplicated {
		if err := s.deps.Processor.ProcessDocument(c.Request.Context(), docID); err != nil {
			s.log.Warn("upload processing failed", "document_id", docID, "error", err)
		}
	}
	c.Redirect(http.StatusSeeOther, "/documents/"+res.DocumentID)
}

func (s *Server) listDocuments(c *gin.Context) {
	docs, err := s.deps.Documents.List(c.Request.Context(), 200)
	if err != nil {
		s.renderError(c, err)
		return
	}

	type docRow struct {
		Doc    entity.Document
		Status string
	}
	rows := make([]docRow, 0, len(docs))
	for _, d := range docs {
		status := ""
		if job, err := s.deps.Jobs.GetLatestForDocument(c.Request.Context(), d.ID); err == nil {
			status = job.Status
		}
		rows = append(rows, docRow{Doc: d, Status: status})
	}
	s.render(c, http.StatusOK, "documents.html", gin.H{"Rows": rows})
}

// documentView is everything the detail page shows for one document.
type documentView struct {
	Doc      *entity.Document
	Job      *entity.ExtractJob
	Invoice  *entity.Invoice
	Items    []entity.LineItem
	Analysis *entity.Analysis
	Preview  template.HTML // markdown conversions only
}

func (s *Server) loadDocumentView(c *gin.Context, id uuid.UUID) (*documentView, error) {
	doc, err := s.deps.Documents.GetByID(c.Request.Context(), id)
	if err != nil {
		return nil, err
	}
	view := &documentView{Doc: doc}

	job, err := s.deps.Jobs.GetLatestForDocument(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return view, nil
	}
	view.Job = job

	if job.Method == "markdown" && job.Text != "" {
		if html, err := convert.PreviewHTML(job.Text); err == nil {
			view.Preview = html
		}
	}

	inv, err := s.deps.Invoices.GetByDocument(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return nil, err
		}
		return view, nil
	}
	view.Invoice = inv
	view.Items = inv.Items()

	if a, err := s.deps.Analyses.GetLatestForInvoice(c.Request.Context(), inv.ID); err == nil {
		view.Analysis = a
	}
	return view, nil
}

func (s *Server) showDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.renderError(c, common.WrapError(common.ErrInvalidInput, "invalid document id"))
		return
	}
	view, err := s.loadDocumentView(c, id)
	if err != nil {
		s.renderError(c, err)
		return
	}
	s.render(c, http.StatusOK, "document.html", gin.H{
		"View":   view,
		"Failed": view.Job != nil && view.Job.Status == string(constants.JobStatusFailed),
	})
}

func (s *Server) handleExport(c *gin.Context) {
	data, err := s.deps.Exporter.ExportInvoicesXLSX(c.Request.Context(), 0)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="invoices.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func clampLimit(c *gin.Context, def int) int {
	n := def
	if _, err := fmt.Sscanf(c.Query("limit"), "%d", &n); err != nil || n <= 0 || n > 1000 {
		return def
	}
	return n
}
