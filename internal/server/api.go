package server

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/docuflow/invoice-audit/internal/async"
	"github.com/docuflow/invoice-audit/internal/common"
)

func (s *Server) jsonError(c *gin.Context, err error) {
	c.JSON(common.HTTPStatus(err), gin.H{"error": err.Error()})
}

// apiUpload accepts a multipart upload and queues processing instead of
// running it inline, so the call returns as soon as the file is stored.
func (s *Server) apiUpload(c *gin.Context) {
	file, header, err := c.Request.FormFile("document")
	if err != nil {
		s.jsonError(c, common.WrapError(common.ErrInvalidInput, "no file uploaded"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		s.jsonError(c, err)
		return
	}
	if len(data) > maxUploadBytes {
		s.jsonError(c, common.WrapError(common.ErrInvalidInput, "file too large"))
		return
	}

	res, err := s.deps.Ingestor.IngestBytes(c.Request.Context(), header.Filename, data)
	if err != nil {
		s.jsonError(c, common.WrapError(common.ErrInvalidInput, err.Error()))
		return
	}

	docID, err := uuid.Parse(res.DocumentID)
	if err != nil {
		s.jsonError(c, err)
		return
	}
	queued := false
	if !res.Deduplicated && s.deps.Queue != nil {
		if err := s.deps.Queue.Enqueue(c.Request.Context(), async.Job{
			DocumentID:  docID,
			SubmittedAt: time.Now(),
		}); err != nil {
			s.log.Warn("api upload enqueue failed", "document_id", docID, "error", err)
		} else {
			queued = true
		}
	}
	c.JSON(http.StatusAccepted, gin.H{
		"document_id":  res.DocumentID,
		"deduplicated": res.Deduplicated,
		"queued":       queued,
	})
}

func (s *Server) apiListDocuments(c *gin.Context) {
	docs, err := s.deps.Documents.List(c.Request.Context(), clampLimit(c, 100))
	if err != nil {
		s.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) apiGetDocument(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.jsonError(c, common.WrapError(common.ErrInvalidInput, "invalid document id"))
		return
	}
	view, err := s.loadDocumentView(c, id)
	if err != nil {
		s.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document": view.Doc,
		"job":      view.Job,
		"invoice":  view.Invoice,
		"analysis": view.Analysis,
	})
}

func (s *Server) apiListInvoices(c *gin.Context) {
	invs, err := s.deps.Invoices.List(c.Request.Context(), clampLimit(c, 100))
	if err != nil {
		s.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"invoices": invs})
}

func (s *Server) apiGetInvoice(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.jsonError(c, common.WrapError(common.ErrInvalidInput, "invalid invoice id"))
		return
	}
	inv, err := s.deps.Invoices.GetByID(c.Request.Context(), id)
	if err != nil {
		s.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, inv)
}

func (s *Server) apiGetAnalysis(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.jsonError(c, common.WrapError(common.ErrInvalidInput, "invalid invoice id"))
		return
	}
	a, err := s.deps.Analyses.GetLatestForInvoice(c.Request.Context(), id)
	if err != nil {
		s.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

type analyzeRequest struct {
	ContractStart string `json:"contract_start"`
	ContractEnd   string `json:"contract_end"`
}

func (s *Server) apiAnalyze(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		s.jsonError(c, common.WrapError(common.ErrInvalidInput, "invalid invoice id"))
		return
	}

	var req analyzeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			s.jsonError(c, common.WrapError(common.ErrInvalidInput, "malformed request body"))
			return
		}
	}
	start, end, err := parseContractWindow(req.ContractStart, req.ContractEnd)
	if err != nil {
		s.jsonError(c, common.WrapError(common.ErrInvalidInput, err.Error()))
		return
	}

	a, err := s.deps.Analyze.Run(c.Request.Context(), id, start, end)
	if err != nil {
		s.jsonError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}
