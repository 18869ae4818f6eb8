// Package server is the browser dashboard and JSON API. It mirrors the three
// original surfaces: document intake, the fraud detector, and a status page.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/docuflow/invoice-audit/internal/analysis"
	"github.com/docuflow/invoice-audit/internal/async"
	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/export"
	"github.com/docuflow/invoice-audit/internal/ingest"
	"github.com/docuflow/invoice-audit/internal/pipeline"
	"github.com/docuflow/invoice-audit/internal/repository"
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps bundles everything the handlers touch.
type Deps struct {
	DB        *gorm.DB
	Documents repository.DocumentRepository
	Jobs      repository.JobRepository
	Invoices  repository.InvoiceRepository
	Analyses  repository.AnalysisRepository
	Ingestor  ingest.Ingestor
	Queue     async.Queue
	Processor async.DocumentProcessor
	Analyze   *pipeline.AnalyzeStage
	Analyzer  *analysis.Analyzer
	Exporter  *export.Service
	OCR       common.OCRConfig
	LLMModel  string // empty when no API key is configured
}

type Server struct {
	cfg  common.ServerConfig
	deps Deps
	log  *slog.Logger
	tmpl *template.Template
	http *http.Server
}

func New(cfg common.ServerConfig, deps Deps, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := template.New("").Funcs(template.FuncMap{
		"money": formatMoney,
	}).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	s := &Server{cfg: cfg, deps: deps, log: logger, tmpl: tmpl}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Router builds the gin engine with all dashboard and API routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", func(c *gin.Context) { c.Redirect(http.StatusFound, "/upload") })
	r.GET("/upload", s.showUpload)
	r.POST("/upload", s.handleUpload)
	r.GET("/documents", s.listDocuments)
	r.GET("/documents/:id", s.showDocument)
	r.GET("/fraud/:invoiceID", s.showFraud)
	r.POST("/fraud/:invoiceID/analyze", s.handleAnalyze)
	r.GET("/fraud/:invoiceID/chart.png", s.renderChart)
	r.GET("/fraud/:invoiceID/analysis.json", s.downloadAnalysis)
	r.GET("/status", s.showStatus)
	r.GET("/export.xlsx", s.handleExport)

	api := r.Group("/api/v1")
	{
		api.GET("/health", s.apiHealth)
		api.POST("/documents", s.apiUpload)
		api.GET("/documents", s.apiListDocuments)
		api.GET("/documents/:id", s.apiGetDocument)
		api.GET("/invoices", s.apiListInvoices)
		api.GET("/invoices/:id", s.apiGetInvoice)
		api.GET("/invoices/:id/analysis", s.apiGetAnalysis)
		api.POST("/invoices/:id/analyze", s.apiAnalyze)
	}
	return r
}

// Run serves until ctx is cancelled, then drains with a short grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("dashboard listening", "addr", s.cfg.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.http.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

func (s *Server) render(c *gin.Context, status int, name string, data any) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(c.Writer, name, data); err != nil {
		s.log.Error("template render failed", "template", name, "error", err)
	}
}

func (s *Server) renderError(c *gin.Context, err error) {
	s.render(c, common.HTTPStatus(err), "error.html", gin.H{"Error": err.Error()})
}

func formatMoney(v *float64) string {
	if v == nil {
		return "—"
	}
	return fmt.Sprintf("%.2f", *v)
}
