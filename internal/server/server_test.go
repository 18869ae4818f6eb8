package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-audit/internal/analysis"
	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/entity"
	"github.com/docuflow/invoice-audit/internal/export"
	"github.com/docuflow/invoice-audit/internal/ingest"
	"github.com/docuflow/invoice-audit/internal/pipeline"
	"github.com/docuflow/invoice-audit/internal/repository"
)

type memDocs struct {
	docs map[uuid.UUID]*entity.Document
}

func (m *memDocs) GetByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	if d, ok := m.docs[id]; ok {
		return d, nil
	}
	return nil, common.ErrNotFound
}

func (m *memDocs) GetByHash(_ context.Context, hash []byte) (*entity.Document, error) {
	for _, d := range m.docs {
		if bytes.Equal(d.ContentHash, hash) {
			return d, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memDocs) Create(_ context.Context, doc *entity.Document) error {
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memDocs) UpsertByHash(ctx context.Context, doc *entity.Document) (*entity.Document, bool, error) {
	if existing, err := m.GetByHash(ctx, doc.ContentHash); err == nil {
		return existing, true, nil
	}
	if err := m.Create(ctx, doc); err != nil {
		return nil, false, err
	}
	return doc, false, nil
}

func (m *memDocs) List(context.Context, int) ([]entity.Document, error) {
	out := make([]entity.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, *d)
	}
	return out, nil
}

type memJobs struct {
	jobs map[uuid.UUID]*entity.ExtractJob
}

func (m *memJobs) Start(_ context.Context, documentID uuid.UUID, format string) (*entity.ExtractJob, error) {
	j := &entity.ExtractJob{ID: uuid.New(), DocumentID: documentID, Format: format, Status: "RUNNING", StartedAt: time.Now()}
	m.jobs[j.ID] = j
	return j, nil
}

func (m *memJobs) GetByID(_ context.Context, id uuid.UUID) (*entity.ExtractJob, error) {
	if j, ok := m.jobs[id]; ok {
		return j, nil
	}
	return nil, common.ErrNotFound
}

func (m *memJobs) GetLatestForDocument(_ context.Context, documentID uuid.UUID) (*entity.ExtractJob, error) {
	var latest *entity.ExtractJob
	for _, j := range m.jobs {
		if j.DocumentID != documentID {
			continue
		}
		if latest == nil || j.StartedAt.After(latest.StartedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, common.ErrNotFound
	}
	return latest, nil
}

func (m *memJobs) FinishText(_ context.Context, jobID uuid.UUID, out repository.TextOutcome) error {
	j := m.jobs[jobID]
	j.Text, j.Method, j.Pages, j.Confidence = out.Text, out.Method, out.Pages, out.Confidence
	j.Status = "TEXT_OK"
	return nil
}

func (m *memJobs) FinishParse(_ context.Context, jobID, invoiceID uuid.UUID, modelName string, raw json.RawMessage) error {
	j := m.jobs[jobID]
	j.InvoiceID, j.ModelName, j.RawLLMJSON, j.Status = &invoiceID, modelName, raw, "PARSED"
	return nil
}

func (m *memJobs) MarkAnalyzed(_ context.Context, jobID uuid.UUID) error {
	if j, ok := m.jobs[jobID]; ok {
		j.Status = "ANALYZED"
	}
	return nil
}

func (m *memJobs) FinishFailure(_ context.Context, jobID uuid.UUID, message string) error {
	j := m.jobs[jobID]
	j.Status, j.ErrorMessage = "FAILED", message
	return nil
}

type memInvoices struct {
	invoices map[uuid.UUID]*entity.Invoice
}

func (m *memInvoices) GetByID(_ context.Context, id uuid.UUID) (*entity.Invoice, error) {
	if inv, ok := m.invoices[id]; ok {
		return inv, nil
	}
	return nil, common.ErrNotFound
}

func (m *memInvoices) GetByDocument(_ context.Context, documentID uuid.UUID) (*entity.Invoice, error) {
	for _, inv := range m.invoices {
		if inv.DocumentID == documentID {
			return inv, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memInvoices) Upsert(_ context.Context, inv *entity.Invoice) (*entity.Invoice, error) {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	m.invoices[inv.ID] = inv
	return inv, nil
}

func (m *memInvoices) List(context.Context, int) ([]entity.Invoice, error) {
	out := make([]entity.Invoice, 0, len(m.invoices))
	for _, inv := range m.invoices {
		out = append(out, *inv)
	}
	return out, nil
}

type memAnalyses struct {
	rows []*entity.Analysis
}

func (m *memAnalyses) Create(_ context.Context, a *entity.Analysis) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	m.rows = append(m.rows, a)
	return nil
}

func (m *memAnalyses) GetByID(_ context.Context, id uuid.UUID) (*entity.Analysis, error) {
	for _, a := range m.rows {
		if a.ID == id {
			return a, nil
		}
	}
	return nil, common.ErrNotFound
}

func (m *memAnalyses) GetLatestForInvoice(_ context.Context, invoiceID uuid.UUID) (*entity.Analysis, error) {
	var latest *entity.Analysis
	for _, a := range m.rows {
		if a.InvoiceID != invoiceID {
			continue
		}
		if latest == nil || a.CreatedAt.After(latest.CreatedAt) {
			latest = a
		}
	}
	if latest == nil {
		return nil, common.ErrNotFound
	}
	return latest, nil
}

type fakeProcessor struct {
	calls []uuid.UUID
}

func (p *fakeProcessor) ProcessDocument(_ context.Context, documentID uuid.UUID) error {
	p.calls = append(p.calls, documentID)
	return nil
}

type testEnv struct {
	docs      *memDocs
	jobs      *memJobs
	invoices  *memInvoices
	analyses  *memAnalyses
	processor *fakeProcessor
	srv       *Server
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		docs:      &memDocs{docs: map[uuid.UUID]*entity.Document{}},
		jobs:      &memJobs{jobs: map[uuid.UUID]*entity.ExtractJob{}},
		invoices:  &memInvoices{invoices: map[uuid.UUID]*entity.Invoice{}},
		analyses:  &memAnalyses{},
		processor: &fakeProcessor{},
	}
	analyzer := analysis.NewAnalyzer(analysis.Config{}, nil)
	deps := Deps{
		Documents: env.docs,
		Jobs:      env.jobs,
		Invoices:  env.invoices,
		Analyses:  env.analyses,
		Ingestor:  ingest.NewFSIngestor(env.docs, t.TempDir(), nil),
		Processor: env.processor,
		Analyze:   pipeline.NewAnalyzeStage(nil, env.invoices, env.analyses, env.jobs, analyzer),
		Analyzer:  analyzer,
		Exporter:  export.NewService(env.invoices, env.analyses, env.docs, nil),
		LLMModel:  "deepseek-chat",
	}
	srv, err := New(common.ServerConfig{Addr: ":0"}, deps, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	env.srv = srv
	return env
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, req)
	return w
}

func (e *testEnv) seedInvoice(t *testing.T, items []entity.LineItem) *entity.Invoice {
	t.Helper()
	total := 600.0
	inv := &entity.Invoice{
		ID:            uuid.New(),
		DocumentID:    uuid.New(),
		JobID:         uuid.New(),
		InvoiceNumber: "INV-100",
		SupplierName:  "Chapman, Kim and Green",
		InvoiceDate:   "09/06/2012",
		TaxID:         "949-84-9105",
		BankAccount:   "GB73WAUS60038845955209",
		TotalAmount:   &total,
	}
	if err := inv.SetItems(items); err != nil {
		t.Fatalf("SetItems: %v", err)
	}
	e.invoices.invoices[inv.ID] = inv
	e.jobs.jobs[inv.JobID] = &entity.ExtractJob{ID: inv.JobID, DocumentID: inv.DocumentID, Status: "PARSED"}
	return inv
}

func sampleItems() []entity.LineItem {
	prices := []float64{10, 11, 10.5, 9.8, 10.2, 10.1, 950}
	items := make([]entity.LineItem, len(prices))
	for i := range prices {
		p := prices[i]
		items[i] = entity.LineItem{Description: "Item", Quantity: 1, UnitPrice: &p}
	}
	return items
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func TestUploadRedirectsAndProcesses(t *testing.T) {
	env := newTestEnv(t)
	body, ctype := multipartBody(t, "document", "invoice.md", []byte("# Invoice 123\n"))
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ctype)

	w := env.do(t, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303; body: %s", w.Code, w.Body.String())
	}
	if len(env.processor.calls) != 1 {
		t.Fatalf("processor calls = %d, want 1", len(env.processor.calls))
	}
	loc := w.Header().Get("Location")
	if !strings.HasPrefix(loc, "/documents/") {
		t.Fatalf("redirect location = %q", loc)
	}
}

func TestUploadFormOffersOnlyIntakeExtensions(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(t, httptest.NewRequest(http.MethodGet, "/upload", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	m := regexp.MustCompile(`accept="([^"]+)"`).FindStringSubmatch(w.Body.String())
	if m == nil {
		t.Fatal("upload form has no accept attribute")
	}
	for _, ext := range strings.Split(m[1], ",") {
		if !ingest.AllowedExt(ext) {
			t.Errorf("form offers %s but intake rejects it", ext)
		}
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=x")

	w := env.do(t, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestDuplicateUploadSkipsProcessing(t *testing.T) {
	env := newTestEnv(t)
	content := []byte("# Invoice 123\n")

	for i := 0; i < 2; i++ {
		body, ctype := multipartBody(t, "document", "invoice.md", content)
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ctype)
		if w := env.do(t, req); w.Code != http.StatusSeeOther {
			t.Fatalf("upload %d: status = %d", i, w.Code)
		}
	}
	if len(env.processor.calls) != 1 {
		t.Fatalf("processor calls = %d, want 1 after duplicate upload", len(env.processor.calls))
	}
}

func TestShowDocumentNotFound(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/documents/"+uuid.NewString(), nil)
	if w := env.do(t, req); w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

func TestFraudAnalyzeFlagsOutlier(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t, sampleItems())

	form := "contract_start=2012-01-01&contract_end=2012-12-31"
	req := httptest.NewRequest(http.MethodPost, "/fraud/"+inv.ID.String()+"/analyze", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	w := env.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	page := w.Body.String()
	if !strings.Contains(page, "Potential fraud/anomalies detected") {
		t.Fatalf("page does not report the anomaly:\n%s", page)
	}
	if !strings.Contains(page, "Flagged line items") {
		t.Fatal("page does not list flagged items")
	}
	if len(env.analyses.rows) != 1 {
		t.Fatalf("analyses persisted = %d, want 1", len(env.analyses.rows))
	}
	if env.jobs.jobs[inv.JobID].Status != "ANALYZED" {
		t.Fatalf("job status = %s, want ANALYZED", env.jobs.jobs[inv.JobID].Status)
	}
}

func TestFraudAnalyzeRejectsInvertedWindow(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t, sampleItems())

	form := "contract_start=2012-12-31&contract_end=2012-01-01"
	req := httptest.NewRequest(http.MethodPost, "/fraud/"+inv.ID.String()+"/analyze", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if w := env.do(t, req); w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestChartPNG(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t, sampleItems())

	req := httptest.NewRequest(http.MethodGet, "/fraud/"+inv.ID.String()+"/chart.png", nil)
	w := env.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %s", ct)
	}
	if got := w.Body.Bytes(); len(got) < 8 || string(got[1:4]) != "PNG" {
		t.Fatal("response is not a PNG")
	}
}

func TestAPIAnalyzeReturnsVerdict(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t, sampleItems())

	payload := `{"contract_start":"2012-01-01","contract_end":"2012-12-31"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/invoices/"+inv.ID.String()+"/analyze", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	w := env.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d; body: %s", w.Code, w.Body.String())
	}
	var got entity.Analysis
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Status != "warning" {
		t.Fatalf("status = %s, want warning", got.Status)
	}
}

func TestAPIGetInvoice(t *testing.T) {
	env := newTestEnv(t)
	inv := env.seedInvoice(t, sampleItems())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/invoices/"+inv.ID.String(), nil)
	w := env.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var got entity.Invoice
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.InvoiceNumber != inv.InvoiceNumber {
		t.Fatalf("invoice number = %s, want %s", got.InvoiceNumber, inv.InvoiceNumber)
	}
}

func TestAPIHealth(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	w := env.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body struct {
		Status       string          `json:"status"`
		Dependencies map[string]bool `json:"dependencies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Status != "ok" {
		t.Fatalf("status = %s", body.Status)
	}
	if !body.Dependencies["llm"] {
		t.Fatal("llm should report available when a model is configured")
	}
	if body.Dependencies["postgres"] {
		t.Fatal("postgres should report unavailable without a database")
	}
}

func TestExportEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedInvoice(t, sampleItems())

	req := httptest.NewRequest(http.MethodGet, "/export.xlsx", nil)
	w := env.do(t, req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "invoices.xlsx") {
		t.Fatalf("content disposition = %q", cd)
	}
	if w.Body.Len() == 0 {
		t.Fatal("empty workbook")
	}
}
