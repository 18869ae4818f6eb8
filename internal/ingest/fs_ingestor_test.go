package ingest

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/docuflow/invoice-audit/internal/common"
	"github.com/docuflow/invoice-audit/internal/entity"
)

// memDocs is an in-memory DocumentRepository keyed by content hash.
type memDocs struct {
	docs []*entity.Document
}

func (m *memDocs) GetByID(_ context.Context, id uuid.UUID) (*entity.Document, error) {
	for _, d := range m.docs {
		if d.ID == id {
			return d, nil
		}
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
	doc.ID = uuid.New()
	m.docs = append(m.docs, doc)
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

func (m *memDocs) List(_ context.Context, _ int) ([]entity.Document, error) {
	out := make([]entity.Document, 0, len(m.docs))
	for _, d := range m.docs {
		out = append(out, *d)
	}
	return out, nil
}

func writeFile(t *testing.T, dir, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestIngestPathAndDedup(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "invoice.pdf", []byte("%PDF-1.4 fake"))

	repo := &memDocs{}
	ing := NewFSIngestor(repo, dir, nil)

	first, err := ing.IngestPath(context.Background(), path)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if first.Deduplicated {
		t.Fatalf("first ingest must not dedup")
	}
	if first.FileExt != "pdf" || first.HashHex == "" || first.DocumentID == "" {
		t.Fatalf("result = %+v", first)
	}

	// same content under a different name dedups by hash
	copyPath := writeFile(t, dir, "copy.pdf", []byte("%PDF-1.4 fake"))
	second, err := ing.IngestPath(context.Background(), copyPath)
	if err != nil {
		t.Fatalf("ingest copy: %v", err)
	}
	if !second.Deduplicated {
		t.Fatalf("expected dedup")
	}
	if second.DocumentID != first.DocumentID {
		t.Fatalf("dedup must return the original document")
	}
	if len(repo.docs) != 1 {
		t.Fatalf("docs = %d, want 1", len(repo.docs))
	}
}

func TestIngestPathRejectsUnsupportedExt(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "malware.exe", []byte("MZ"))

	ing := NewFSIngestor(&memDocs{}, dir, nil)
	if _, err := ing.IngestPath(context.Background(), path); err == nil {
		t.Fatalf("expected rejection")
	}
}

func TestIngestBytes(t *testing.T) {
	dir := t.TempDir()
	ing := NewFSIngestor(&memDocs{}, filepath.Join(dir, "uploads"), nil)

	res, err := ing.IngestBytes(context.Background(), "scan.png", []byte("\x89PNG fake"))
	if err != nil {
		t.Fatalf("ingest bytes: %v", err)
	}
	if res.FileExt != "png" {
		t.Fatalf("ext = %q", res.FileExt)
	}
	if _, err := os.Stat(res.SourcePath); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	if _, err := ing.IngestBytes(context.Background(), "", []byte("x")); err == nil {
		t.Fatalf("empty filename must fail")
	}
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.pdf", []byte("one"))
	writeFile(t, dir, "b.png", []byte("two"))
	writeFile(t, dir, "notes.docx", []byte("ignored"))
	writeFile(t, dir, ".hidden.pdf", []byte("hidden"))

	ing := NewFSIngestor(&memDocs{}, dir, nil)
	results, stats, err := ing.IngestDirectory(context.Background(), dir, true)
	if err != nil {
		t.Fatalf("ingest dir: %v", err)
	}
	if stats.Matched != 2 || stats.Succeeded != 2 || stats.Failed != 0 {
		t.Fatalf("stats = %+v", stats)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d", len(results))
	}

	if _, _, err := ing.IngestDirectory(context.Background(), "  ", true); err == nil {
		t.Fatalf("blank root must fail")
	}
}

func TestAllowedExtAndIsHidden(t *testing.T) {
	for _, ext := range []string{"pdf", ".PDF", "jpg", "xlsx", "md"} {
		if !AllowedExt(ext) {
			t.Fatalf("%q should be allowed", ext)
		}
	}
	if AllowedExt("exe") || AllowedExt("") {
		t.Fatalf("disallowed ext accepted")
	}
	if !IsHidden("/tmp/.cache") || IsHidden("/tmp/file.pdf") {
		t.Fatalf("IsHidden misjudged")
	}
}
