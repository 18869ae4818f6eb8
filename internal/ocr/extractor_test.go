package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// stubRunner fakes the external binaries so extraction strategy can be tested
// without tesseract or poppler installed.
type stubRunner struct {
	pdftotextOut string
	pdftotextErr error
	tesseractOut string
	tesseractErr error
	renderPages  int

	calls []string
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.calls = append(s.calls, name)
	switch {
	case strings.Contains(name, "pdftotext"):
		return []byte(s.pdftotextOut), nil, s.pdftotextErr
	case strings.Contains(name, "pdftoppm"):
		// last arg is the output prefix; emit fake page files
		prefix := args[len(args)-1]
		for i := 1; i <= s.renderPages; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o644); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case strings.Contains(name, "tesseract"):
		return []byte(s.tesseractOut), nil, s.tesseractErr
	}
	return nil, nil, fmt.Errorf("unexpected command %q", name)
}

func newTestExtractor(r Runner) *Extractor {
	e := NewExtractor(Config{}, nil)
	e.runner = r
	return e
}

func TestExtractPDFNativeText(t *testing.T) {
	stub := &stubRunner{pdftotextOut: "Invoice no: 61356291\nTotal: $9.00\f"}
	e := newTestExtractor(stub)

	res, err := e.Extract(context.Background(), "/tmp/invoice.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Method != "pdf-text" {
		t.Fatalf("expected pdf-text method, got %q", res.Method)
	}
	if !strings.Contains(res.Text, "61356291") {
		t.Fatalf("text lost during normalization: %q", res.Text)
	}
	if res.Pages != 2 {
		t.Errorf("expected 2 pages from one form feed, got %d", res.Pages)
	}
	for _, c := range stub.calls {
		if strings.Contains(c, "tesseract") {
			t.Fatal("tesseract must not run when the PDF has a text layer")
		}
	}
}

func TestExtractPDFFallsBackToOCR(t *testing.T) {
	stub := &stubRunner{
		pdftotextOut: "  \n \n", // scanned PDF: no text layer
		tesseractOut: "Invoice no: 12345\nTotal 42.00",
		renderPages:  2,
	}
	e := newTestExtractor(stub)

	res, err := e.Extract(context.Background(), "/tmp/scan.pdf")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Method != "pdf-ocr" {
		t.Fatalf("expected pdf-ocr fallback, got %q", res.Method)
	}
	if res.Pages != 2 {
		t.Errorf("expected 2 rendered pages, got %d", res.Pages)
	}
	if !strings.Contains(res.Text, "\f") {
		t.Error("expected a page break marker between OCR'd pages")
	}
}

func TestExtractPDFNoPagesRendered(t *testing.T) {
	stub := &stubRunner{pdftotextOut: "", renderPages: 0}
	e := newTestExtractor(stub)

	_, err := e.Extract(context.Background(), "/tmp/empty.pdf")
	if err == nil {
		t.Fatal("expected an error when rasterization yields no pages")
	}
}

func TestExtractImageOCR(t *testing.T) {
	stub := &stubRunner{tesseractOut: "Invoice no: 987\r\nSeller:\r\n\r\n\r\nAcme GmbH  \nTotal  $12.50"}
	e := newTestExtractor(stub)

	res, err := e.Extract(context.Background(), "/tmp/photo.jpg")
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Method != "image-ocr" {
		t.Fatalf("expected image-ocr, got %q", res.Method)
	}
	if strings.Contains(res.Text, "\r") {
		t.Error("CRLF should be normalized away")
	}
	if strings.Contains(res.Text, "\n\n\n") {
		t.Error("blank-line runs should be collapsed")
	}
	if res.Confidence <= 0 {
		t.Errorf("heuristic confidence should be positive, got %f", res.Confidence)
	}
}

func TestExtractImageTesseractFailure(t *testing.T) {
	stub := &stubRunner{tesseractErr: errors.New("exit status 1")}
	e := newTestExtractor(stub)

	_, err := e.Extract(context.Background(), "/tmp/photo.png")
	if err == nil {
		t.Fatal("expected tesseract failure to propagate")
	}
}

func TestExtractUnsupportedExtension(t *testing.T) {
	e := newTestExtractor(&stubRunner{})
	if _, err := e.Extract(context.Background(), filepath.Join("/tmp", "notes.docx")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestHeuristicConfidenceOrdering(t *testing.T) {
	invoiceish := "Invoice no: 61356291\nDate of issue: 09/06/2012\nIBAN GB50ACIE59715038217063\nTotal $128.40\n" +
		strings.Repeat("line item description text ", 10)
	garbage := "@@##"

	if heuristicConfidence(invoiceish) <= heuristicConfidence(garbage) {
		t.Fatal("invoice-like text must score above noise")
	}
}

func TestNormalize(t *testing.T) {
	in := "a\tb\r\nc d   e  \n\n\n\n f"
	out := Normalize(in)
	if strings.ContainsAny(out, "\r\t ") {
		t.Fatalf("normalization left control characters: %q", out)
	}
	if strings.Contains(out, "  ") {
		t.Fatalf("normalization left space runs: %q", out)
	}
}
