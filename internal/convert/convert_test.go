package convert

import (
	"strings"
	"testing"
)

func TestConvertPlainText(t *testing.T) {
	c := NewConverter(nil)
	res, err := c.Convert([]byte("Invoice 123\nTotal 9.00"), "txt")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if res.Method != "text" || !strings.Contains(res.Markdown, "Invoice 123") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestConvertHTMLStripsMarkup(t *testing.T) {
	c := NewConverter(nil)
	in := `<html><head><style>p{color:red}</style></head>
<body><h1>Invoice 42</h1><script>alert(1)</script>
<table><tr><td>Widget</td><td>19.99</td></tr></table></body></html>`

	res, err := c.Convert([]byte(in), "html")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if strings.Contains(res.Markdown, "alert") || strings.Contains(res.Markdown, "color:red") {
		t.Fatalf("script/style leaked into text: %q", res.Markdown)
	}
	if !strings.Contains(res.Markdown, "Invoice 42") || !strings.Contains(res.Markdown, "Widget") {
		t.Fatalf("content lost: %q", res.Markdown)
	}
}

func TestConvertCSVTable(t *testing.T) {
	c := NewConverter(nil)
	res, err := c.Convert([]byte("description,quantity,unit_price\nWine Rack,4,12\nGlasses,1,28.08\n"), "csv")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	lines := strings.Split(res.Markdown, "\n")
	if len(lines) != 4 {
		t.Fatalf("expected header, separator and 2 rows, got %d lines:\n%s", len(lines), res.Markdown)
	}
	if !strings.HasPrefix(lines[1], "| ---") {
		t.Fatalf("missing markdown separator row: %q", lines[1])
	}
	if !strings.Contains(res.Markdown, "| Wine Rack |") {
		t.Fatalf("cell content lost: %q", res.Markdown)
	}
}

func TestConvertCSVEscapesPipes(t *testing.T) {
	c := NewConverter(nil)
	res, err := c.Convert([]byte("a\nvalue|with|pipes\n"), "csv")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.Contains(res.Markdown, `value\|with\|pipes`) {
		t.Fatalf("pipes not escaped: %q", res.Markdown)
	}
}

func TestConvertJSON(t *testing.T) {
	c := NewConverter(nil)
	res, err := c.Convert([]byte(`{"total_amount":9}`), "json")
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if !strings.HasPrefix(res.Markdown, "```json") {
		t.Fatalf("expected fenced block, got %q", res.Markdown)
	}
}

func TestConvertUnsupported(t *testing.T) {
	c := NewConverter(nil)
	if _, err := c.Convert([]byte("x"), "docx"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestSupported(t *testing.T) {
	for _, ext := range []string{"txt", ".md", "HTML", "csv", "xlsx", "json"} {
		if !Supported(ext) {
			t.Errorf("Supported(%q) = false, want true", ext)
		}
	}
	if Supported("pdf") || Supported("png") {
		t.Error("pdf and images are not conversion targets")
	}
}

func TestPreviewHTML(t *testing.T) {
	out, err := PreviewHTML("# Title\n\n| a | b |\n| --- | --- |\n| 1 | 2 |")
	if err != nil {
		t.Fatalf("PreviewHTML: %v", err)
	}
	if !strings.Contains(string(out), "<h1") || !strings.Contains(string(out), "<table") {
		t.Fatalf("markdown not rendered: %q", out)
	}
}
