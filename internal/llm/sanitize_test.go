package llm

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestStripCodeFence(t *testing.T) {
	in := []byte("Here you go:\n```json\n{\"invoice_number\": \"A-1\"}\n```\nthanks")
	got := string(StripCodeFence(in))
	if got != `{"invoice_number": "A-1"}` {
		t.Fatalf("unexpected fence strip: %q", got)
	}

	bare := []byte("  {\"invoice_number\": \"A-1\"}\n")
	if string(StripCodeFence(bare)) != `{"invoice_number": "A-1"}` {
		t.Fatalf("bare JSON should pass through trimmed")
	}
}

func TestNormalizeAndSanitizeJSON(t *testing.T) {
	raw := []byte(`{
		"vendor_name": "ACME GmbH",
		"invoice_no": "RE-2024-001",
		"iban": "DE89370400440532013000",
		"total": "1.234,56",
		"confidence": 0.9,
		"items": [
			{"description": " Widgets ", "quantity": "2", "unit_price": "12,50"},
			{"description": "", "quantity": 1, "unit_price": 5},
			{"description": "Setup fee", "unit_price": 99.0}
		]
	}`)

	out, dropped, err := NormalizeAndSanitizeJSON(raw, nil)
	if err != nil {
		t.Fatalf("sanitize: %v", err)
	}
	if len(dropped) == 0 {
		t.Fatalf("expected dropped entries, got none")
	}

	var f InvoiceFields
	if err := json.Unmarshal(out, &f); err != nil {
		t.Fatalf("unmarshal sanitized: %v", err)
	}
	if f.SupplierName != "ACME GmbH" {
		t.Fatalf("supplier_name = %q", f.SupplierName)
	}
	if f.InvoiceNumber != "RE-2024-001" {
		t.Fatalf("invoice_number = %q", f.InvoiceNumber)
	}
	if f.BankAccount != "DE89370400440532013000" {
		t.Fatalf("bank_account = %q", f.BankAccount)
	}
	if f.TotalAmount == nil || *f.TotalAmount != 1234.56 {
		t.Fatalf("total_amount = %v", f.TotalAmount)
	}
	if len(f.LineItems) != 2 {
		t.Fatalf("line_items = %d, want 2 (empty description dropped)", len(f.LineItems))
	}
	if f.LineItems[0].Description != "Widgets" || f.LineItems[0].Quantity != 2 {
		t.Fatalf("first item = %+v", f.LineItems[0])
	}
	if f.LineItems[0].UnitPrice == nil || *f.LineItems[0].UnitPrice != 12.5 {
		t.Fatalf("first item unit_price = %v", f.LineItems[0].UnitPrice)
	}
	if f.LineItems[1].Quantity != 1 {
		t.Fatalf("missing quantity should default to 1, got %v", f.LineItems[1].Quantity)
	}
	if strings.Contains(string(out), "confidence") {
		t.Fatalf("unknown key survived: %s", out)
	}
}

func TestNormalizeAndSanitizeJSONInvalid(t *testing.T) {
	if _, _, err := NormalizeAndSanitizeJSON([]byte("not json"), nil); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestCoerceNumber(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{42.0, 42, true},
		{"12,50", 12.5, true},
		{"1.234,56", 1234.56, true},
		{"$1,234.56", 1234.56, true},
		{"", 0, false},
		{nil, 0, false},
		{"abc", 0, false},
	}
	for _, c := range cases {
		got, ok := coerceNumber(c.in)
		if ok != c.ok || got != c.want {
			t.Fatalf("coerceNumber(%v) = %v,%v want %v,%v", c.in, got, ok, c.want, c.ok)
		}
	}
}

func TestExtractWithRegex(t *testing.T) {
	broken := `{
		"invoice_number": "F-77",
		"invoice_date": "03/15/2024",
		"supplier_name": "Nordic Supplies",
		"tax_id": "GB123456789",
		"bank_account": "NO9386011117947",
		"total_amount": 420.50,
		"line_items": [
			{"description": "Cable set", "quantity": 3, "unit_price": 40.50},
			{"description": "Rack unit", "quantity": 1, "unit_price": 299}
		],` // trailing comma, unterminated object

	f := ExtractWithRegex(broken)
	if f.InvoiceNumber != "F-77" || f.SupplierName != "Nordic Supplies" {
		t.Fatalf("header fields: %+v", f)
	}
	if f.TotalAmount == nil || *f.TotalAmount != 420.50 {
		t.Fatalf("total_amount = %v", f.TotalAmount)
	}
	if len(f.LineItems) != 2 {
		t.Fatalf("line_items = %d, want 2", len(f.LineItems))
	}
	if f.LineItems[1].Description != "Rack unit" || *f.LineItems[1].UnitPrice != 299 {
		t.Fatalf("second item = %+v", f.LineItems[1])
	}

	if got := ExtractWithRegex("no json here"); !got.IsEmpty() {
		t.Fatalf("expected empty fields, got %+v", got)
	}
}

func TestValidateJSONAgainstSchema(t *testing.T) {
	schema := BuildInvoiceJSONSchema()

	good := []byte(`{"invoice_number":"A-1","line_items":[{"description":"x","quantity":1,"unit_price":2.5}]}`)
	if err := ValidateJSONAgainstSchema(schema, good); err != nil {
		t.Fatalf("valid payload rejected: %v", err)
	}

	extra := []byte(`{"invoice_number":"A-1","shoe_size":42}`)
	if err := ValidateJSONAgainstSchema(schema, extra); err == nil {
		t.Fatalf("additional property should be rejected")
	}

	badItem := []byte(`{"line_items":[{"quantity":1}]}`)
	if err := ValidateJSONAgainstSchema(schema, badItem); err == nil {
		t.Fatalf("line item without description should be rejected")
	}
}
