package parse

import "testing"

const sampleInvoice = `Invoice no: 61356291
Date of issue:
09/06/2012

Seller:
Chapman, Kim and Green
64731 James Branch
Tax Id: 949-84-9105
IBAN: GB50ACIE59715038217063

ITEMS
1. Stemware Storage Iron Wine Rack 4,00
2. Wine Glasses Set of 4 1,00
Net price
12,00
28,08
SUMMARY
Total $ 76,08`

func TestExtractInvoiceData(t *testing.T) {
	inv := ExtractInvoiceData(sampleInvoice)

	if inv.InvoiceNumber != "61356291" {
		t.Fatalf("invoice_number = %q", inv.InvoiceNumber)
	}
	if inv.InvoiceDate != "09/06/2012" {
		t.Fatalf("invoice_date = %q", inv.InvoiceDate)
	}
	if inv.SupplierName != "Chapman, Kim and Green" {
		t.Fatalf("supplier_name = %q", inv.SupplierName)
	}
	if inv.TaxID != "949-84-9105" {
		t.Fatalf("tax_id = %q", inv.TaxID)
	}
	if inv.BankAccount != "GB50ACIE59715038217063" {
		t.Fatalf("bank_account = %q", inv.BankAccount)
	}
	if inv.TotalAmount == nil || *inv.TotalAmount != 76.08 {
		t.Fatalf("total_amount = %v", inv.TotalAmount)
	}

	if len(inv.LineItems) != 2 {
		t.Fatalf("line_items = %d, want 2", len(inv.LineItems))
	}
	first := inv.LineItems[0]
	if first.Description != "Stemware Storage Iron Wine Rack" || first.Quantity != 4 {
		t.Fatalf("first item = %+v", first)
	}
	if first.UnitPrice == nil || *first.UnitPrice != 12 {
		t.Fatalf("first unit_price = %v", first.UnitPrice)
	}
	second := inv.LineItems[1]
	if second.Quantity != 1 || second.UnitPrice == nil || *second.UnitPrice != 28.08 {
		t.Fatalf("second item = %+v", second)
	}
}

func TestExtractInvoiceDataMultilineDescription(t *testing.T) {
	text := `1. With Hooks Stemware Storage
Multiple Uses Iron Wine Rack 4,00
Net price
12,00
SUMMARY`

	inv := ExtractInvoiceData(text)
	if len(inv.LineItems) != 1 {
		t.Fatalf("line_items = %d, want 1", len(inv.LineItems))
	}
	item := inv.LineItems[0]
	if item.Description != "With Hooks Stemware Storage" {
		t.Fatalf("description = %q", item.Description)
	}
	if item.Quantity != 1 {
		t.Fatalf("quantity = %v, want default 1", item.Quantity)
	}
	if item.UnitPrice == nil || *item.UnitPrice != 12 {
		t.Fatalf("unit_price = %v", item.UnitPrice)
	}
}

func TestExtractInvoiceDataDueAndServiceDates(t *testing.T) {
	text := `Due date 10/06/2012
Service period 01/05/2012 - 31/05/2012`

	inv := ExtractInvoiceData(text)
	if inv.DueDate != "10/06/2012" {
		t.Fatalf("due_date = %q", inv.DueDate)
	}
	if inv.ServiceDate != "01/05/2012" {
		t.Fatalf("service_date = %q", inv.ServiceDate)
	}
}

func TestExtractInvoiceDataLastSupplierWins(t *testing.T) {
	text := `Seller:
Chapman, Kim and Green

Supplier:
Riley Group`

	inv := ExtractInvoiceData(text)
	if inv.SupplierName != "Riley Group" {
		t.Fatalf("supplier_name = %q, want the last labelled value", inv.SupplierName)
	}
}

func TestExtractInvoiceDataEmpty(t *testing.T) {
	inv := ExtractInvoiceData("nothing interesting here")
	if !inv.IsEmpty() {
		t.Fatalf("expected empty fields, got %+v", inv)
	}
}
