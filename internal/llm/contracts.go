package llm

import "context"

// LineItem is one invoice row as returned by the model.
type LineItem struct {
	Description string   `json:"description"`
	Quantity    float64  `json:"quantity"`
	UnitPrice   *float64 `json:"unit_price"`
}

// InvoiceFields is the normalized shape we want from the LLM.
type InvoiceFields struct {
	InvoiceNumber string     `json:"invoice_number,omitempty"`
	InvoiceDate   string     `json:"invoice_date,omitempty"` // MM/DD/YYYY or as printed
	DueDate       string     `json:"due_date,omitempty"`
	ServiceDate   string     `json:"service_date,omitempty"`
	SupplierName  string     `json:"supplier_name,omitempty"`
	TaxID         string     `json:"tax_id,omitempty"`
	BankAccount   string     `json:"bank_account,omitempty"` // IBAN or account number
	TotalAmount   *float64   `json:"total_amount,omitempty"`
	LineItems     []LineItem `json:"line_items,omitempty"`
}

// IsEmpty reports whether extraction produced nothing usable.
func (f InvoiceFields) IsEmpty() bool {
	return f.InvoiceNumber == "" && f.SupplierName == "" && f.InvoiceDate == "" &&
		f.TaxID == "" && f.BankAccount == "" && f.TotalAmount == nil && len(f.LineItems) == 0
}

// ExtractRequest carries the extracted text plus hints into the extractor.
type ExtractRequest struct {
	Text         string
	FilenameHint string
	Confidence   float32 // extraction-stage confidence, 0 when unknown
}

// FieldExtractor is the interface the parse stage depends on.
type FieldExtractor interface {
	ExtractFields(ctx context.Context, req ExtractRequest) (InvoiceFields, []byte /*rawJSON*/, error)
}
