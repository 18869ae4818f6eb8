package llm

import (
	"regexp"
	"strconv"
)

// Regexes for salvaging fields out of almost-JSON responses. The model
// occasionally returns trailing commas, comments, or prose around the record;
// when strict parsing fails these recover what they can.
var (
	reInvoiceNumber = regexp.MustCompile(`"invoice_number"\s*:\s*"([^"]+)"`)
	reInvoiceDate   = regexp.MustCompile(`"invoice_date"\s*:\s*"([^"]+)"`)
	reDueDate       = regexp.MustCompile(`"due_date"\s*:\s*"([^"]+)"`)
	reSupplierName  = regexp.MustCompile(`"supplier_name"\s*:\s*"([^"]+)"`)
	reTaxID         = regexp.MustCompile(`"tax_id"\s*:\s*"([^"]+)"`)
	reBankAccount   = regexp.MustCompile(`"bank_account"\s*:\s*"([^"]+)"`)
	reTotalAmount   = regexp.MustCompile(`"total_amount"\s*:\s*(\d+\.?\d*)`)
	reItemTriple    = regexp.MustCompile(`"description"\s*:\s*"([^"]*)"\s*,\s*"quantity"\s*:\s*(\d+\.?\d*)\s*,\s*"unit_price"\s*:\s*(\d+\.?\d*)`)
)

// ExtractWithRegex recovers invoice fields from a malformed JSON response.
// Best effort only: fields it cannot find stay zero.
func ExtractWithRegex(jsonStr string) InvoiceFields {
	var f InvoiceFields

	if m := reInvoiceNumber.FindStringSubmatch(jsonStr); m != nil {
		f.InvoiceNumber = m[1]
	}
	if m := reInvoiceDate.FindStringSubmatch(jsonStr); m != nil {
		f.InvoiceDate = m[1]
	}
	if m := reDueDate.FindStringSubmatch(jsonStr); m != nil {
		f.DueDate = m[1]
	}
	if m := reSupplierName.FindStringSubmatch(jsonStr); m != nil {
		f.SupplierName = m[1]
	}
	if m := reTaxID.FindStringSubmatch(jsonStr); m != nil {
		f.TaxID = m[1]
	}
	if m := reBankAccount.FindStringSubmatch(jsonStr); m != nil {
		f.BankAccount = m[1]
	}
	if m := reTotalAmount.FindStringSubmatch(jsonStr); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			f.TotalAmount = &v
		}
	}

	for _, m := range reItemTriple.FindAllStringSubmatch(jsonStr, -1) {
		qty, err := strconv.ParseFloat(m[2], 64)
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		f.LineItems = append(f.LineItems, LineItem{
			Description: m[1],
			Quantity:    qty,
			UnitPrice:   &price,
		})
	}
	return f
}
