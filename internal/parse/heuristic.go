// Package parse implements a line-oriented heuristic extractor for invoice
// text. It exists for two situations: no LLM credentials are configured, or
// the model is unreachable. Recall is deliberately modest; the output shape
// matches what the model-based extractor returns.
package parse

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/docuflow/invoice-audit/internal/llm"
)

var (
	reAnyDate   = regexp.MustCompile(`(\d{1,2}[./-]\d{1,2}[./-]\d{4}|\d{4}[./-]\d{1,2}[./-]\d{1,2})`)
	reDigits    = regexp.MustCompile(`\d+`)
	reTaxDigits = regexp.MustCompile(`[\d-]+`)
	reIBAN      = regexp.MustCompile(`[A-Z]{2}\d{2}[A-Z0-9]{10,30}`)
	reTotal     = regexp.MustCompile(`\$?\s?(\d{1,3}(?:[.,]\d{2})?)`)
	reItemStart = regexp.MustCompile(`^\d+\.\s`)
	reItemFull  = regexp.MustCompile(`^\d+\.\s(.+?)\s(\d{1,3}[.,]\d{2})$`)
	reDecimal   = regexp.MustCompile(`\d{1,3}[.,]\d{2}`)
	reNetPrice  = regexp.MustCompile(`^\d{1,3}[.,]\d{2}$`)
)

// skip words for the forward date scan: these lines belong to other fields.
var dateScanSkip = []string{"tax id", "iban", "client", "total", "description", "qty", "summary", "items"}

// keywords that end a running item description.
var itemBreak = []string{"summary", "vat", "net price", "gross", "client", "$"}

// ExtractInvoiceData walks the text line by line matching field labels and a
// numbered item list. Fields it cannot find stay zero.
func ExtractInvoiceData(text string) llm.InvoiceFields {
	lines := strings.Split(text, "\n")
	var inv llm.InvoiceFields

	nextNonEmpty := func(idx int) string {
		for i := idx + 1; i < len(lines); i++ {
			if s := strings.TrimSpace(lines[i]); s != "" {
				return s
			}
		}
		return ""
	}

	for i, line := range lines {
		clean := strings.ToLower(strings.TrimSpace(line))
		combined := line + " " + nextNonEmpty(i)

		switch {
		case strings.Contains(clean, "invoice no") || strings.Contains(clean, "invoice number"):
			if m := reDigits.FindString(combined); m != "" {
				inv.InvoiceNumber = m
			}

		case strings.Contains(clean, "supplier") || strings.Contains(clean, "seller"):
			inv.SupplierName = nextNonEmpty(i)

		case containsAny(strings.ToLower(combined), "invoice date", "date of issue", "issue date", "date:"):
			m := reAnyDate.FindString(combined)
			if m == "" {
				// the date often sits a few lines below the label; skip
				// lines that clearly belong to other fields
				for j := i + 1; j < len(lines); j++ {
					future := strings.TrimSpace(lines[j])
					if containsAny(strings.ToLower(future), dateScanSkip...) {
						continue
					}
					if m = reAnyDate.FindString(future); m != "" {
						break
					}
				}
			}
			if m != "" {
				inv.InvoiceDate = m
			}

		case strings.Contains(clean, "service period"):
			if m := reAnyDate.FindString(combined); m != "" {
				inv.ServiceDate = m
			}

		case strings.Contains(clean, "due date"):
			if m := reAnyDate.FindString(combined); m != "" {
				inv.DueDate = m
			}

		case strings.Contains(clean, "tax id") && inv.TaxID == "":
			if m := reTaxDigits.FindString(combined); m != "" {
				inv.TaxID = m
			}

		case strings.Contains(clean, "bank account") || strings.Contains(clean, "iban"):
			if m := reIBAN.FindString(combined); m != "" {
				inv.BankAccount = m
			}

		case strings.Contains(clean, "total amount") || strings.Contains(clean, "total"):
			m := reTotal.FindStringSubmatch(line)
			if m == nil {
				for j := i + 1; j < min(i+4, len(lines)); j++ {
					if m = reTotal.FindStringSubmatch(lines[j]); m != nil {
						break
					}
				}
			}
			if m != nil {
				if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64); err == nil {
					inv.TotalAmount = &v
				}
			}
		}
	}

	inv.LineItems = extractLineItems(lines)
	return inv
}

// extractLineItems parses numbered rows like "1. Widget set 2,00" where the
// trailing decimal is the quantity. Unit prices usually appear later in a
// separate "net price" column, collected and zipped back by position.
func extractLineItems(lines []string) []llm.LineItem {
	var (
		items            []llm.LineItem
		current          *llm.LineItem
		netPrices        []float64
		collectingPrices bool
	)

	flush := func() {
		if current != nil {
			items = append(items, *current)
			current = nil
		}
	}

	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		lower := strings.ToLower(line)

		switch {
		case reItemStart.MatchString(line):
			flush()
			if m := reItemFull.FindStringSubmatch(line); m != nil {
				qty, _ := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", "."), 64)
				current = &llm.LineItem{Description: strings.TrimSpace(m[1]), Quantity: qty}
			} else {
				_, desc, _ := strings.Cut(line, ".")
				desc = strings.TrimSpace(desc)
				qty := 1.0
				if qm := reDecimal.FindString(desc); qm != "" {
					qty, _ = strconv.ParseFloat(strings.ReplaceAll(qm, ",", "."), 64)
					desc = strings.TrimSpace(reDecimal.ReplaceAllString(desc, ""))
				}
				current = &llm.LineItem{Description: desc, Quantity: qty}
			}

		case current != nil && line != "" && !reDecimal.MatchString(line) && !containsAny(lower, itemBreak...):
			current.Description += " " + line

		case strings.Contains(lower, "net price"):
			collectingPrices = true

		case collectingPrices && reNetPrice.MatchString(line):
			v, _ := strconv.ParseFloat(strings.ReplaceAll(line, ",", "."), 64)
			netPrices = append(netPrices, v)

		case current != nil && (strings.Contains(lower, "summary") || i == len(lines)-1):
			flush()
		}
	}
	flush()

	for idx := range items {
		if idx < len(netPrices) {
			p := netPrices[idx]
			items[idx].UnitPrice = &p
		}
	}
	return items
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
