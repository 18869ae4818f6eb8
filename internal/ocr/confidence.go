package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate    = regexp.MustCompile(`\b\d{1,2}[./-]\d{1,2}[./-]\d{4}\b|\b\d{4}[./-]\d{1,2}[./-]\d{1,2}\b`)
	reCurr    = regexp.MustCompile(`\b(usd|eur|gbp|cad|aud|inr|jpy)\b|[$£€]`)
	reAmount  = regexp.MustCompile(`\b\d{1,3}(,\d{3})*(\.\d{2})\b|\b\d+[.,]\d{2}\b`)
	reInvoice = regexp.MustCompile(`invoice\s*(no|number|#)`)
	reIBAN    = regexp.MustCompile(`\b[A-Za-z]{2}\d{2}[A-Za-z0-9]{10,30}\b`)
)

func hasDatePattern(s string) bool { return reDate.MatchString(s) }

func hasCurrencyPattern(s string) bool { return reCurr.MatchString(s) }

func hasAmountPattern(s string) bool { return reAmount.MatchString(s) }

func hasInvoiceHeader(s string) bool { return reInvoice.MatchString(s) }

func hasIBANPattern(s string) bool { return reIBAN.MatchString(s) }

// heuristicConfidence scores decoded text by how much it looks like an invoice
// (date-ish, amount-ish, header-ish artifacts). Used when the OCR engine gives
// no word-level confidence.
func heuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if hasInvoiceHeader(txtL) {
		score += 0.2
	}
	if hasDatePattern(txtL) {
		score += 0.15
	}
	if hasCurrencyPattern(txtL) || hasIBANPattern(txt) {
		score += 0.15
	}
	if hasAmountPattern(txtL) {
		score += 0.15
	}
	if len(txt) > 120 { // enough content
		score += 0.1
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
