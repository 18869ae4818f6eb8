package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var reCodeFence = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)\\s*```")

// StripCodeFence extracts the JSON payload from a fenced code block when the
// model wrapped its answer in one; otherwise it returns the trimmed input.
func StripCodeFence(raw []byte) []byte {
	if m := reCodeFence.FindSubmatch(raw); m != nil {
		return []byte(strings.TrimSpace(string(m[1])))
	}
	return []byte(strings.TrimSpace(string(raw)))
}

// NormalizeAndSanitizeJSON
// - Renames known synonyms (vendor_name -> supplier_name, iban -> bank_account)
// - Drops null / empty optionals
// - Coerces string numbers ("12,50") to numbers for money-ish fields
// - Removes unknown keys (additionalProperties = false friendliness)
func NormalizeAndSanitizeJSON(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	dropped := make([]string, 0, 8)
	renamed := func(from, to string) {
		if v, ok := m[from]; ok {
			// don't overwrite an existing value
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			dropped = append(dropped, from+"->"+to)
		}
	}

	// 1) rename synonyms to our schema
	renamed("vendor_name", "supplier_name")
	renamed("seller_name", "supplier_name")
	renamed("iban", "bank_account")
	renamed("total", "total_amount")
	renamed("invoice_no", "invoice_number")
	renamed("items", "line_items")

	// 2) coerce money field; drop null/empty optionals
	if v, ok := m["total_amount"]; ok {
		if f, keep := coerceNumber(v); keep {
			m["total_amount"] = f
		} else {
			delete(m, "total_amount")
			dropped = append(dropped, "total_amount")
		}
	}

	// 3) line items: coerce numerics per row, drop rows without description
	if rows, ok := m["line_items"].([]any); ok {
		cleaned := make([]any, 0, len(rows))
		for _, rv := range rows {
			row, ok := rv.(map[string]any)
			if !ok {
				dropped = append(dropped, "line_items(row)")
				continue
			}
			desc, _ := row["description"].(string)
			if strings.TrimSpace(desc) == "" {
				dropped = append(dropped, "line_items(no description)")
				continue
			}
			item := map[string]any{"description": strings.TrimSpace(desc)}
			if q, keep := coerceNumber(row["quantity"]); keep {
				item["quantity"] = q
			} else {
				item["quantity"] = 1.0
			}
			if p, keep := coerceNumber(row["unit_price"]); keep {
				item["unit_price"] = p
			}
			cleaned = append(cleaned, item)
		}
		m["line_items"] = cleaned
	}

	// 4) remove unknown keys
	allowed := map[string]struct{}{
		"invoice_number": {}, "invoice_date": {}, "due_date": {}, "service_date": {},
		"supplier_name": {}, "tax_id": {}, "bank_account": {}, "total_amount": {},
		"line_items": {},
	}
	for k := range m {
		if _, ok := allowed[k]; !ok {
			delete(m, k)
			dropped = append(dropped, k+"(unknown)")
		}
	}

	// 5) trim strings; drop the empties so omit-if-absent holds
	for _, k := range []string{"invoice_number", "invoice_date", "due_date", "service_date", "supplier_name", "tax_id", "bank_account"} {
		switch v := m[k].(type) {
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				delete(m, k)
				dropped = append(dropped, k+"(empty)")
			} else {
				m[k] = s
			}
		case nil:
			if _, present := m[k]; present {
				delete(m, k)
				dropped = append(dropped, k+"(null)")
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, dropped, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(dropped) > 0 {
		logger.Warn("llm.extract.normalize_sanitize", "dropped", dropped)
	}
	return out, dropped, nil
}

// coerceNumber accepts float64, int, and decimal strings with either '.' or
// ',' separators; the bool is false when the value is unusable.
func coerceNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimPrefix(s, "$")
		s = strings.ReplaceAll(s, " ", "")
		if s == "" {
			return 0, false
		}
		// "1.234,56" and "12,50" styles
		if strings.Contains(s, ",") && !strings.Contains(s, ".") {
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
