package llm

// BuildInvoiceJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map. We pass it to the model as a structured-output hint and also
// use it locally to validate the response.
func BuildInvoiceJSONSchema() map[string]any {
	lineItem := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"description": map[string]any{"type": "string"},
			"quantity":    map[string]any{"type": "number", "minimum": 0.0},
			"unit_price":  map[string]any{"type": "number", "minimum": 0.0},
		},
		"required": []string{"description", "quantity"},
	}

	props := map[string]any{
		"invoice_number": map[string]any{"type": "string", "minLength": 1},
		"invoice_date":   map[string]any{"type": "string", "minLength": 1},
		"due_date":       map[string]any{"type": "string"},
		"service_date":   map[string]any{"type": "string"},
		"supplier_name":  map[string]any{"type": "string", "minLength": 1},
		"tax_id":         map[string]any{"type": "string"},
		"bank_account":   map[string]any{"type": "string"},
		"total_amount":   map[string]any{"type": "number", "minimum": 0.0},
		"line_items":     map[string]any{"type": "array", "items": lineItem},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
		"required":             []string{},
	}
}
