package llm

import "strings"

// exampleFormat mirrors the record shape we expect back; shown to the model
// verbatim so number/string choices stay stable across providers.
const exampleFormat = `{
  "invoice_number": "61356291",
  "invoice_date": "09/06/2012",
  "supplier_name": "Chapman, Kim and Green",
  "tax_id": "949-84-9105",
  "bank_account": "GB50ACIE59715038217063",
  "total_amount": 9,
  "line_items": [
    {
      "description": "With Hooks Stemware Storage Multiple Uses Iron Wine Rack",
      "quantity": 4,
      "unit_price": 12
    },
    {
      "description": "HOME ESSENTIALS GRADIENT STEMLESS WINE GLASSES SET OF 4",
      "quantity": 1,
      "unit_price": 28.08
    }
  ]
}`

// maxPromptText caps how much extracted text rides along in the user prompt.
const maxPromptText = 6000

// BuildSystemPrompt composes the system message with formatting rules.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a helpful assistant. Your task is to extract invoice data and return it in valid JSON format.",
		"Return ONLY JSON that matches the provided JSON Schema.",
		"Dates are copied as printed on the invoice.",
		"Numbers use '.' as the decimal separator.",
		"Never output null. If a field is not present, omit it.",
		"Each line item has description, quantity and unit_price.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt packages the extracted text with the attribute list and the
// example record.
func BuildUserPrompt(req ExtractRequest) string {
	attributes := []string{
		"invoice_number", "invoice_date", "supplier_name", "tax_id",
		"bank_account", "total_amount", "line_items", "description",
		"quantity", "unit_price",
	}

	var b strings.Builder
	b.WriteString("Extract the following attributes from the text: ")
	b.WriteString(strings.Join(attributes, ", "))
	b.WriteString(".\n")
	if f := strings.TrimSpace(req.FilenameHint); f != "" {
		b.WriteString("Filename: ")
		b.WriteString(f)
		b.WriteString("\n")
	}
	b.WriteString("Here is the text:\n")
	text := strings.TrimSpace(req.Text)
	if len(text) > maxPromptText {
		b.WriteString(text[:maxPromptText])
		b.WriteString("\n…(truncated)")
	} else {
		b.WriteString(text)
	}
	b.WriteString("\n\nReturn the data in valid JSON format as shown in this example:\n")
	b.WriteString(exampleFormat)
	b.WriteString("\nMake sure your response is properly formatted valid JSON that can be parsed directly.")
	return b.String()
}
