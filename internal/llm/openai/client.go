package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/docuflow/invoice-audit/internal/llm"
	"github.com/google/uuid"
)

// ExtractFields implements llm.FieldExtractor over text-only chat/completions.
// The raw model content is returned alongside the parsed fields so callers can
// persist it for auditing.
func (c *Client) ExtractFields(ctx context.Context, req llm.ExtractRequest) (llm.InvoiceFields, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.log.Info("llm.extract.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", c.cfg.Temperature,
		"text_len", len(req.Text),
		"confidence", req.Confidence,
	)

	schema := llm.BuildInvoiceJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(req)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(schema)},
		},
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, httpErr := c.post(ctx, endpoint, body)
	if httpErr != nil {
		c.log.Error("llm.extract.http_error",
			"req_id", rid, "error", httpErr,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.InvoiceFields{}, nil, httpErr
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.log.Error("llm.extract.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.InvoiceFields{}, raw, fmt.Errorf("decode chat response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.log.Error("llm.extract.no_choices",
			"req_id", rid, "raw", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.InvoiceFields{}, raw, fmt.Errorf("no choices in chat response")
	}

	content := llm.StripCodeFence([]byte(strings.TrimSpace(cc.Choices[0].Message.Content)))

	// Validate strictly, then sanitize and re-validate, then fall back to
	// regex recovery before giving up.
	if err := llm.ValidateJSONAgainstSchema(schema, content); err != nil {
		cleaned, dropped, sErr := llm.NormalizeAndSanitizeJSON(content, c.log)
		if sErr == nil {
			if vErr := llm.ValidateJSONAgainstSchema(schema, cleaned); vErr == nil {
				c.log.Warn("llm.extract.sanitize_applied",
					"req_id", rid, "dropped", dropped,
					"elapsed_ms", time.Since(start).Milliseconds(),
				)
				content = cleaned
			} else {
				return c.recoverWithRegex(rid, start, content, vErr)
			}
		} else {
			return c.recoverWithRegex(rid, start, content, sErr)
		}
	}

	var out llm.InvoiceFields
	if err := json.Unmarshal(content, &out); err != nil {
		return c.recoverWithRegex(rid, start, content, err)
	}

	c.log.Info("llm.extract.ok",
		"req_id", rid,
		"invoice_number", out.InvoiceNumber,
		"supplier", out.SupplierName,
		"line_items", len(out.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

// recoverWithRegex salvages fields out of content that refused strict parsing.
// It fails only when the regex pass comes back empty too.
func (c *Client) recoverWithRegex(rid string, start time.Time, content []byte, cause error) (llm.InvoiceFields, []byte, error) {
	out := llm.ExtractWithRegex(string(content))
	if out.IsEmpty() {
		c.log.Error("llm.extract.unparseable",
			"req_id", rid, "error", cause, "content", string(content),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.InvoiceFields{}, content, fmt.Errorf("parse model response: %w", cause)
	}
	c.log.Warn("llm.extract.regex_fallback",
		"req_id", rid, "error", cause,
		"line_items", len(out.LineItems),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm http error: %w", err)
	}
	defer func(body io.ReadCloser) {
		if err := body.Close(); err != nil {
			c.log.Warn("llm response body close error", "error", err)
		}
	}(resp.Body)

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read llm response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm status %d: %s", resp.StatusCode, buf.String())
	}
	return buf.Bytes(), nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
