// Package convert turns non-PDF, non-image documents into markdown-ish text
// so the rest of the pipeline can treat every intake uniformly.
package convert

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/docuflow/invoice-audit/constants"
)

// Result is the outcome of a document conversion.
type Result struct {
	Markdown string
	Method   string // "text" | "html" | "csv" | "xlsx" | "json"
	Warnings []string
}

// Converter dispatches on file extension.
type Converter struct {
	logger *slog.Logger
}

func NewConverter(logger *slog.Logger) *Converter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Converter{logger: logger}
}

// Supported reports whether the extension is handled by this package.
func Supported(ext string) bool {
	_, ok := constants.DocExtensions[constants.NormalizeExt(ext)]
	return ok
}

// ConvertFile reads path and converts it according to its extension.
func (c *Converter) ConvertFile(path string) (Result, error) {
	ext := constants.NormalizeExt(filepath.Ext(path))
	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	return c.Convert(data, ext)
}

// Convert converts raw bytes according to the (undotted) extension.
func (c *Converter) Convert(data []byte, ext string) (Result, error) {
	switch constants.NormalizeExt(ext) {
	case "txt", "md":
		return Result{Markdown: string(data), Method: "text"}, nil
	case "html", "htm":
		text, err := htmlToText(data)
		if err != nil {
			return Result{}, fmt.Errorf("convert html: %w", err)
		}
		return Result{Markdown: text, Method: "html"}, nil
	case "csv":
		md, warns, err := csvToMarkdown(data)
		if err != nil {
			return Result{}, fmt.Errorf("convert csv: %w", err)
		}
		return Result{Markdown: md, Method: "csv", Warnings: warns}, nil
	case "xlsx":
		md, warns, err := xlsxToMarkdown(data)
		if err != nil {
			return Result{}, fmt.Errorf("convert xlsx: %w", err)
		}
		return Result{Markdown: md, Method: "xlsx", Warnings: warns}, nil
	case "json":
		md, err := jsonToMarkdown(data)
		if err != nil {
			return Result{}, fmt.Errorf("convert json: %w", err)
		}
		return Result{Markdown: md, Method: "json"}, nil
	default:
		return Result{}, fmt.Errorf("unsupported document extension: %q", ext)
	}
}
