package constants

import "strings"

// Document formats routed by the pipeline.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
	DOC   = "DOC"
)

// FileFormats holds the allowed values for the format field in ExtractJob.
var FileFormats = []string{PDF, IMAGE, DOC}

// ImageExtensions are extensions handled by the OCR path.
var ImageExtensions = map[string]struct{}{
	"png":  {},
	"jpg":  {},
	"jpeg": {},
	"bmp":  {},
	"gif":  {},
	"tif":  {},
	"tiff": {},
}

// DocExtensions are extensions handled by the markdown conversion path.
var DocExtensions = map[string]struct{}{
	"txt":  {},
	"md":   {},
	"html": {},
	"htm":  {},
	"csv":  {},
	"xlsx": {},
	"json": {},
}

// AllowedExtensions is the union accepted at intake.
var AllowedExtensions = buildAllowed()

func buildAllowed() map[string]struct{} {
	m := map[string]struct{}{"pdf": {}}
	for e := range ImageExtensions {
		m[e] = struct{}{}
	}
	for e := range DocExtensions {
		m[e] = struct{}{}
	}
	return m
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToFormat maps a (possibly dotted) extension to a pipeline format.
// Returns "" for unsupported extensions.
func MapExtToFormat(ext string) string {
	e := NormalizeExt(ext)
	switch {
	case e == "pdf":
		return PDF
	case hasKey(ImageExtensions, e):
		return IMAGE
	case hasKey(DocExtensions, e):
		return DOC
	default:
		return ""
	}
}

func hasKey(m map[string]struct{}, k string) bool {
	_, ok := m[k]
	return ok
}
