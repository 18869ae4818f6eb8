package ocr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

// minOCRWidth is the width below which scans are upscaled before OCR;
// Tesseract degrades sharply on low-resolution photos.
const minOCRWidth = 1200

// preprocessImage renders a cleaned-up temporary PNG for OCR: grayscale,
// slight sharpening, and upscaling of small scans. Returns ("", ...) when the
// source cannot be decoded, in which case the caller OCRs the original file.
//
// Call cleanup() to remove the temp file.
func preprocessImage(path string) (string, []string, func(), error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return "", []string{fmt.Sprintf("image preprocess skipped: %v", err)}, func() {}, err
	}

	g := imaging.Grayscale(img)
	g = imaging.Sharpen(g, 0.5)
	if g.Bounds().Dx() < minOCRWidth {
		g = imaging.Resize(g, minOCRWidth, 0, imaging.Lanczos)
	}

	tmpDir, err := os.MkdirTemp("", "ia-pre-*")
	if err != nil {
		return "", nil, func() {}, err
	}
	cleanup := func() { _ = os.RemoveAll(tmpDir) }
	out := filepath.Join(tmpDir, "ocr.png")
	if err := imaging.Save(g, out); err != nil {
		return "", nil, cleanup, fmt.Errorf("save preprocessed image: %w", err)
	}
	return out, nil, cleanup, nil
}
