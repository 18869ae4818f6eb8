package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/docuflow/invoice-audit/constants"
	"github.com/docuflow/invoice-audit/internal/entity"
	"github.com/docuflow/invoice-audit/internal/repository"
)

// FSIngestor reads from the local filesystem and deduplicates by content
// hash through the document repository.
type FSIngestor struct {
	Documents repository.DocumentRepository
	UploadDir string
	log       *slog.Logger
}

func NewFSIngestor(docs repository.DocumentRepository, uploadDir string, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{Documents: docs, UploadDir: uploadDir, log: logger}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		i.log.Error("abs path error", "path", path, "error", err)
		return out, err
	}

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		i.log.Warn("unsupported or missing extension", "path", abs, "ext", ext)
		return out, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	f, err := os.Open(abs)
	if err != nil {
		i.log.Error("open error", "path", abs, "error", err)
		return out, err
	}
	defer func(f *os.File) {
		if err := f.Close(); err != nil {
			i.log.Warn("close file error", "path", abs, "error", err)
		}
	}(f)

	info, err := f.Stat()
	if err != nil {
		return out, err
	}

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		i.log.Error("hash error", "path", abs, "error", err)
		return out, err
	}
	sum := h.Sum(nil)

	mt, err := mimetype.DetectFile(abs)
	contentType := ""
	if err == nil {
		contentType = mt.String()
	}

	doc := &entity.Document{
		SourcePath:  abs,
		Filename:    filepath.Base(abs),
		FileExt:     ext,
		FileSize:    info.Size(),
		ContentType: contentType,
		ContentHash: sum,
		UploadedAt:  time.Now().UTC(),
	}
	row, dedup, err := i.Documents.UpsertByHash(ctx, doc)
	if err != nil {
		return out, err
	}

	out = IngestionResult{
		SourcePath:   row.SourcePath,
		DocumentID:   row.ID.String(),
		Deduplicated: dedup,
		HashHex:      hex.EncodeToString(sum),
		FileExt:      row.FileExt,
		ContentType:  row.ContentType,
		UploadedAt:   row.UploadedAt,
	}
	return out, nil
}

// IngestBytes writes the payload under UploadDir with a collision-proof name
// and ingests the stored file.
func (i *FSIngestor) IngestBytes(ctx context.Context, filename string, data []byte) (IngestionResult, error) {
	var out IngestionResult

	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." || base == string(filepath.Separator) {
		return out, errors.New("filename is required")
	}
	ext := constants.NormalizeExt(filepath.Ext(base))
	if ext == "" || !AllowedExt(ext) {
		return out, fmt.Errorf("unsupported or missing extension: %q", ext)
	}

	if err := os.MkdirAll(i.UploadDir, 0o755); err != nil {
		return out, fmt.Errorf("upload dir: %w", err)
	}

	// short hash prefix keeps re-uploads of the same name apart
	sum := sha256.Sum256(data)
	dest := filepath.Join(i.UploadDir, hex.EncodeToString(sum[:6])+"_"+base)
	if err := os.WriteFile(dest, data, 0o644); err != nil {
		return out, fmt.Errorf("store upload: %w", err)
	}

	return i.IngestPath(ctx, dest)
}

// IngestDirectory walks root, skips hidden entries if requested, and calls
// IngestPath for each matching file. Returns per-file results plus stats.
func (i *FSIngestor) IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !AllowedExt(constants.NormalizeExt(filepath.Ext(path))) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}
