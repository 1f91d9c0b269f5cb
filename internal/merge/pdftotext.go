package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/JakeFAU/testimony-tracker/internal/storage/local"
)

// PDFToText implements testimony.TextExtractor with the pdftotext binary. When the binary
// is not installed it falls back to the pure-Go reader.
type PDFToText struct {
	binary   string
	run      runFunc
	fallback func(pdfPath, txtPath string) error
	logger   *zap.Logger
}

// NewPDFToText builds an extractor. An empty binary means "pdftotext" on PATH.
func NewPDFToText(binary string, logger *zap.Logger) *PDFToText {
	if binary == "" {
		binary = "pdftotext"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFToText{binary: binary, run: runCommand, fallback: extractPlainText, logger: logger}
}

// Extract writes the text of pdfPath to txtPath.
func (e *PDFToText) Extract(ctx context.Context, pdfPath string, txtPath string) error {
	partial := filepath.Join(filepath.Dir(txtPath), "."+filepath.Base(txtPath)+".partial")
	_, err := e.run(ctx, e.binary, pdfPath, partial)
	switch {
	case err == nil:
		if err := os.Rename(partial, txtPath); err != nil {
			_ = os.Remove(partial)
			return fmt.Errorf("rename extracted text: %w", err)
		}
		return nil
	case errors.Is(err, exec.ErrNotFound):
		e.logger.Debug("pdftotext not found, using built-in extractor", zap.String("pdf", pdfPath))
		return e.fallback(pdfPath, txtPath)
	default:
		_ = os.Remove(partial)
		return fmt.Errorf("extract text from %s: %w", pdfPath, err)
	}
}

// extractPlainText reads pdfPath with the pure-Go parser. The parser panics on
// malformed input, so panics surface as errors.
func extractPlainText(pdfPath, txtPath string) (err error) {
	// #nosec G304 -- pdfPath comes from the testimony store.
	f, err := os.Open(pdfPath)
	if err != nil {
		return fmt.Errorf("could not read PDF %s: %w", pdfPath, err)
	}
	defer func() { _ = f.Close() }()
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("could not parse PDF %s: %v", pdfPath, rec)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("could not stat PDF %s: %w", pdfPath, err)
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return fmt.Errorf("could not read PDF %s: %w", pdfPath, err)
	}
	text, err := r.GetPlainText()
	if err != nil {
		return fmt.Errorf("could not extract text from PDF %s: %w", pdfPath, err)
	}
	return local.WriteFileAtomic(txtPath, text)
}
