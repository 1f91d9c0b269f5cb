package merge

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/testimony-tracker/internal/storage/local"
)

// ErrNoInputs is returned when there is nothing to merge.
var ErrNoInputs = errors.New("no input files")

// PDFUnite implements testimony.Merger with the pdfunite binary.
type PDFUnite struct {
	binary string
	run    runFunc
	logger *zap.Logger
}

// NewPDFUnite builds a merger. An empty binary means "pdfunite" on PATH.
func NewPDFUnite(binary string, logger *zap.Logger) *PDFUnite {
	if binary == "" {
		binary = "pdfunite"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PDFUnite{binary: binary, run: runCommand, logger: logger}
}

// Merge writes the concatenation of inputs to output. The output is built beside the
// destination and renamed into place.
func (m *PDFUnite) Merge(ctx context.Context, inputs []string, output string) error {
	switch len(inputs) {
	case 0:
		return ErrNoInputs
	case 1:
		return copyFile(inputs[0], output)
	}

	partial := filepath.Join(filepath.Dir(output), "."+filepath.Base(output)+".partial")
	args := append(append([]string{}, inputs...), partial)
	m.logger.Info("merging PDFs", zap.Int("inputs", len(inputs)), zap.String("output", output))
	if _, err := m.run(ctx, m.binary, args...); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("merge pdfs: %w", err)
	}
	if err := os.Rename(partial, output); err != nil {
		_ = os.Remove(partial)
		return fmt.Errorf("rename merged pdf: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	// #nosec G304 -- src is a store path.
	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = f.Close() }()
	if err := local.WriteFileAtomic(dst, f); err != nil {
		return fmt.Errorf("copy %s: %w", src, err)
	}
	return nil
}
