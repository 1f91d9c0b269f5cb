// Package local implements the flat testimony directory on the local filesystem.
package local

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/JakeFAU/testimony-tracker/internal/testimony"
)

const (
	pdfExt = ".pdf"
	txtExt = ".txt"
)

// Config captures the parameters for the testimony directory.
type Config struct {
	// BaseDir is the directory holding one {id}.pdf and {id}.txt per testimony.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Store reads and writes testimony files under a single directory.
type Store struct {
	baseDir string
}

// New creates the directory if needed and checks that it is writable.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to stat base directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Store{baseDir: cfg.BaseDir}, nil
}

// Dir returns the directory backing the store.
func (s *Store) Dir() string {
	return s.baseDir
}

// PDFPath returns where the PDF for id lives.
func (s *Store) PDFPath(id testimony.DocumentID) string {
	return filepath.Join(s.baseDir, string(id)+pdfExt)
}

// TextPath returns where the extracted text for id lives.
func (s *Store) TextPath(id testimony.DocumentID) string {
	return filepath.Join(s.baseDir, string(id)+txtExt)
}

// HasPDF reports whether a file (valid or not) already exists for id.
func (s *Store) HasPDF(id testimony.DocumentID) bool {
	_, err := os.Stat(s.PDFPath(id))
	return err == nil
}

// HasText reports whether text has already been extracted for id.
func (s *Store) HasText(id testimony.DocumentID) bool {
	_, err := os.Stat(s.TextPath(id))
	return err == nil
}

// PutPDF writes the document body for id. The body is stored as-is; validity is checked later.
func (s *Store) PutPDF(id testimony.DocumentID, r io.Reader) (string, error) {
	if strings.TrimSpace(string(id)) == "" || strings.ContainsAny(string(id), `/\`) {
		return "", fmt.Errorf("invalid document id %q", id)
	}
	path := s.PDFPath(id)
	if err := WriteFileAtomic(path, r); err != nil {
		return "", err
	}
	return path, nil
}

// ValidPDFs returns the IDs of every stored PDF passing IsValidPDF, in ascending ID order.
func (s *Store) ValidPDFs() ([]testimony.DocumentID, error) {
	ids, err := s.list(pdfExt)
	if err != nil {
		return nil, err
	}
	valid := ids[:0]
	for _, id := range ids {
		if IsValidPDF(s.PDFPath(id)) {
			valid = append(valid, id)
		}
	}
	return valid, nil
}

// Texts returns the IDs of every extracted text file, in ascending ID order.
func (s *Store) Texts() ([]testimony.DocumentID, error) {
	return s.list(txtExt)
}

// Prune removes invalid PDFs whose modification time is older than grace. Files still
// inside the grace window may be mid-download and are left alone.
func (s *Store) Prune(now time.Time, grace time.Duration) ([]string, error) {
	ids, err := s.list(pdfExt)
	if err != nil {
		return nil, err
	}
	var removed []string
	var errs []error
	for _, id := range ids {
		path := s.PDFPath(id)
		if IsValidPDF(path) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if now.Sub(info.ModTime()) < grace {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Errorf("remove %s: %w", path, err))
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

func (s *Store) list(ext string) ([]testimony.DocumentID, error) {
	matches, err := filepath.Glob(filepath.Join(s.baseDir, "*"+ext))
	if err != nil {
		return nil, fmt.Errorf("glob %s files: %w", ext, err)
	}
	ids := make([]testimony.DocumentID, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, testimony.DocumentID(strings.TrimSuffix(filepath.Base(m), ext)))
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids, nil
}

// IsValidPDF reports whether path exists, is non-empty, and starts with the PDF magic byte.
func IsValidPDF(path string) bool {
	// #nosec G304 -- paths are built from the store directory.
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()
	buf := make([]byte, 1)
	n, err := f.Read(buf)
	return err == nil && n == 1 && buf[0] == '%'
}

// FileExists reports whether path names an existing file.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// WriteFileAtomic writes r to a temp file next to path and renames it into place, so
// concurrent readers see either the old or the new content.
func WriteFileAtomic(path string, r io.Reader) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to rename into place: %w", err)
	}
	return nil
}
