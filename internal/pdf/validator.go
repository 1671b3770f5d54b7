package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"

	"github.com/yomitext/pdfocr/internal/domain"
)

// Validator provides input validation for PDF files
type Validator struct {
	logger zerolog.Logger
}

// NewValidator creates a new validator instance
func NewValidator(logger zerolog.Logger) *Validator {
	return &Validator{logger: logger}
}

// ValidatePDF validates that a file path is valid and points to a readable PDF
func (v *Validator) ValidatePDF(path string) error {
	if strings.TrimSpace(path) == "" {
		return domain.InputError("file path cannot be empty", nil)
	}

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.InputError(fmt.Sprintf("file does not exist: %s", path), err)
		}
		return domain.InputError(fmt.Sprintf("cannot access file: %s", path), err)
	}

	if info.IsDir() {
		return domain.InputError(fmt.Sprintf("path is a directory, not a file: %s", path), nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".pdf" {
		return domain.InputError(fmt.Sprintf("file is not a PDF (has extension %q)", ext), nil)
	}

	// Very large files are allowed but worth flagging.
	const sizeWarnThreshold = 100 * 1024 * 1024
	if info.Size() > sizeWarnThreshold {
		v.logger.Warn().
			Str("path", path).
			Int64("size_mb", info.Size()/(1024*1024)).
			Msg("PDF file is very large, processing may take a while")
	}

	file, err := os.Open(path)
	if err != nil {
		return domain.InputError(fmt.Sprintf("cannot open file: %s", path), err)
	}
	file.Close()

	return nil
}

// PageCount returns the document's page count using pdfcpu, which is much
// cheaper than rasterizing the document.
func (v *Validator) PageCount(path string) (int, error) {
	if err := v.ValidatePDF(path); err != nil {
		return 0, err
	}
	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, domain.InputError(fmt.Sprintf("cannot read page count: %s", path), err)
	}
	return count, nil
}

// Describe validates the document and returns its identity and page count.
func (v *Validator) Describe(path string) (domain.Document, error) {
	count, err := v.PageCount(path)
	if err != nil {
		return domain.Document{}, err
	}
	return domain.Document{FilePath: path, TotalPages: count}, nil
}
