// Package pdf rasterizes PDF documents into page images for OCR.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image/png"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog"

	"github.com/yomitext/pdfocr/internal/domain"
)

const (
	// OcrDPI is the default rasterization resolution for text extraction.
	OcrDPI = 300
	// PreviewDPI is the lower resolution used for preview renders. Preview
	// images are never reused for OCR.
	PreviewDPI = 100
)

// Rasterizer implements PDF to image conversion using go-fitz
type Rasterizer struct {
	validator *Validator
	logger    zerolog.Logger
}

// NewRasterizer creates a new rasterizer instance
func NewRasterizer(logger zerolog.Logger) *Rasterizer {
	return &Rasterizer{
		validator: NewValidator(logger),
		logger:    logger,
	}
}

// Rasterize renders every page of the document at the given resolution and
// returns the pages in index order as PNG-encoded images.
func (r *Rasterizer) Rasterize(ctx context.Context, pdfPath string, dpi int) ([]domain.PageImage, error) {
	if err := r.validator.ValidatePDF(pdfPath); err != nil {
		return nil, err
	}
	if dpi <= 0 {
		dpi = OcrDPI
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return nil, domain.InputError("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageCount == 0 {
		return nil, domain.InputError("PDF has no pages", nil)
	}

	r.logger.Debug().
		Str("path", pdfPath).
		Int("pages", pageCount).
		Int("dpi", dpi).
		Msg("rasterizing document")

	pages := make([]domain.PageImage, 0, pageCount)
	for pageNum := 0; pageNum < pageCount; pageNum++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		img, err := doc.ImageDPI(pageNum, float64(dpi))
		if err != nil {
			return nil, domain.InputError(fmt.Sprintf("failed to rasterize page %d", pageNum+1), err)
		}

		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return nil, domain.InternalError(fmt.Sprintf("failed to encode page %d as PNG", pageNum+1), err)
		}

		bounds := img.Bounds()
		pages = append(pages, domain.PageImage{
			PageNumber: pageNum + 1,
			PNG:        buf.Bytes(),
			Width:      bounds.Dx(),
			Height:     bounds.Dy(),
			DPI:        dpi,
		})
	}

	return pages, nil
}

// RenderPreview rasterizes a single page at preview resolution.
func (r *Rasterizer) RenderPreview(ctx context.Context, pdfPath string, pageNumber int) (domain.PageImage, error) {
	if err := r.validator.ValidatePDF(pdfPath); err != nil {
		return domain.PageImage{}, err
	}

	doc, err := fitz.New(pdfPath)
	if err != nil {
		return domain.PageImage{}, domain.InputError("failed to open PDF", err)
	}
	defer doc.Close()

	pageCount := doc.NumPage()
	if pageNumber < 1 || pageNumber > pageCount {
		return domain.PageImage{}, domain.InputError(
			fmt.Sprintf("page %d out of range (document has %d pages)", pageNumber, pageCount), nil)
	}

	select {
	case <-ctx.Done():
		return domain.PageImage{}, ctx.Err()
	default:
	}

	img, err := doc.ImageDPI(pageNumber-1, float64(PreviewDPI))
	if err != nil {
		return domain.PageImage{}, domain.InputError(fmt.Sprintf("failed to rasterize page %d", pageNumber), err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return domain.PageImage{}, domain.InternalError(fmt.Sprintf("failed to encode page %d as PNG", pageNumber), err)
	}

	bounds := img.Bounds()
	return domain.PageImage{
		PageNumber: pageNumber,
		PNG:        buf.Bytes(),
		Width:      bounds.Dx(),
		Height:     bounds.Dy(),
		DPI:        PreviewDPI,
	}, nil
}

// PageCount reports the number of pages without rasterizing anything.
func (r *Rasterizer) PageCount(pdfPath string) (int, error) {
	return r.validator.PageCount(pdfPath)
}
