package extract

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/yomitext/pdfocr/internal/domain"
)

// runSync rasterizes the document locally and sends each page image to the
// OCR service, then assembles the per-page fragments by page number.
func (o *Orchestrator) runSync(ctx context.Context, r *run) (string, error) {
	r.progress(domain.StatusRasterizing, 5, "rasterizing pages")

	pages, err := o.rasterizer.Rasterize(ctx, r.req.DocumentPath, r.req.DPI)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", err
	}
	r.setTotalPages(len(pages))

	fragments := make([]domain.TextFragment, len(pages))
	if r.req.Workers <= 1 {
		err = o.extractSequential(ctx, r, pages, fragments)
	} else {
		err = o.extractConcurrent(ctx, r, pages, fragments)
	}
	if err != nil {
		return "", err
	}

	r.progress(domain.StatusAssembling, 92, "assembling text")
	return Assemble(fragments), nil
}

// extractSequential keeps the page order of capability calls identical to
// the document order. Results are still stored by index, so assembly never
// depends on call order.
func (o *Orchestrator) extractSequential(ctx context.Context, r *run, pages []domain.PageImage, fragments []domain.TextFragment) error {
	total := len(pages)
	for i, page := range pages {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		text, err := o.ocr.ExtractText(ctx, page.PNG, r.req.LanguageHints)
		if err != nil {
			return pageError(err, page.PageNumber)
		}
		fragments[i] = domain.TextFragment{PageNumber: page.PageNumber, Text: text}

		done := r.pageDone()
		r.progress(domain.StatusExtracting, pagePercent(done, total),
			fmt.Sprintf("page %d/%d", done, total))
	}
	return nil
}

// extractConcurrent fans pages out to a bounded worker group. Each worker
// writes into its own fragment slot, so completion order cannot reorder the
// assembled text.
func (o *Orchestrator) extractConcurrent(ctx context.Context, r *run, pages []domain.PageImage, fragments []domain.TextFragment) error {
	total := len(pages)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.req.Workers)

	for i, page := range pages {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			text, err := o.ocr.ExtractText(gctx, page.PNG, r.req.LanguageHints)
			if err != nil {
				return pageError(err, page.PageNumber)
			}
			fragments[i] = domain.TextFragment{PageNumber: page.PageNumber, Text: text}

			done := r.pageDone()
			r.progress(domain.StatusExtracting, pagePercent(done, total),
				fmt.Sprintf("page %d/%d", done, total))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// pagePercent maps page completion onto the 5..90 band of the progress scale.
func pagePercent(done, total int) int {
	if total <= 0 {
		return 90
	}
	return 5 + done*85/total
}

// pageError tags a per-page failure with its page number. Context errors
// pass through untouched so cancellation is not misreported as a failure.
func pageError(err error, page int) error {
	if isContextError(err) {
		return err
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		return derr.WithPage(page)
	}
	return domain.RemoteServiceError("extract", "text extraction failed", err).WithPage(page)
}
