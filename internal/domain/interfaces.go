package domain

import "context"

// PageRasterizer converts a PDF into an ordered sequence of page images
type PageRasterizer interface {
	// Rasterize renders every page of the document at the given resolution.
	// Pages come back in index order, 1-based and gapless.
	Rasterize(ctx context.Context, pdfPath string, dpi int) ([]PageImage, error)

	// PageCount reports the number of pages without rasterizing anything.
	PageCount(pdfPath string) (int, error)
}

// OcrClient is the remote text-extraction capability
type OcrClient interface {
	// ExtractText runs document text detection on a single page image.
	ExtractText(ctx context.Context, image []byte, languageHints []string) (string, error)

	// SubmitBatch starts an asynchronous whole-document job. inputURI points
	// at the uploaded source document, outputURIPrefix at where the service
	// should write sharded JSON results. Returns an opaque operation name.
	SubmitBatch(ctx context.Context, inputURI, outputURIPrefix string, languageHints []string) (string, error)

	// PollOperation reports whether the named operation has finished.
	PollOperation(ctx context.Context, operationName string) (bool, error)
}

// BlobStore is the object-storage capability used by async runs
type BlobStore interface {
	Upload(ctx context.Context, localPath, bucket, objectName string) error
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Download(ctx context.Context, bucket, objectName string) ([]byte, error)
	Delete(ctx context.Context, bucket, objectName string) error
}
