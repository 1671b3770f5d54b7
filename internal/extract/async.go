package extract

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yomitext/pdfocr/internal/domain"
)

// runAsync uploads the document to cloud storage, submits a batch OCR
// operation against it, polls until the operation finishes, then downloads
// and reassembles the result blobs.
func (o *Orchestrator) runAsync(ctx context.Context, r *run, logger zerolog.Logger) (string, error) {
	job := domain.AsyncJobHandle{
		Bucket:       r.req.Bucket,
		InputObject:  path.Join("input", filepath.Base(r.req.DocumentPath)),
		OutputPrefix: r.req.ResultPrefix,
		Deadline:     time.Now().Add(r.req.PollTimeout),
	}

	r.progress(domain.StatusUploading, 5, "uploading document")
	if err := o.blobs.Upload(ctx, r.req.DocumentPath, job.Bucket, job.InputObject); err != nil {
		return "", stageError(err, "upload")
	}
	r.progress(domain.StatusUploading, 20, "document uploaded")

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}

	inputURI := fmt.Sprintf("gs://%s/%s", job.Bucket, job.InputObject)
	outputURI := fmt.Sprintf("gs://%s/%s", job.Bucket, job.OutputPrefix)
	opName, err := o.ocr.SubmitBatch(ctx, inputURI, outputURI, r.req.LanguageHints)
	if err != nil {
		return "", stageError(err, "submit")
	}
	job.OperationName = opName
	r.progress(domain.StatusSubmitted, 40, "batch operation submitted")
	logger.Info().
		Str("operation", opName).
		Str("input", inputURI).
		Msg("batch operation submitted")

	if err := o.pollUntilDone(ctx, r, job); err != nil {
		return "", err
	}
	r.progress(domain.StatusPolling, 70, "remote operation complete")

	fragments, err := o.retrieveResults(ctx, r, job)
	if err != nil {
		return "", err
	}

	if r.req.CleanupInput {
		// Best effort. A leftover input object never fails the run.
		if err := o.blobs.Delete(ctx, job.Bucket, job.InputObject); err != nil {
			logger.Warn().Err(err).
				Str("object", job.InputObject).
				Msg("failed to delete uploaded input")
		}
	}

	r.progress(domain.StatusAssembling, 90, "assembling text")
	return Assemble(fragments), nil
}

// pollUntilDone polls the remote operation until it reports done, the poll
// deadline passes, or ctx is cancelled. The deadline check runs before each
// poll so a stalled operation fails with a timeout rather than hanging.
func (o *Orchestrator) pollUntilDone(ctx context.Context, r *run, job domain.AsyncJobHandle) error {
	r.progress(domain.StatusPolling, 45, "waiting for remote operation")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if time.Now().After(job.Deadline) {
			return domain.TimeoutError("poll",
				fmt.Sprintf("operation did not finish within %s", r.req.PollTimeout), nil)
		}

		done, err := o.ocr.PollOperation(ctx, job.OperationName)
		if err != nil {
			return stageError(err, "poll")
		}
		if done {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(o.opts.PollInterval):
		}
	}
}

// retrieveResults lists the run's output objects, downloads each, and
// converts them into page fragments. Enumeration order is irrelevant: pages
// are keyed by the page numbers carried inside the blobs.
func (o *Orchestrator) retrieveResults(ctx context.Context, r *run, job domain.AsyncJobHandle) ([]domain.TextFragment, error) {
	r.progress(domain.StatusRetrieving, 72, "listing result objects")

	objects, err := o.blobs.List(ctx, job.Bucket, job.OutputPrefix)
	if err != nil {
		return nil, stageError(err, "results")
	}

	var names []string
	for _, name := range objects {
		if strings.HasSuffix(name, ".json") {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, domain.RemoteServiceError("results",
			fmt.Sprintf("no result objects under gs://%s/%s", job.Bucket, job.OutputPrefix), nil)
	}

	var fragments []domain.TextFragment
	for i, name := range names {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		data, err := o.blobs.Download(ctx, job.Bucket, name)
		if err != nil {
			return nil, stageError(err, "results")
		}
		frags, err := parseOutputObject(name, data)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, frags...)

		percent := 72 + (i+1)*16/len(names)
		if percent > 88 {
			percent = 88
		}
		r.progress(domain.StatusRetrieving, percent,
			fmt.Sprintf("retrieved %d/%d result objects", i+1, len(names)))
	}

	if err := checkContiguous(fragments); err != nil {
		return nil, err
	}
	r.setTotalPages(len(fragments))
	r.setPagesDone(len(fragments))
	return fragments, nil
}

// stageError tags a capability failure with the pipeline stage it occurred
// in. Context errors pass through untouched.
func stageError(err error, stage string) error {
	if isContextError(err) {
		return err
	}
	var derr *domain.Error
	if errors.As(err, &derr) {
		if derr.Stage == "" {
			withStage := *derr
			withStage.Stage = stage
			return &withStage
		}
		return derr
	}
	return domain.RemoteServiceError(stage, "capability call failed", err)
}
