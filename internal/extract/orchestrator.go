// Package extract orchestrates OCR runs end to end: it validates requests,
// dispatches them to the sync or async pipeline on a dedicated goroutine,
// streams progress to observers, and writes the assembled text atomically.
package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yomitext/pdfocr/internal/domain"
	"github.com/yomitext/pdfocr/internal/progress"
)

// Options tunes orchestrator behavior. Zero values fall back to defaults.
type Options struct {
	// DPI used for OCR rasterization when the request does not set one.
	DPI int
	// Workers bounds concurrent page extraction in sync mode. 1 keeps the
	// baseline strictly sequential.
	Workers int
	// LanguageHints applied when the request does not set any.
	LanguageHints []string
	// PollInterval between async operation polls.
	PollInterval time.Duration
	// PollTimeout bounds the async poll wait when the request does not set one.
	PollTimeout time.Duration
	// ResultPrefix for async output objects when the request does not set one.
	ResultPrefix string
	// EventBuffer sizes each run's progress stream.
	EventBuffer int
}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = 300
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if len(o.LanguageHints) == 0 {
		o.LanguageHints = []string{"ja"}
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 5 * time.Second
	}
	if o.PollTimeout <= 0 {
		o.PollTimeout = 300 * time.Second
	}
	if o.ResultPrefix == "" {
		o.ResultPrefix = "ocr-results/"
	}
	if o.EventBuffer <= 0 {
		o.EventBuffer = progress.DefaultBuffer
	}
	return o
}

// Orchestrator owns run lifecycle. At most one run may be active per
// document; a second Start for the same document is rejected with
// domain.ErrRunActive while the first is still running.
type Orchestrator struct {
	rasterizer domain.PageRasterizer
	ocr        domain.OcrClient
	blobs      domain.BlobStore
	logger     zerolog.Logger
	opts       Options

	mu    sync.Mutex
	byID  map[string]*run
	byDoc map[string]*run // latest run per document path
}

// NewOrchestrator creates an orchestrator. blobs may be nil when async mode
// is never used; async requests are then rejected at Start.
func NewOrchestrator(rasterizer domain.PageRasterizer, ocr domain.OcrClient, blobs domain.BlobStore, logger zerolog.Logger, opts Options) *Orchestrator {
	return &Orchestrator{
		rasterizer: rasterizer,
		ocr:        ocr,
		blobs:      blobs,
		logger:     logger,
		opts:       opts.withDefaults(),
		byID:       make(map[string]*run),
		byDoc:      make(map[string]*run),
	}
}

// run is the mutable state of one OCR run. After Start returns, snapshot
// fields are mutated only by the run's own goroutine, guarded by mu for
// observers.
type run struct {
	id       string
	req      domain.RunRequest
	docKey   string
	reporter *progress.Reporter
	cancel   context.CancelFunc
	done     chan struct{}

	mu   sync.Mutex
	snap domain.RunSnapshot
}

func (r *run) progress(status domain.RunStatus, percent int, message string) {
	r.mu.Lock()
	r.snap.Status = status
	if percent > r.snap.Percent {
		r.snap.Percent = percent
	}
	percent = r.snap.Percent
	r.snap.Message = message
	r.mu.Unlock()

	r.reporter.Report(status, percent, message)
}

func (r *run) setTotalPages(n int) {
	r.mu.Lock()
	r.snap.TotalPages = n
	r.mu.Unlock()
}

func (r *run) setPagesDone(n int) {
	r.mu.Lock()
	r.snap.PagesDone = n
	r.mu.Unlock()
}

func (r *run) pageDone() int {
	r.mu.Lock()
	r.snap.PagesDone++
	n := r.snap.PagesDone
	r.mu.Unlock()
	return n
}

func (r *run) snapshot() domain.RunSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

func (r *run) finish(status domain.RunStatus, message, text string, err error) {
	r.mu.Lock()
	r.snap.Status = status
	r.snap.Message = message
	r.snap.Err = err
	r.snap.FinishedAt = time.Now()
	if status == domain.StatusCompleted {
		r.snap.Text = text
		r.snap.Percent = 100
	}
	percent := r.snap.Percent
	r.mu.Unlock()

	r.reporter.Report(status, percent, message)
	close(r.done)
}

// RunHandle identifies a run in flight and exposes its observation surface.
type RunHandle struct {
	ID string
	r  *run
}

// Events returns the run's ordered progress stream. The channel closes after
// the terminal event.
func (h *RunHandle) Events() <-chan domain.ProgressEvent {
	return h.r.reporter.Events()
}

// Snapshot returns a point-in-time copy of the run's state.
func (h *RunHandle) Snapshot() domain.RunSnapshot {
	return h.r.snapshot()
}

// Done is closed when the run reaches a terminal state.
func (h *RunHandle) Done() <-chan struct{} {
	return h.r.done
}

// Wait blocks until the run reaches a terminal state or ctx is cancelled.
// For failed runs the returned error is the run error; for cancelled runs it
// is context.Canceled.
func (h *RunHandle) Wait(ctx context.Context) (domain.RunSnapshot, error) {
	select {
	case <-ctx.Done():
		return h.r.snapshot(), ctx.Err()
	case <-h.r.done:
		snap := h.r.snapshot()
		return snap, snap.Err
	}
}

// Start validates the request, registers the run, and launches its pipeline
// on a dedicated goroutine. It never blocks on OCR work: every error it
// returns is a precondition failure detected before any capability call or
// background work. The run's lifetime is bound to ctx; cancelling ctx
// cancels the run.
func (o *Orchestrator) Start(ctx context.Context, req domain.RunRequest) (*RunHandle, error) {
	if err := o.validateRequest(&req); err != nil {
		return nil, err
	}

	docKey, err := filepath.Abs(req.DocumentPath)
	if err != nil {
		return nil, domain.InputError("cannot resolve document path", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	r := &run{
		id:     uuid.NewString(),
		req:    req,
		docKey: docKey,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.reporter = progress.NewReporter(r.id, o.opts.EventBuffer)
	r.snap = domain.RunSnapshot{
		ID:           r.id,
		DocumentPath: req.DocumentPath,
		OutputPath:   req.OutputPath,
		Mode:         req.Mode,
		Status:       domain.StatusPending,
		StartedAt:    time.Now(),
	}

	o.mu.Lock()
	if cur, ok := o.byDoc[docKey]; ok {
		if !cur.snapshot().Status.Terminal() {
			o.mu.Unlock()
			cancel()
			return nil, domain.ConfigError(
				fmt.Sprintf("document %s already has an active run", req.DocumentPath), domain.ErrRunActive)
		}
		// A document keeps exactly one run result at a time.
		delete(o.byID, cur.id)
	}
	o.byID[r.id] = r
	o.byDoc[docKey] = r
	o.mu.Unlock()

	r.progress(domain.StatusPending, 0, "run accepted")

	go o.execute(runCtx, r)

	return &RunHandle{ID: r.id, r: r}, nil
}

// StartRun starts a run and returns only its ID, for surfaces that track
// runs by ID rather than holding the handle.
func (o *Orchestrator) StartRun(ctx context.Context, req domain.RunRequest) (string, error) {
	h, err := o.Start(ctx, req)
	if err != nil {
		return "", err
	}
	return h.ID, nil
}

// Cancel signals a run to stop. The pipeline observes the signal at its next
// checkpoint and transitions to Cancelled without writing output.
func (o *Orchestrator) Cancel(runID string) error {
	o.mu.Lock()
	r, ok := o.byID[runID]
	o.mu.Unlock()
	if !ok {
		return domain.InputError(fmt.Sprintf("unknown run %s", runID), nil)
	}
	r.cancel()
	return nil
}

// Snapshot returns a point-in-time copy of a run's state by ID.
func (o *Orchestrator) Snapshot(runID string) (domain.RunSnapshot, bool) {
	o.mu.Lock()
	r, ok := o.byID[runID]
	o.mu.Unlock()
	if !ok {
		return domain.RunSnapshot{}, false
	}
	return r.snapshot(), true
}

// validateRequest fails fast on anything that would doom the run, and fills
// in option defaults. No capability is called and no goroutine is spawned
// when it returns an error.
func (o *Orchestrator) validateRequest(req *domain.RunRequest) error {
	switch req.Mode {
	case domain.ModeSync, domain.ModeAsync:
	case "":
		return domain.ConfigError("mode is required", nil)
	default:
		return domain.ConfigError(fmt.Sprintf("unknown mode %q", req.Mode), nil)
	}

	info, err := os.Stat(req.DocumentPath)
	if err != nil {
		if os.IsNotExist(err) {
			return domain.InputError(fmt.Sprintf("document not found: %s", req.DocumentPath), err)
		}
		return domain.InputError(fmt.Sprintf("cannot access document: %s", req.DocumentPath), err)
	}
	if info.IsDir() {
		return domain.InputError(fmt.Sprintf("document path is a directory: %s", req.DocumentPath), nil)
	}
	f, err := os.Open(req.DocumentPath)
	if err != nil {
		return domain.InputError(fmt.Sprintf("document is not readable: %s", req.DocumentPath), err)
	}
	f.Close()

	if req.OutputPath == "" {
		return domain.InputError("output path is required", nil)
	}
	if info, err := os.Stat(req.OutputPath); err == nil && info.IsDir() {
		return domain.InputError(fmt.Sprintf("output path is a directory: %s", req.OutputPath), nil)
	}
	outDir := filepath.Dir(req.OutputPath)
	if info, err := os.Stat(outDir); err != nil || !info.IsDir() {
		return domain.InputError(fmt.Sprintf("output directory does not exist: %s", outDir), err)
	}

	if req.Mode == domain.ModeAsync {
		if strings.TrimSpace(req.Bucket) == "" {
			return domain.ConfigError("async mode requires a storage bucket", nil)
		}
		if o.blobs == nil {
			return domain.ConfigError("async mode requires a blob store", nil)
		}
		if req.ResultPrefix == "" {
			req.ResultPrefix = o.opts.ResultPrefix
		}
		if !strings.HasSuffix(req.ResultPrefix, "/") {
			req.ResultPrefix += "/"
		}
		if req.PollTimeout <= 0 {
			req.PollTimeout = o.opts.PollTimeout
		}
	}

	if req.DPI <= 0 {
		req.DPI = o.opts.DPI
	}
	if req.Workers < 1 {
		req.Workers = o.opts.Workers
	}
	if len(req.LanguageHints) == 0 {
		req.LanguageHints = o.opts.LanguageHints
	}
	return nil
}

// execute runs the selected pipeline to a terminal state. It is the only
// writer of the run's state after Start returns.
func (o *Orchestrator) execute(ctx context.Context, r *run) {
	logger := o.logger.With().
		Str("run_id", r.id).
		Str("mode", string(r.req.Mode)).
		Logger()
	logger.Info().Str("document", r.req.DocumentPath).Msg("run started")

	var (
		text string
		err  error
	)
	switch r.req.Mode {
	case domain.ModeSync:
		text, err = o.runSync(ctx, r)
	case domain.ModeAsync:
		text, err = o.runAsync(ctx, r, logger)
	}

	// The output file is written only on success, atomically, so a failed
	// or cancelled run never leaves partial output behind.
	if err == nil && ctx.Err() == nil {
		r.progress(domain.StatusAssembling, 96, "writing output")
		if werr := writeOutputAtomic(r.req.OutputPath, text); werr != nil {
			err = domain.InputError(fmt.Sprintf("failed to write output %s", r.req.OutputPath), werr)
		}
	}

	switch {
	case ctx.Err() != nil && (err == nil || isContextError(err)):
		r.finish(domain.StatusCancelled, "run cancelled", "", context.Canceled)
		logger.Warn().Msg("run cancelled")
	case err != nil:
		r.finish(domain.StatusFailed, err.Error(), "", err)
		logger.Error().Err(err).Msg("run failed")
	default:
		r.finish(domain.StatusCompleted, "completed", text, nil)
		logger.Info().
			Int("pages", r.snapshot().TotalPages).
			Str("output", r.req.OutputPath).
			Msg("run completed")
	}

	r.reporter.Close()
	r.cancel()
}

func isContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// writeOutputAtomic stages the text in a temp file and renames it into
// place, so the output path never holds a partial document.
func writeOutputAtomic(path, text string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pdfocr-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
