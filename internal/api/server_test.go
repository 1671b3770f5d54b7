package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomitext/pdfocr/internal/domain"
)

func TestStartRun_Accepted(t *testing.T) {
	runner := &stubRunner{
		startID: "run-1",
		snapOK:  true,
		snap: domain.RunSnapshot{
			ID:           "run-1",
			DocumentPath: "/docs/scan.pdf",
			OutputPath:   "/docs/scan.txt",
			Mode:         domain.ModeAsync,
			Status:       domain.StatusPending,
		},
	}

	rec := doRequest(t, newTestRouter(runner), http.MethodPost, "/api/v1/runs", StartRunDTO{
		DocumentPath:       "/docs/scan.pdf",
		OutputPath:         "/docs/scan.txt",
		Mode:               "async",
		Bucket:             "scans",
		ResultPrefix:       "results/",
		LanguageHints:      []string{"ja", "en"},
		DPI:                400,
		Workers:            2,
		PollTimeoutSeconds: 60,
		CleanupInput:       true,
	})

	require.Equal(t, http.StatusAccepted, rec.Code)

	var dto RunDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
	assert.Equal(t, "run-1", dto.ID)
	assert.Equal(t, "pending", dto.Status)
	assert.Equal(t, "async", dto.Mode)

	req := runner.startReq
	assert.Equal(t, "/docs/scan.pdf", req.DocumentPath)
	assert.Equal(t, domain.ModeAsync, req.Mode)
	assert.Equal(t, "scans", req.Bucket)
	assert.Equal(t, "results/", req.ResultPrefix)
	assert.Equal(t, []string{"ja", "en"}, req.LanguageHints)
	assert.Equal(t, 400, req.DPI)
	assert.Equal(t, 2, req.Workers)
	assert.Equal(t, 60*time.Second, req.PollTimeout)
	assert.True(t, req.CleanupInput)
}

func TestStartRun_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    StartRunDTO
		wantMsg string
	}{
		{
			name:    "missing document path",
			body:    StartRunDTO{OutputPath: "/out.txt", Mode: "sync"},
			wantMsg: "documentPath is required",
		},
		{
			name:    "missing output path",
			body:    StartRunDTO{DocumentPath: "/doc.pdf", Mode: "sync"},
			wantMsg: "outputPath is required",
		},
		{
			name:    "invalid mode",
			body:    StartRunDTO{DocumentPath: "/doc.pdf", OutputPath: "/out.txt", Mode: "batch"},
			wantMsg: "invalid mode",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{startID: "run-1"}
			rec := doRequest(t, newTestRouter(runner), http.MethodPost, "/api/v1/runs", tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rec))
			assert.Zero(t, runner.startCalls, "runner must not be reached on a bad request")
		})
	}
}

func TestStartRun_MalformedJSON(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewBufferString("{nope"))
	rec := httptest.NewRecorder()
	newTestRouter(&stubRunner{}).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid request body", decodeError(t, rec))
}

func TestStartRun_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "active run conflict",
			err:        domain.ConfigError("document already has an active run", domain.ErrRunActive),
			wantStatus: http.StatusConflict,
		},
		{
			name:       "input error",
			err:        domain.InputError("document does not exist", nil),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "config error",
			err:        domain.ConfigError("async mode requires a storage bucket", nil),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unclassified error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := &stubRunner{startErr: tt.err}
			rec := doRequest(t, newTestRouter(runner), http.MethodPost, "/api/v1/runs", StartRunDTO{
				DocumentPath: "/doc.pdf",
				OutputPath:   "/out.txt",
				Mode:         "sync",
			})

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestGetRun_Known(t *testing.T) {
	runner := &stubRunner{
		snapOK: true,
		snap: domain.RunSnapshot{
			ID:         "run-7",
			Mode:       domain.ModeSync,
			Status:     domain.StatusFailed,
			Percent:    40,
			TotalPages: 10,
			PagesDone:  4,
			Err:        domain.RemoteServiceError("annotate", "vision error", nil),
			StartedAt:  time.Now(),
		},
	}

	rec := doRequest(t, newTestRouter(runner), http.MethodGet, "/api/v1/runs/run-7", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var dto RunDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
	assert.Equal(t, "run-7", dto.ID)
	assert.Equal(t, "failed", dto.Status)
	assert.Equal(t, 40, dto.Percent)
	assert.Equal(t, 10, dto.TotalPages)
	assert.Equal(t, 4, dto.PagesDone)
	assert.Contains(t, dto.Error, "vision error")
	assert.NotEmpty(t, dto.StartedAt)
}

func TestGetRun_Unknown(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubRunner{}), http.MethodGet, "/api/v1/runs/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "unknown run", decodeError(t, rec))
}

func TestCancelRun(t *testing.T) {
	runner := &stubRunner{}
	rec := doRequest(t, newTestRouter(runner), http.MethodDelete, "/api/v1/runs/run-3", nil)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"run-3"}, runner.cancelled)
}

func TestCancelRun_Unknown(t *testing.T) {
	runner := &stubRunner{cancelErr: domain.InputError("unknown run", nil)}
	rec := doRequest(t, newTestRouter(runner), http.MethodDelete, "/api/v1/runs/run-3", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	rec := doRequest(t, newTestRouter(&stubRunner{}), http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "pdfocr", body["service"])
}

// --- test doubles ---

type stubRunner struct {
	startID    string
	startErr   error
	startReq   domain.RunRequest
	startCalls int

	snap   domain.RunSnapshot
	snapOK bool

	cancelErr error
	cancelled []string
}

func (s *stubRunner) StartRun(ctx context.Context, req domain.RunRequest) (string, error) {
	s.startCalls++
	s.startReq = req
	if s.startErr != nil {
		return "", s.startErr
	}
	return s.startID, nil
}

func (s *stubRunner) Cancel(runID string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	s.cancelled = append(s.cancelled, runID)
	return nil
}

func (s *stubRunner) Snapshot(runID string) (domain.RunSnapshot, bool) {
	return s.snap, s.snapOK
}

// --- helpers ---

func newTestRouter(runner Runner) http.Handler {
	return NewServer(context.Background(), runner, zerolog.Nop()).Router()
}

func doRequest(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body["error"]
}
