package domain

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how a document is sent to the OCR service
type Mode string

const (
	// ModeSync extracts text page by page with one remote call per page.
	ModeSync Mode = "sync"
	// ModeAsync uploads the whole document to object storage and runs a
	// single batch job against it.
	ModeAsync Mode = "async"
)

// ParseMode converts a user-supplied string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeSync:
		return ModeSync, nil
	case ModeAsync:
		return ModeAsync, nil
	default:
		return "", ConfigError(fmt.Sprintf("unknown mode %q (want sync or async)", s), nil)
	}
}

// RunStatus tracks a run through its pipeline stages
type RunStatus string

const (
	StatusPending     RunStatus = "pending"
	StatusRasterizing RunStatus = "rasterizing"
	StatusExtracting  RunStatus = "extracting"
	StatusUploading   RunStatus = "uploading"
	StatusSubmitted   RunStatus = "submitted"
	StatusPolling     RunStatus = "polling"
	StatusRetrieving  RunStatus = "retrieving"
	StatusAssembling  RunStatus = "assembling"
	StatusCompleted   RunStatus = "completed"
	StatusFailed      RunStatus = "failed"
	StatusCancelled   RunStatus = "cancelled"
)

// Terminal reports whether no further transitions can occur.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Document represents the source PDF file being processed
type Document struct {
	FilePath   string
	TotalPages int
}

// PageImage is one rasterized PDF page, held in memory only while the
// pipeline that produced it is extracting text from it.
type PageImage struct {
	PageNumber int // 1-based
	PNG        []byte
	Width      int
	Height     int
	DPI        int
}

// TextFragment is the extracted text for exactly one page
type TextFragment struct {
	PageNumber int
	Text       string
}

// RunRequest carries everything a run needs, fixed at start time.
type RunRequest struct {
	DocumentPath string
	OutputPath   string
	Mode         Mode

	// Async parameters
	Bucket       string
	ResultPrefix string
	PollTimeout  time.Duration
	CleanupInput bool

	// Extraction parameters
	DPI           int
	Workers       int
	LanguageHints []string
}

// ProgressEvent is one progress update emitted by a running pipeline
type ProgressEvent struct {
	RunID     string    `json:"run_id"`
	Status    RunStatus `json:"status"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RunSnapshot is an immutable point-in-time copy of a run's state.
// Once Status is terminal the snapshot no longer changes.
type RunSnapshot struct {
	ID           string
	DocumentPath string
	OutputPath   string
	Mode         Mode
	Status       RunStatus
	Percent      int
	Message      string
	TotalPages   int
	PagesDone    int
	Text         string // assembled document text, set only when completed
	Err          error
	StartedAt    time.Time
	FinishedAt   time.Time
}

// AsyncJobHandle identifies a batch job in flight. It is owned by the
// async pipeline for the duration of the run and discarded afterwards.
type AsyncJobHandle struct {
	Bucket        string
	InputObject   string
	OutputPrefix  string
	OperationName string
	Deadline      time.Time
}
