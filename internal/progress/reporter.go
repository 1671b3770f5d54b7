// Package progress carries run progress from pipelines to whatever
// presentation layer is watching, without coupling the two.
package progress

import (
	"sync"
	"time"

	"github.com/yomitext/pdfocr/internal/domain"
)

// DefaultBuffer is the event buffer size used when none is configured.
const DefaultBuffer = 64

// Reporter is a per-run event sink. The producing pipeline never blocks on
// it: when the buffer is full the oldest event is dropped, so the newest
// event (including the terminal one) always enqueues and FIFO order is
// preserved for what remains. The most recent event is also published as a
// snapshot for consumers that poll instead of subscribing.
type Reporter struct {
	runID string

	mu          sync.Mutex
	ch          chan domain.ProgressEvent
	latest      domain.ProgressEvent
	hasLatest   bool
	lastPercent int
	closed      bool
}

// NewReporter creates a reporter for one run.
func NewReporter(runID string, buffer int) *Reporter {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Reporter{
		runID: runID,
		ch:    make(chan domain.ProgressEvent, buffer),
	}
}

// Report publishes one progress event. Percent values are clamped so the
// sequence consumers observe is non-decreasing and within 0-100.
func (r *Reporter) Report(status domain.RunStatus, percent int, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}

	if percent < r.lastPercent {
		percent = r.lastPercent
	}
	if percent > 100 {
		percent = 100
	}
	r.lastPercent = percent

	ev := domain.ProgressEvent{
		RunID:     r.runID,
		Status:    status,
		Percent:   percent,
		Message:   message,
		Timestamp: time.Now(),
	}
	r.latest = ev
	r.hasLatest = true

	for {
		select {
		case r.ch <- ev:
			return
		default:
		}
		// Buffer full: drop the oldest event to make room.
		select {
		case <-r.ch:
		default:
		}
	}
}

// Events returns the run's event stream. The channel is closed after the
// terminal event has been published.
func (r *Reporter) Events() <-chan domain.ProgressEvent {
	return r.ch
}

// Latest returns the most recent event, if any was published.
func (r *Reporter) Latest() (domain.ProgressEvent, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest, r.hasLatest
}

// Close ends the stream. Report calls after Close are ignored.
func (r *Reporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	close(r.ch)
}
