package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomitext/pdfocr/internal/domain"
)

func TestReporter_OrderPreserved(t *testing.T) {
	r := NewReporter("run-1", 16)

	r.Report(domain.StatusPending, 0, "accepted")
	r.Report(domain.StatusRasterizing, 5, "rasterizing")
	r.Report(domain.StatusExtracting, 40, "page 2/5")
	r.Report(domain.StatusCompleted, 100, "completed")
	r.Close()

	events := drain(r)
	require.Len(t, events, 4)
	assert.Equal(t, []int{0, 5, 40, 100}, percents(events))
	assert.Equal(t, domain.StatusCompleted, events[len(events)-1].Status)
	for _, ev := range events {
		assert.Equal(t, "run-1", ev.RunID)
	}
}

func TestReporter_PercentNeverDecreases(t *testing.T) {
	r := NewReporter("run-1", 16)

	r.Report(domain.StatusExtracting, 40, "page 2")
	r.Report(domain.StatusExtracting, 10, "late event")
	r.Report(domain.StatusExtracting, 55, "page 3")
	r.Close()

	events := drain(r)
	require.Len(t, events, 3)
	assert.Equal(t, []int{40, 40, 55}, percents(events))
}

func TestReporter_PercentClampedTo100(t *testing.T) {
	r := NewReporter("run-1", 16)

	r.Report(domain.StatusAssembling, 250, "overeager")
	r.Close()

	events := drain(r)
	require.Len(t, events, 1)
	assert.Equal(t, 100, events[0].Percent)
}

func TestReporter_DropsOldestWhenFull(t *testing.T) {
	r := NewReporter("run-1", 2)

	// Nothing consumes the channel, so the third event must evict the first.
	r.Report(domain.StatusExtracting, 10, "page 1")
	r.Report(domain.StatusExtracting, 20, "page 2")
	r.Report(domain.StatusCompleted, 100, "completed")
	r.Close()

	events := drain(r)
	require.Len(t, events, 2)
	assert.Equal(t, []int{20, 100}, percents(events))
	assert.Equal(t, domain.StatusCompleted, events[1].Status, "terminal event must survive drops")
}

func TestReporter_LatestTracksNewestEvenWhenDropped(t *testing.T) {
	r := NewReporter("run-1", 1)

	_, ok := r.Latest()
	assert.False(t, ok)

	r.Report(domain.StatusExtracting, 10, "page 1")
	r.Report(domain.StatusExtracting, 90, "page 9")

	latest, ok := r.Latest()
	require.True(t, ok)
	assert.Equal(t, 90, latest.Percent)
	assert.Equal(t, "page 9", latest.Message)
}

func TestReporter_ReportAfterCloseIgnored(t *testing.T) {
	r := NewReporter("run-1", 4)
	r.Close()

	// Must neither panic nor publish.
	r.Report(domain.StatusCompleted, 100, "too late")

	events := drain(r)
	assert.Empty(t, events)

	// Double close is also safe.
	r.Close()
}

func drain(r *Reporter) []domain.ProgressEvent {
	var events []domain.ProgressEvent
	for ev := range r.Events() {
		events = append(events, ev)
	}
	return events
}

func percents(events []domain.ProgressEvent) []int {
	out := make([]int, len(events))
	for i, ev := range events {
		out[i] = ev.Percent
	}
	return out
}
