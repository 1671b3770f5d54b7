package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		input   string
		want    Mode
		wantErr bool
	}{
		{"sync", ModeSync, false},
		{"async", ModeAsync, false},
		{"SYNC", ModeSync, false},
		{"  Async  ", ModeAsync, false},
		{"", "", true},
		{"batch", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			mode, err := ParseMode(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsConfigError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mode)
		})
	}
}

func TestRunStatus_Terminal(t *testing.T) {
	terminal := []RunStatus{StatusCompleted, StatusFailed, StatusCancelled}
	for _, s := range terminal {
		assert.True(t, s.Terminal(), "status %s should be terminal", s)
	}

	active := []RunStatus{
		StatusPending, StatusRasterizing, StatusExtracting,
		StatusUploading, StatusSubmitted, StatusPolling,
		StatusRetrieving, StatusAssembling,
	}
	for _, s := range active {
		assert.False(t, s.Terminal(), "status %s should not be terminal", s)
	}
}
