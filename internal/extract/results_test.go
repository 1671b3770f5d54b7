package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomitext/pdfocr/internal/domain"
)

func TestParseOutputObject_PageNumberFromContext(t *testing.T) {
	data := resultObject(t, pageResponse(7))

	frags, err := parseOutputObject("ocr-results/result.json", data)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, 7, frags[0].PageNumber)
	assert.Equal(t, pageText(7), frags[0].Text)
}

func TestParseOutputObject_ContextWinsOverObjectName(t *testing.T) {
	// The name claims pages 1..1 but the response says page 9. The
	// response context is authoritative.
	data := resultObject(t, pageResponse(9))

	frags, err := parseOutputObject("ocr-results/output-1-to-1.json", data)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, 9, frags[0].PageNumber)
}

func TestParseOutputObject_RangeFallback(t *testing.T) {
	data := resultObject(t, anonymousResponse(4), anonymousResponse(5), anonymousResponse(6))

	frags, err := parseOutputObject("ocr-results/output-4-to-6.json", data)
	require.NoError(t, err)
	require.Len(t, frags, 3)
	for i, f := range frags {
		assert.Equal(t, 4+i, f.PageNumber)
		assert.Equal(t, pageText(4+i), f.Text)
	}
}

func TestParseOutputObject_NoPageSource(t *testing.T) {
	data := resultObject(t, anonymousResponse(1))

	_, err := parseOutputObject("ocr-results/final.json", data)
	require.Error(t, err)
	assert.True(t, domain.IsRemoteError(err))
	assert.Contains(t, err.Error(), "cannot derive page number")
}

func TestParseOutputObject_MalformedJSON(t *testing.T) {
	_, err := parseOutputObject("ocr-results/output-1-to-1.json", []byte("<html>"))
	require.Error(t, err)
	assert.True(t, domain.IsRemoteError(err))
	assert.Contains(t, err.Error(), "malformed result object")
}

func TestParseOutputObject_EmptyResponses(t *testing.T) {
	_, err := parseOutputObject("ocr-results/output-1-to-1.json", []byte(`{"responses":[]}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contains no responses")
}

func TestParseOutputObject_ResponseError(t *testing.T) {
	data := resultObject(t, map[string]interface{}{
		"error": map[string]interface{}{"code": 13, "message": "internal error"},
	})

	_, err := parseOutputObject("ocr-results/output-1-to-1.json", data)
	require.Error(t, err)
	assert.True(t, domain.IsRemoteError(err))
	assert.Contains(t, err.Error(), "internal error")
}

func TestParseOutputObject_BlankPage(t *testing.T) {
	data := resultObject(t, map[string]interface{}{
		"context": map[string]interface{}{"pageNumber": 2},
	})

	frags, err := parseOutputObject("ocr-results/output-2-to-2.json", data)
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, 2, frags[0].PageNumber)
	assert.Equal(t, "", frags[0].Text)
}

func TestObjectPageRange(t *testing.T) {
	tests := []struct {
		name      string
		object    string
		wantStart int
		wantOK    bool
	}{
		{"prefixed", "scans/ocr-results/output-1-to-5.json", 1, true},
		{"multi digit", "output-12-to-20.json", 12, true},
		{"no range", "result.json", 0, false},
		{"zero start", "output-0-to-2.json", 0, false},
		{"wrong extension", "output-1-to-5.txt", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, ok := objectPageRange(tt.object)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantStart, start)
			}
		})
	}
}
