package pdf

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomitext/pdfocr/internal/domain"
)

func TestValidatePDF_Rejections(t *testing.T) {
	v := NewValidator(zerolog.Nop())

	notAPDF := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notAPDF, []byte("plain text"), 0o644))

	tests := []struct {
		name string
		path string
	}{
		{"empty path", ""},
		{"whitespace path", "   "},
		{"missing file", filepath.Join(t.TempDir(), "absent.pdf")},
		{"directory", t.TempDir()},
		{"wrong extension", notAPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidatePDF(tt.path)
			require.Error(t, err)
			assert.True(t, domain.IsInputError(err))
		})
	}
}

func TestValidatePDF_AcceptsReadablePDF(t *testing.T) {
	// Validation checks the path, not the document structure.
	v := NewValidator(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 stub"), 0o644))

	assert.NoError(t, v.ValidatePDF(path))
}

func TestPageCount_MissingFileFails(t *testing.T) {
	v := NewValidator(zerolog.Nop())

	_, err := v.PageCount(filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
	assert.True(t, domain.IsInputError(err))
}

func TestPageCount_CorruptFileFails(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	path := filepath.Join(t.TempDir(), "broken.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 not a real document"), 0o644))

	_, err := v.PageCount(path)
	require.Error(t, err)
	assert.True(t, domain.IsInputError(err))
	assert.Contains(t, err.Error(), "cannot read page count")
}

func TestPageCount_Fixture(t *testing.T) {
	v := NewValidator(zerolog.Nop())

	count, err := v.PageCount(fixturePath(t))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 1)
}

func TestDescribe_Fixture(t *testing.T) {
	v := NewValidator(zerolog.Nop())
	path := fixturePath(t)

	doc, err := v.Describe(path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.FilePath)
	assert.GreaterOrEqual(t, doc.TotalPages, 1)
}

func TestDescribe_MissingFileFails(t *testing.T) {
	v := NewValidator(zerolog.Nop())

	_, err := v.Describe(filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
	assert.True(t, domain.IsInputError(err))
}

// fixturePath returns the sample document used by tests that need a real
// PDF. Those tests skip when the fixture is absent.
func fixturePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join("testdata", "sample.pdf")
	if _, err := os.Stat(path); err != nil {
		t.Skipf("fixture %s not present", path)
	}
	return path
}
