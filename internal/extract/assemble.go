package extract

import (
	"fmt"
	"sort"
	"strings"

	"github.com/yomitext/pdfocr/internal/domain"
)

// Assemble renders page fragments into the final document text. Fragments
// are sorted by page number before concatenation, so arrival order never
// affects the output. Pure function: the same fragment set always yields the
// same bytes.
func Assemble(fragments []domain.TextFragment) string {
	sorted := make([]domain.TextFragment, len(fragments))
	copy(sorted, fragments)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PageNumber < sorted[j].PageNumber
	})

	var b strings.Builder
	for _, f := range sorted {
		fmt.Fprintf(&b, "--- Page %d ---\n%s\n\n", f.PageNumber, f.Text)
	}
	return b.String()
}

// checkContiguous verifies that fragments cover pages 1..N exactly once.
func checkContiguous(fragments []domain.TextFragment) error {
	seen := make(map[int]bool, len(fragments))
	max := 0
	for _, f := range fragments {
		if f.PageNumber < 1 {
			return domain.RemoteServiceError("results",
				fmt.Sprintf("invalid page number %d in results", f.PageNumber), nil)
		}
		if seen[f.PageNumber] {
			return domain.RemoteServiceError("results",
				fmt.Sprintf("duplicate result for page %d", f.PageNumber), nil)
		}
		seen[f.PageNumber] = true
		if f.PageNumber > max {
			max = f.PageNumber
		}
	}
	for p := 1; p <= max; p++ {
		if !seen[p] {
			return domain.RemoteServiceError("results",
				fmt.Sprintf("missing result for page %d", p), nil)
		}
	}
	return nil
}
