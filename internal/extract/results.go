package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"

	"github.com/yomitext/pdfocr/internal/domain"
)

// annotateOutput is the documented shape of one batch result object:
// {"responses":[{"fullTextAnnotation":{"text":...},"context":{"pageNumber":N}}]}
type annotateOutput struct {
	Responses []annotateOutputResponse `json:"responses"`
}

type annotateOutputResponse struct {
	FullTextAnnotation *struct {
		Text string `json:"text"`
	} `json:"fullTextAnnotation"`
	Context *struct {
		URI        string `json:"uri"`
		PageNumber int    `json:"pageNumber"`
	} `json:"context"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// outputRangePattern matches the page range the service encodes in result
// object names, e.g. "prefix/output-3-to-4.json".
var outputRangePattern = regexp.MustCompile(`output-(\d+)-to-(\d+)\.json$`)

// parseOutputObject converts one downloaded result object into fragments.
// The page index comes from the response's own context when present, falling
// back to the page range encoded in the object name plus the in-object
// offset. Listing order is never used as an index source: the storage
// service does not guarantee it matches page order.
func parseOutputObject(objectName string, data []byte) ([]domain.TextFragment, error) {
	var out annotateOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, domain.RemoteServiceError("results",
			fmt.Sprintf("malformed result object %s", objectName), err)
	}
	if len(out.Responses) == 0 {
		return nil, domain.RemoteServiceError("results",
			fmt.Sprintf("result object %s contains no responses", objectName), nil)
	}

	rangeStart, hasRange := objectPageRange(objectName)

	fragments := make([]domain.TextFragment, 0, len(out.Responses))
	for i, resp := range out.Responses {
		if resp.Error != nil {
			return nil, domain.RemoteServiceError("results",
				fmt.Sprintf("page response error in %s: %s", objectName, resp.Error.Message), nil)
		}

		var page int
		switch {
		case resp.Context != nil && resp.Context.PageNumber > 0:
			page = resp.Context.PageNumber
		case hasRange:
			page = rangeStart + i
		default:
			return nil, domain.RemoteServiceError("results",
				fmt.Sprintf("cannot derive page number for response %d of %s", i, objectName), nil)
		}

		// A response without a text annotation is a blank page; keep it so
		// page numbering stays contiguous.
		text := ""
		if resp.FullTextAnnotation != nil {
			text = resp.FullTextAnnotation.Text
		}
		fragments = append(fragments, domain.TextFragment{PageNumber: page, Text: text})
	}
	return fragments, nil
}

// objectPageRange extracts the starting page from a result object name.
func objectPageRange(objectName string) (int, bool) {
	m := outputRangePattern.FindStringSubmatch(objectName)
	if m == nil {
		return 0, false
	}
	start, err := strconv.Atoi(m[1])
	if err != nil || start < 1 {
		return 0, false
	}
	return start, true
}
