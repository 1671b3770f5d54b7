package vision

// Wire types for the Vision REST API. Only the fields this client reads or
// writes are modeled.

type annotateImagesRequest struct {
	Requests []imageRequest `json:"requests"`
}

type imageRequest struct {
	Image        imageContent  `json:"image"`
	Features     []feature     `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
}

type imageContent struct {
	Content string `json:"content"` // base64-encoded image bytes
}

type feature struct {
	Type string `json:"type"`
}

type imageContext struct {
	LanguageHints []string `json:"languageHints,omitempty"`
}

type annotateImagesResponse struct {
	Responses []imageResponse `json:"responses"`
}

type imageResponse struct {
	FullTextAnnotation *fullTextAnnotation `json:"fullTextAnnotation"`
	Error              *apiStatus          `json:"error"`
}

type fullTextAnnotation struct {
	Text string `json:"text"`
}

type apiStatus struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type asyncBatchFilesRequest struct {
	Requests []fileRequest `json:"requests"`
}

type fileRequest struct {
	InputConfig  inputConfig   `json:"inputConfig"`
	Features     []feature     `json:"features"`
	ImageContext *imageContext `json:"imageContext,omitempty"`
	OutputConfig outputConfig  `json:"outputConfig"`
}

type inputConfig struct {
	GcsSource gcsSource `json:"gcsSource"`
	MimeType  string    `json:"mimeType"`
}

type gcsSource struct {
	URI string `json:"uri"`
}

type outputConfig struct {
	GcsDestination gcsDestination `json:"gcsDestination"`
	BatchSize      int            `json:"batchSize"`
}

type gcsDestination struct {
	URI string `json:"uri"`
}

type operationResponse struct {
	Name  string     `json:"name"`
	Done  bool       `json:"done"`
	Error *apiStatus `json:"error"`
}
