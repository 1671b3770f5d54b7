// Package vision implements the remote OCR capability against the Google
// Cloud Vision REST API.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/yomitext/pdfocr/internal/domain"
)

const (
	defaultEndpoint = "https://vision.googleapis.com"

	// featureDocumentText selects full-page structured text detection
	// rather than sparse word boxes.
	featureDocumentText = "DOCUMENT_TEXT_DETECTION"

	pdfMimeType = "application/pdf"

	// batchPageSize of 1 makes the service write one page per output shard.
	batchPageSize = 1
)

// Client handles communication with the Vision REST API
type Client struct {
	endpoint    string
	apiKey      string
	bearerToken string
	httpClient  *http.Client
	logger      zerolog.Logger
	retry       RetryConfig
}

// Option customizes a Client.
type Option func(*Client)

// WithEndpoint overrides the API endpoint, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimSuffix(endpoint, "/")
	}
}

// WithBearerToken authenticates requests with an OAuth access token
// instead of an API key.
func WithBearerToken(token string) Option {
	return func(c *Client) {
		c.bearerToken = token
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRetryConfig overrides the retry policy.
func WithRetryConfig(rc RetryConfig) Option {
	return func(c *Client) {
		c.retry = rc
	}
}

// WithLogger attaches a logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a new Vision API client
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		endpoint:   defaultEndpoint,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		logger:     zerolog.Nop(),
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ExtractText runs document text detection on a single page image.
func (c *Client) ExtractText(ctx context.Context, image []byte, languageHints []string) (string, error) {
	reqBody := annotateImagesRequest{
		Requests: []imageRequest{
			{
				Image:        imageContent{Content: base64.StdEncoding.EncodeToString(image)},
				Features:     []feature{{Type: featureDocumentText}},
				ImageContext: languageContext(languageHints),
			},
		},
	}

	var out annotateImagesResponse
	if err := c.postJSON(ctx, "/v1/images:annotate", reqBody, &out); err != nil {
		return "", err
	}

	if len(out.Responses) == 0 {
		return "", domain.RemoteServiceError("annotate", "empty annotate response", nil)
	}
	resp := out.Responses[0]
	if resp.Error != nil {
		return "", domain.RemoteServiceError("annotate",
			fmt.Sprintf("vision error %d: %s", resp.Error.Code, resp.Error.Message), nil)
	}
	if resp.FullTextAnnotation == nil {
		// Page with no detectable text.
		return "", nil
	}
	return resp.FullTextAnnotation.Text, nil
}

// SubmitBatch starts an asynchronous whole-document annotation job and
// returns the operation name to poll.
func (c *Client) SubmitBatch(ctx context.Context, inputURI, outputURIPrefix string, languageHints []string) (string, error) {
	reqBody := asyncBatchFilesRequest{
		Requests: []fileRequest{
			{
				InputConfig: inputConfig{
					GcsSource: gcsSource{URI: inputURI},
					MimeType:  pdfMimeType,
				},
				Features:     []feature{{Type: featureDocumentText}},
				ImageContext: languageContext(languageHints),
				OutputConfig: outputConfig{
					GcsDestination: gcsDestination{URI: outputURIPrefix},
					BatchSize:      batchPageSize,
				},
			},
		},
	}

	var out operationResponse
	if err := c.postJSON(ctx, "/v1/files:asyncBatchAnnotate", reqBody, &out); err != nil {
		return "", err
	}
	if out.Name == "" {
		return "", domain.RemoteServiceError("submit", "operation name missing from response", nil)
	}

	c.logger.Debug().Str("operation", out.Name).Msg("batch annotation submitted")
	return out.Name, nil
}

// PollOperation reports whether the named operation has finished.
func (c *Client) PollOperation(ctx context.Context, operationName string) (bool, error) {
	var out operationResponse
	if err := c.getJSON(ctx, "/v1/"+operationName, &out); err != nil {
		return false, err
	}
	if out.Error != nil {
		return false, domain.RemoteServiceError("poll",
			fmt.Sprintf("operation failed with code %d: %s", out.Error.Code, out.Error.Message), nil)
	}
	return out.Done, nil
}

func languageContext(hints []string) *imageContext {
	if len(hints) == 0 {
		return nil
	}
	return &imageContext{LanguageHints: hints}
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return domain.InternalError("failed to marshal request", err)
	}
	return c.doJSON(ctx, http.MethodPost, path, body, out)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out)
}

// doJSON sends one request with retry and decodes the JSON response.
func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, out any) error {
	resp, err := c.retryWithBackoff(ctx, func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			// Fresh reader per attempt.
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.requestURL(path), reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.bearerToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.bearerToken)
		}
		return c.httpClient.Do(req)
	})
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		var derr *domain.Error
		if errors.As(err, &derr) {
			return derr
		}
		return domain.RemoteServiceError("request", "failed to reach vision API", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return domain.RemoteServiceError("request",
			fmt.Sprintf("vision API returned status %d: %s", resp.StatusCode, truncate(string(b), 512)), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.RemoteServiceError("request", "failed to decode vision API response", err)
	}
	return nil
}

func (c *Client) requestURL(path string) string {
	u := c.endpoint + path
	if c.apiKey != "" {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + "key=" + url.QueryEscape(c.apiKey)
	}
	return u
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
