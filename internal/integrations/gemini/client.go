package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"handbook-chat/internal/domain"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com/"
	DefaultModel      = "gemini-2.5-flash"
	defaultAPIVersion = "v1beta"
	defaultTimeout    = 2 * time.Minute
)

// ErrPromptBlocked is returned when the upstream refuses the prompt outright.
var ErrPromptBlocked = errors.New("gemini: prompt blocked")

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("gemini: unexpected status %d %s: %s", e.StatusCode, e.Status, e.Message)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client streams generations through the Gemini API SDK.
type Client struct {
	baseURL    string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	models     *genai.Models
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL = strings.TrimSpace(baseURL); baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model = strings.TrimSpace(model); model != "" {
			c.model = model
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTimeout bounds one whole streamed call. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// NewClient creates a Client for apiKey. The HTTP client has no overall
// timeout because a streamed body can legitimately stay open for a while;
// the per-call limit comes from WithTimeout.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini: api key must not be empty")
	}
	c := &Client{
		baseURL:    DefaultBaseURL,
		model:      DefaultModel,
		timeout:    defaultTimeout,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = http.DefaultClient
	}

	sdk, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: c.httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    c.baseURL,
			APIVersion: defaultAPIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create sdk client: %w", err)
	}
	c.models = sdk.Models
	return c, nil
}

func (c *Client) Model() string { return c.model }

// Stream opens a streamed generation. Nothing is sent until the sequence is
// ranged over. Breaking out of the range, cancelling ctx or hitting the
// timeout closes the upstream connection.
func (c *Client) Stream(ctx context.Context, req domain.GenerationRequest) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		if c.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.timeout)
			defer cancel()
		}

		contents := []*genai.Content{genai.NewContentFromText(req.Prompt, genai.RoleUser)}
		for resp, err := range c.models.GenerateContentStream(ctx, c.model, contents, generationConfig(req)) {
			if err != nil {
				yield("", mapError(ctx, err))
				return
			}
			if resp == nil {
				continue
			}
			if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
				yield("", fmt.Errorf("%w: %s", ErrPromptBlocked, fb.BlockReason))
				return
			}
			if text := responseText(resp); text != "" {
				if !yield(text, nil) {
					return
				}
			}
		}
	}
}

func generationConfig(req domain.GenerationRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(req.Sampling.Temperature)),
		TopP:        genai.Ptr(float32(req.Sampling.TopP)),
		TopK:        genai.Ptr(float32(req.Sampling.TopK)),
	}
	if req.SystemInstruction != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	return cfg
}

// responseText joins the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil && !p.Thought {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}

// mapError turns SDK failures into HTTPStatusError where the upstream
// answered with an error status, and reports the context error when the
// call was cancelled or timed out.
func mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("gemini: read stream: %w", ctxErr)
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &HTTPStatusError{StatusCode: apiErr.Code, Status: apiErr.Status, Message: apiErr.Message}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return &HTTPStatusError{StatusCode: apiErrPtr.Code, Status: apiErrPtr.Status, Message: apiErrPtr.Message}
	}
	return fmt.Errorf("gemini: stream: %w", err)
}
