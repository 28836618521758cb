package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"mentor-relay/internal/domain"
)

// chatCompleter is the slice of the openai-go SDK used by Client.
// *openai.ChatCompletionService satisfies it.
type chatCompleter interface {
	New(ctx context.Context, body openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// KeySource returns the API key. It is called until it first succeeds.
type KeySource func(ctx context.Context) (string, error)

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused chat completions client.
type Client struct {
	completions chatCompleter
	keySource   KeySource

	keyMu  sync.Mutex
	apiKey string
}

type settings struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	keySource  KeySource
}

type Option func(*settings)

func WithBaseURL(baseURL string) Option {
	return func(s *settings) {
		s.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(s *settings) {
		s.httpClient = httpClient
	}
}

// WithMaxRetries enables SDK-level retries. The default is none.
func WithMaxRetries(n int) Option {
	return func(s *settings) {
		s.maxRetries = n
	}
}

// WithAPIKey uses a literal API key.
func WithAPIKey(key string) Option {
	key = strings.TrimSpace(key)
	return func(s *settings) {
		s.keySource = func(context.Context) (string, error) {
			if key == "" {
				return "", errors.New("openai: API key is empty")
			}
			return key, nil
		}
	}
}

// WithKeySource resolves the API key lazily, e.g. from SSM, on first use.
func WithKeySource(src KeySource) Option {
	return func(s *settings) {
		s.keySource = src
	}
}

// NewClient creates a Client. One of WithAPIKey or WithKeySource is required.
func NewClient(opts ...Option) (*Client, error) {
	s := settings{httpClient: &http.Client{Timeout: 60 * time.Second}}
	for _, opt := range opts {
		opt(&s)
	}
	if s.keySource == nil {
		return nil, errors.New("openai: an API key or key source is required")
	}

	reqOpts := []option.RequestOption{
		option.WithMaxRetries(s.maxRetries),
		option.WithHTTPClient(s.httpClient),
	}
	if s.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(s.baseURL))
	}
	sdk := openai.NewClient(reqOpts...)

	return &Client{
		completions: &sdk.Chat.Completions,
		keySource:   s.keySource,
	}, nil
}

// resolveAPIKey fetches the key on first use and caches it once it succeeds,
// so a transient parameter store failure is retried on the next request.
func (c *Client) resolveAPIKey(ctx context.Context) (string, error) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	if c.apiKey != "" {
		return c.apiKey, nil
	}
	key, err := c.keySource(ctx)
	if err != nil {
		return "", err
	}
	c.apiKey = key
	return key, nil
}

// Chat sends one completion request and returns the first choice's content.
// maxTokens <= 0 leaves the output length to the provider default.
func (c *Client) Chat(ctx context.Context, model string, maxTokens int64, messages []domain.ChatMessage) (string, error) {
	if model == "" {
		return "", errors.New("openai: model must not be empty")
	}
	if len(messages) == 0 {
		return "", errors.New("openai: messages must not be empty")
	}

	apiKey, err := c.resolveAPIKey(ctx)
	if err != nil {
		return "", fmt.Errorf("openai: resolve API key: %w", err)
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toParams(messages),
	}
	if maxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(maxTokens)
	}

	resp, err := c.completions.New(ctx, params, option.WithAPIKey(apiKey))
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("openai: request failed: %w", statusError(apiErr))
		}
		return "", fmt.Errorf("openai: request failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("openai: no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

func statusError(apiErr *openai.Error) *HTTPStatusError {
	out := &HTTPStatusError{StatusCode: apiErr.StatusCode, Body: apiErr.Message}
	if apiErr.Request != nil && apiErr.Request.URL != nil {
		out.URL = apiErr.Request.URL.String()
	}
	return out
}

func toParams(messages []domain.ChatMessage) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
