package backend

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// anthropicClient wraps the Messages API. The SDK's own retries are disabled;
// retry policy belongs to the caller.
type anthropicClient struct {
	baseURL string
	client  anthropic.Client
}

func newAnthropicClient(apiKey, baseURL string, httpClient *http.Client) *anthropicClient {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(httpClient),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &anthropicClient{baseURL: baseURL, client: anthropic.NewClient(opts...)}
}

func (c *anthropicClient) complete(ctx context.Context, r Request) (string, error) {
	maxTokens := int64(r.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(r.Model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(r.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(r.Prompt)),
		},
	}
	if r.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: r.SystemPrompt}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", c.classify(err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

func (c *anthropicClient) classify(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		detail := truncate(strings.TrimSpace(apiErr.Error()), detailLimit)
		switch apiErr.StatusCode {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &AuthenticationError{Backend: Anthropic, Detail: detail}
		default:
			return &BackendError{Backend: Anthropic, Status: apiErr.StatusCode, Detail: detail, Wrapped: err}
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &ConnectionError{Backend: Anthropic, Endpoint: c.baseURL, Wrapped: err}
	}
	return &BackendError{Backend: Anthropic, Detail: "unreadable response", Wrapped: err}
}
