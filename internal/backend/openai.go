package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

// openAIClient speaks the chat-completions wire shape shared by every
// OpenAI-compatible backend, including Ollama's /v1 surface.
type openAIClient struct {
	id      Identity
	baseURL string // includes the version segment, e.g. https://api.openai.com/v1
	apiKey  string
	http    *http.Client
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openAIClient) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// complete sends one chat-completions request and returns the raw text.
func (c *openAIClient) complete(ctx context.Context, r Request) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if r.SystemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: r.SystemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: r.Prompt})

	payload, err := json.Marshal(chatRequest{
		Model:       r.Model,
		Messages:    messages,
		Temperature: r.Temperature,
		MaxTokens:   r.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transportError(c.id, c.baseURL, err)
	}
	defer resp.Body.Close()

	if err := statusError(c.id, resp); err != nil {
		return "", err
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &BackendError{Backend: c.id, Detail: "unreadable response", Wrapped: err}
	}
	if len(out.Choices) == 0 {
		return "", &BackendError{Backend: c.id, Detail: "no choices returned"}
	}
	return out.Choices[0].Message.Content, nil
}

// listModels is the cheapest authenticated call: GET /models.
func (c *openAIClient) listModels(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return transportError(c.id, c.baseURL, err)
	}
	defer resp.Body.Close()
	return statusError(c.id, resp)
}

// transcribe posts audio to /audio/transcriptions as multipart form data.
func (c *openAIClient) transcribe(ctx context.Context, audio []byte, filename, model string) (string, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("model", model); err != nil {
		return "", err
	}
	part, err := w.CreateFormFile("file", filename)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audio); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", &body)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", transportError(c.id, c.baseURL, err)
	}
	defer resp.Body.Close()

	if err := statusError(c.id, resp); err != nil {
		return "", err
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &BackendError{Backend: c.id, Detail: "unreadable transcription", Wrapped: err}
	}
	return strings.TrimSpace(out.Text), nil
}
