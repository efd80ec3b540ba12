package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const detailLimit = 200

// AuthenticationError means the backend rejected the credential. Retrying
// cannot fix it.
type AuthenticationError struct {
	Backend Identity
	Detail  string
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("invalid API key for %s: please check it and try again", label(e.Backend))
}

// ConnectionError means the endpoint could not be reached, including the
// case where no local server is running.
type ConnectionError struct {
	Backend  Identity
	Endpoint string
	Wrapped  error
}

func (e *ConnectionError) Error() string {
	if e.Backend == Ollama {
		return fmt.Sprintf("cannot reach Ollama at %s: start it with: ollama serve", e.Endpoint)
	}
	return fmt.Sprintf("cannot reach %s: check your network connection", label(e.Backend))
}

func (e *ConnectionError) Unwrap() error {
	return e.Wrapped
}

// BackendError is any other provider-side failure. Detail is bounded.
type BackendError struct {
	Backend Identity
	Status  int
	Detail  string
	Wrapped error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s request failed (status %d): %s", label(e.Backend), e.Status, e.Detail)
	}
	return fmt.Sprintf("%s request failed: %s", label(e.Backend), e.Detail)
}

func (e *BackendError) Unwrap() error {
	return e.Wrapped
}

// UnsupportedBackendError means the selected backend does not offer a
// feature, such as audio transcription.
type UnsupportedBackendError struct {
	Backend   Identity
	Feature   string
	Supported []Identity
}

func (e *UnsupportedBackendError) Error() string {
	names := make([]string, len(e.Supported))
	for i, id := range e.Supported {
		names[i] = label(id)
	}
	return fmt.Sprintf("%s does not support %s; switch to %s", label(e.Backend), e.Feature, strings.Join(names, " or "))
}

// EmptyTranscriptError means transcription succeeded but produced no text.
type EmptyTranscriptError struct {
	Backend Identity
}

func (e *EmptyTranscriptError) Error() string {
	return "transcription returned no text: please try recording again"
}

// Retryable reports whether err may succeed on another attempt. Credential,
// connectivity and capability failures are permanent for a given request.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var (
		auth        *AuthenticationError
		conn        *ConnectionError
		unsupported *UnsupportedBackendError
	)
	return !errors.As(err, &auth) && !errors.As(err, &conn) && !errors.As(err, &unsupported)
}

// UserMessage renders err for direct display: the likely cause and, where
// there is one, the corrective action.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var (
		auth        *AuthenticationError
		conn        *ConnectionError
		backendErr  *BackendError
		unsupported *UnsupportedBackendError
		empty       *EmptyTranscriptError
	)
	switch {
	case errors.As(err, &auth), errors.As(err, &conn), errors.As(err, &unsupported), errors.As(err, &empty):
		return capitalize(err.Error()) + "."
	case errors.As(err, &backendErr):
		return capitalize(backendErr.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return "The model took too long to respond. Try again or pick a faster model."
	case errors.Is(err, context.Canceled):
		return "The request was cancelled."
	default:
		return capitalize(truncate(err.Error(), detailLimit))
	}
}

// transportError classifies a failed round trip. Context errors pass through
// untouched so callers can tell cancellation from an unreachable endpoint.
func transportError(id Identity, endpoint string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &ConnectionError{Backend: id, Endpoint: endpoint, Wrapped: err}
}

// statusError converts a non-2xx response into the matching error type and
// returns nil otherwise. The body is consumed on error.
func statusError(id Identity, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	detail := providerDetail(body)
	if detail == "" {
		detail = http.StatusText(resp.StatusCode)
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &AuthenticationError{Backend: id, Detail: detail}
	default:
		return &BackendError{Backend: id, Status: resp.StatusCode, Detail: detail}
	}
}

func label(id Identity) string {
	if s, err := Lookup(id); err == nil {
		return s.Label
	}
	return string(id)
}

// providerDetail pulls a readable message out of an error body, falling back
// to the raw body.
func providerDetail(body []byte) string {
	var envelope struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &envelope) == nil && len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(envelope.Error, &nested) == nil && nested.Message != "" {
			return truncate(nested.Message, detailLimit)
		}
		var plain string
		if json.Unmarshal(envelope.Error, &plain) == nil && plain != "" {
			return truncate(plain, detailLimit)
		}
	}
	return truncate(strings.TrimSpace(string(body)), detailLimit)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
