package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/jsonrepair"
	"github.com/interviewcoach/backend/internal/retry"
)

// scriptedInvoker returns the queued results in order and records every
// request it receives.
type scriptedInvoker struct {
	results []result
	seen    []backend.Request
}

type result struct {
	text string
	err  error
}

func (s *scriptedInvoker) Invoke(_ context.Context, r backend.Request) (string, error) {
	s.seen = append(s.seen, r)
	next := s.results[0]
	s.results = s.results[1:]
	return next.text, next.err
}

func noSleep(context.Context, time.Duration) error { return nil }

func TestCall_SucceedsOnThirdAttempt(t *testing.T) {
	inv := &scriptedInvoker{results: []result{
		{err: &backend.BackendError{Backend: backend.Groq, Status: 503, Detail: "overloaded"}},
		{err: &backend.BackendError{Backend: backend.Groq, Status: 503, Detail: "overloaded"}},
		{text: `{"score": 80}`},
	}}
	c := retry.New(inv, retry.WithSleep(noSleep))

	text, err := c.Call(context.Background(), backend.Request{Backend: backend.Groq, Prompt: "grade", Temperature: 0.4}, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 80}`, text)

	require.Len(t, inv.seen, 3)
	assert.Less(t, inv.seen[2].Temperature, inv.seen[0].Temperature)
	assert.Equal(t, "grade", inv.seen[0].Prompt)
	assert.Contains(t, inv.seen[2].Prompt, "[Attempt 3: output ONLY valid JSON")
}

func TestCall_AcceptFailureIsRetried(t *testing.T) {
	inv := &scriptedInvoker{results: []result{
		{text: "Sure! Here is your feedback."},
		{text: `{"score": 61}`},
	}}
	c := retry.New(inv, retry.WithSleep(noSleep))

	accept := func(s string) error {
		_, err := jsonrepair.Extract(s)
		return err
	}
	text, err := c.Call(context.Background(), backend.Request{Prompt: "p", Temperature: 0.3}, accept)
	require.NoError(t, err)
	assert.Equal(t, `{"score": 61}`, text)
	assert.Len(t, inv.seen, 2)
}

func TestCall_ExhaustedReturnsLastError(t *testing.T) {
	last := &jsonrepair.MalformedOutputError{Reason: "third"}
	inv := &scriptedInvoker{results: []result{
		{err: &jsonrepair.MalformedOutputError{Reason: "first"}},
		{err: &jsonrepair.MalformedOutputError{Reason: "second"}},
		{err: last},
	}}
	c := retry.New(inv, retry.WithSleep(noSleep))

	_, err := c.Call(context.Background(), backend.Request{Prompt: "p"}, nil)
	assert.Same(t, last, err)
	assert.Len(t, inv.seen, 3)
}

func TestCall_PermanentErrorsAreNotRetried(t *testing.T) {
	for _, permanent := range []error{
		&backend.AuthenticationError{Backend: backend.OpenAI},
		&backend.ConnectionError{Backend: backend.Ollama, Endpoint: "http://localhost:11434"},
		context.Canceled,
	} {
		inv := &scriptedInvoker{results: []result{{err: permanent}, {text: "{}"}}}
		c := retry.New(inv, retry.WithSleep(noSleep))

		_, err := c.Call(context.Background(), backend.Request{Prompt: "p"}, nil)
		assert.True(t, errors.Is(err, permanent))
		assert.Len(t, inv.seen, 1)
	}
}

func TestCall_CancelledDuringDelay(t *testing.T) {
	inv := &scriptedInvoker{results: []result{{err: errors.New("flaky")}, {text: "{}"}}}
	c := retry.New(inv, retry.WithDelay(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Call(ctx, backend.Request{Prompt: "p"}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, inv.seen, 1)
}

func TestCall_MaxAttempts(t *testing.T) {
	inv := &scriptedInvoker{results: []result{{err: errors.New("a")}, {err: errors.New("b")}}}
	c := retry.New(inv, retry.WithSleep(noSleep), retry.WithMaxAttempts(2))

	_, err := c.Call(context.Background(), backend.Request{Prompt: "p"}, nil)
	assert.EqualError(t, err, "b")
}

func TestTransform(t *testing.T) {
	base := backend.Request{Prompt: "p", Temperature: 0.2}

	assert.Equal(t, base, retry.Transform(base, 1))

	second := retry.Transform(base, 2)
	assert.InDelta(t, 0.15, second.Temperature, 1e-9)
	assert.Contains(t, second.Prompt, "[Attempt 2:")

	third := retry.Transform(base, 3)
	assert.InDelta(t, retry.MinTemperature, third.Temperature, 1e-9)

	hot := retry.Transform(backend.Request{Temperature: 0.7}, 3)
	assert.InDelta(t, 0.6, hot.Temperature, 1e-9)

	assert.Equal(t, "p", base.Prompt, "transform must not mutate its input")
}

func TestTransform_NeverRaisesTemperature(t *testing.T) {
	cold := backend.Request{Prompt: "p", Temperature: 0.05}
	for attempt := 2; attempt <= retry.DefaultMaxAttempts; attempt++ {
		assert.InDelta(t, 0.05, retry.Transform(cold, attempt).Temperature, 1e-9, "attempt %d", attempt)
	}
}
