package backend_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/budget"
)

func closedServerURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	return url
}

func TestNormalizeOllamaURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", backend.DefaultOllamaURL},
		{"   ", backend.DefaultOllamaURL},
		{"localhost:11434", "http://localhost:11434"},
		{"http://localhost:11434/", "http://localhost:11434"},
		{"http://box:11434/v1", "http://box:11434"},
		{"http://box:11434/v1/chat/completions", "http://box:11434"},
		{"http://box:11434/api", "http://box:11434"},
		{"https://box/api/v1/", "https://box"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, backend.NormalizeOllamaURL(tt.in))
		})
	}
}

func TestCatalogue(t *testing.T) {
	all := backend.All()
	require.Len(t, all, 5)

	for _, s := range all {
		assert.NotEmpty(t, s.Models, s.ID)
		assert.NotEmpty(t, s.HelpURL, s.ID)
		assert.NotEmpty(t, s.DefaultModel(), s.ID)
	}

	local, err := backend.Lookup(backend.Ollama)
	require.NoError(t, err)
	assert.Equal(t, budget.ClassLocal, local.Class)
	assert.True(t, local.Discovery)
	assert.True(t, local.KeepWarm)

	assert.ElementsMatch(t, []backend.Identity{backend.Groq, backend.OpenAI}, backend.TranscriptionBackends())

	id, err := backend.Parse(" OpenRouter ")
	require.NoError(t, err)
	assert.Equal(t, backend.OpenRouter, id)

	_, err = backend.Parse("mystery")
	assert.Error(t, err)
}

func TestInvoke_OpenAICompatible(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		MaxTokens   int     `json:"max_tokens"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"{\"ok\":true}"}}]}`)
	}))
	defer srv.Close()

	a := backend.NewAdapter(backend.Options{BaseURLs: map[backend.Identity]string{backend.OpenAI: srv.URL}})
	text, err := a.Invoke(context.Background(), backend.Request{
		Credential:   "sk-test",
		Backend:      backend.OpenAI,
		Prompt:       "grade this",
		SystemPrompt: "Return ONLY valid JSON. No markdown.",
		Temperature:  0.4,
		MaxTokens:    600,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, text)

	assert.Equal(t, "gpt-4o-mini", got.Model, "empty model falls back to the catalogue default")
	assert.InDelta(t, 0.4, got.Temperature, 1e-9)
	assert.Equal(t, 600, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "grade this", got.Messages[1].Content)
}

func TestInvoke_LocalUsesCredentialAsURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"hello"}}]}`)
	}))
	defer srv.Close()

	a := backend.NewAdapter(backend.Options{})
	text, err := a.Invoke(context.Background(), backend.Request{
		Credential: srv.URL + "/v1/chat/completions",
		Backend:    backend.Ollama,
		Model:      "phi3.5",
		Prompt:     "hi",
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", text)
}

func TestInvoke_ErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"Incorrect API key provided"}}`,
			check: func(t *testing.T, err error) {
				var authErr *backend.AuthenticationError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, "Incorrect API key provided", authErr.Detail)
				assert.False(t, backend.Retryable(err))
			},
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"error":"overloaded"}`,
			check: func(t *testing.T, err error) {
				var be *backend.BackendError
				require.ErrorAs(t, err, &be)
				assert.Equal(t, http.StatusInternalServerError, be.Status)
				assert.Equal(t, "overloaded", be.Detail)
				assert.True(t, backend.Retryable(err))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			a := backend.NewAdapter(backend.Options{BaseURLs: map[backend.Identity]string{backend.Groq: srv.URL}})
			_, err := a.Invoke(context.Background(), backend.Request{Credential: "k", Backend: backend.Groq, Prompt: "p"})
			tt.check(t, err)
		})
	}
}

func TestInvoke_UnreachableLocal(t *testing.T) {
	a := backend.NewAdapter(backend.Options{LocalURL: closedServerURL(t)})
	_, err := a.Invoke(context.Background(), backend.Request{Backend: backend.Ollama, Prompt: "p"})

	var connErr *backend.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.False(t, backend.Retryable(err))
	assert.Contains(t, backend.UserMessage(err), "ollama serve")
}

func TestBackendErrorDetailIsBounded(t *testing.T) {
	long := make([]byte, 1000)
	for i := range long {
		long[i] = 'x'
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write(long)
	}))
	defer srv.Close()

	a := backend.NewAdapter(backend.Options{BaseURLs: map[backend.Identity]string{backend.OpenRouter: srv.URL}})
	_, err := a.Invoke(context.Background(), backend.Request{Credential: "k", Backend: backend.OpenRouter, Prompt: "p"})

	var be *backend.BackendError
	require.ErrorAs(t, err, &be)
	assert.LessOrEqual(t, len(be.Detail), 203)
}

func TestInvoke_Anthropic(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "sk-ant", r.Header.Get("X-Api-Key"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "claude-3-haiku-20240307", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-haiku-20240307",
			"content":[{"type":"text","text":"{\"score\": 70}"}],"stop_reason":"end_turn",
			"usage":{"input_tokens":3,"output_tokens":4}}`)
	}))
	defer srv.Close()

	a := backend.NewAdapter(backend.Options{BaseURLs: map[backend.Identity]string{backend.Anthropic: srv.URL}})
	text, err := a.Invoke(context.Background(), backend.Request{Credential: "sk-ant", Backend: backend.Anthropic, Prompt: "p", MaxTokens: 10})
	require.NoError(t, err)
	assert.Equal(t, `{"score": 70}`, text)
}

func TestInvoke_AnthropicUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer srv.Close()

	a := backend.NewAdapter(backend.Options{BaseURLs: map[backend.Identity]string{backend.Anthropic: srv.URL}})
	_, err := a.Invoke(context.Background(), backend.Request{Credential: "bad", Backend: backend.Anthropic, Prompt: "p"})

	var authErr *backend.AuthenticationError
	require.ErrorAs(t, err, &authErr)
}

func TestInvoke_AnthropicUnreadableResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","content":`)
	}))
	defer srv.Close()

	a := backend.NewAdapter(backend.Options{BaseURLs: map[backend.Identity]string{backend.Anthropic: srv.URL}})
	_, err := a.Invoke(context.Background(), backend.Request{Credential: "sk-ant", Backend: backend.Anthropic, Prompt: "p", MaxTokens: 10})

	var be *backend.BackendError
	require.ErrorAs(t, err, &be)
	assert.True(t, backend.Retryable(err))
}

func TestInvoke_AnthropicUnreachable(t *testing.T) {
	a := backend.NewAdapter(backend.Options{BaseURLs: map[backend.Identity]string{backend.Anthropic: closedServerURL(t)}})
	_, err := a.Invoke(context.Background(), backend.Request{Credential: "sk-ant", Backend: backend.Anthropic, Prompt: "p", MaxTokens: 10})

	var connErr *backend.ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.False(t, backend.Retryable(err))
}

func TestVerify_LocalNotRunning(t *testing.T) {
	a := backend.NewAdapter(backend.Options{LocalURL: closedServerURL(t)})

	ok, msg := a.Verify(context.Background(), "", backend.Ollama)
	assert.False(t, ok)
	assert.Contains(t, msg, "ollama serve")
	assert.NotContains(t, msg, "API key")
}

func TestVerify_LocalListsModels(t *testing.T) {
	tests := []struct {
		name string
		tags string
		want string
	}{
		{"none installed", `{"models":[]}`, "ollama pull phi3.5"},
		{"a few", `{"models":[{"name":"phi3.5"},{"name":"llama3.2"}]}`, "phi3.5, llama3.2"},
		{"many", `{"models":[{"name":"a"},{"name":"b"},{"name":"c"},{"name":"d"},{"name":"e"}]}`, "a, b, c +2 more"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/tags", r.URL.Path)
				_, _ = io.WriteString(w, tt.tags)
			}))
			defer srv.Close()

			a := backend.NewAdapter(backend.Options{})
			ok, msg := a.Verify(context.Background(), srv.URL, backend.Ollama)
			assert.True(t, ok)
			assert.Contains(t, msg, tt.want)
		})
	}
}

func TestVerify_CloudInvalidKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := backend.NewAdapter(backend.Options{BaseURLs: map[backend.Identity]string{backend.Groq: srv.URL}})
	ok, msg := a.Verify(context.Background(), "nope", backend.Groq)
	assert.False(t, ok)
	assert.Contains(t, msg, "Invalid API key")
}

func TestDiscoverModels(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		a := backend.NewAdapter(backend.Options{LocalURL: closedServerURL(t)})
		got := a.DiscoverModels(context.Background(), "")
		require.Len(t, got, 1)
		assert.True(t, got[0].Placeholder)
		assert.Equal(t, backend.NotRunningPlaceholder, got[0])
	})

	t.Run("empty", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"models":[]}`)
		}))
		defer srv.Close()

		got := backend.NewAdapter(backend.Options{}).DiscoverModels(context.Background(), srv.URL)
		assert.Equal(t, []backend.ModelOption{backend.NoModelsPlaceholder}, got)
	})

	t.Run("installed", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"models":[{"name":"qwen2.5:7b"}]}`)
		}))
		defer srv.Close()

		got := backend.NewAdapter(backend.Options{}).DiscoverModels(context.Background(), srv.URL)
		assert.Equal(t, []backend.ModelOption{{Label: "qwen2.5:7b", ID: "qwen2.5:7b"}}, got)
	})
}

func TestWarmup(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer srv.Close()

	a := backend.NewAdapter(backend.Options{})
	a.Warmup(context.Background(), backend.Ollama, srv.URL, "phi3.5")
	assert.Equal(t, map[string]string{"model": "phi3.5", "prompt": "", "keep_alive": "10m"}, body)

	// Failures are swallowed.
	a = backend.NewAdapter(backend.Options{LocalURL: closedServerURL(t)})
	a.Warmup(context.Background(), backend.Ollama, "", "phi3.5")
}

func TestTranscribe(t *testing.T) {
	t.Run("unsupported backend", func(t *testing.T) {
		a := backend.NewAdapter(backend.Options{})
		_, err := a.Transcribe(context.Background(), []byte("RIFF"), "a.wav", "k", backend.Anthropic)

		var unsupported *backend.UnsupportedBackendError
		require.ErrorAs(t, err, &unsupported)
		assert.Equal(t, backend.Anthropic, unsupported.Backend)
		assert.Contains(t, unsupported.Error(), "Groq")
		assert.False(t, backend.Retryable(err))
	})

	t.Run("transcript", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/audio/transcriptions", r.URL.Path)
			require.NoError(t, r.ParseMultipartForm(1<<20))
			assert.Equal(t, "whisper-1", r.FormValue("model"))
			_, _ = io.WriteString(w, `{"text":"  I led the migration.  "}`)
		}))
		defer srv.Close()

		a := backend.NewAdapter(backend.Options{BaseURLs: map[backend.Identity]string{backend.OpenAI: srv.URL}})
		text, err := a.Transcribe(context.Background(), []byte("RIFF"), "a.wav", "k", backend.OpenAI)
		require.NoError(t, err)
		assert.Equal(t, "I led the migration.", text)
	})

	t.Run("empty transcript", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"text":"   "}`)
		}))
		defer srv.Close()

		a := backend.NewAdapter(backend.Options{BaseURLs: map[backend.Identity]string{backend.Groq: srv.URL}})
		_, err := a.Transcribe(context.Background(), []byte("RIFF"), "", "k", backend.Groq)

		var empty *backend.EmptyTranscriptError
		assert.ErrorAs(t, err, &empty)
	})
}

func TestRetryable(t *testing.T) {
	assert.False(t, backend.Retryable(nil))
	assert.False(t, backend.Retryable(context.Canceled))
	assert.True(t, backend.Retryable(errors.New("model said no")))
	assert.True(t, backend.Retryable(&backend.BackendError{Backend: backend.Groq, Status: 503}))
}
