// Package backend calls interchangeable text-generation backends behind one
// request shape. Backend differences live in the Spec capability table and in
// two protocol clients: the OpenAI-compatible chat-completions client and the
// Anthropic Messages client.
package backend

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Request is one generation call. For Ollama the credential optionally holds
// the server URL instead of a key.
type Request struct {
	Credential   string
	Backend      Identity
	Model        string
	Prompt       string
	SystemPrompt string
	Temperature  float64
	MaxTokens    int
}

// Invoker performs one generation call. *Adapter implements it; tests and the
// retry controller depend on the interface.
type Invoker interface {
	Invoke(ctx context.Context, r Request) (string, error)
}

// Options configures an Adapter. Zero values are usable.
type Options struct {
	// LocalURL is the Ollama root used when the credential is blank.
	LocalURL string
	// GenerationTimeout bounds Invoke. Zero leaves generation unbounded.
	GenerationTimeout time.Duration
	HTTPClient        *http.Client
	// BaseURLs overrides catalogue endpoints, mainly for tests and proxies.
	BaseURLs map[Identity]string
	Logger   *zap.Logger
}

// Adapter dispatches requests to the right protocol client.
type Adapter struct {
	localURL          string
	generationTimeout time.Duration
	client            *http.Client
	baseURLs          map[Identity]string
	logger            *zap.Logger
}

var _ Invoker = (*Adapter)(nil)

// NewAdapter creates an adapter from opts.
func NewAdapter(opts Options) *Adapter {
	a := &Adapter{
		localURL:          NormalizeOllamaURL(opts.LocalURL),
		generationTimeout: opts.GenerationTimeout,
		client:            opts.HTTPClient,
		baseURLs:          opts.BaseURLs,
		logger:            opts.Logger,
	}
	if a.client == nil {
		a.client = &http.Client{}
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	return a
}

// localRoot resolves the Ollama server root for a credential.
func (a *Adapter) localRoot(credential string) string {
	if strings.TrimSpace(credential) == "" {
		return a.localURL
	}
	return NormalizeOllamaURL(credential)
}

func (a *Adapter) baseURL(s Spec) string {
	if u, ok := a.baseURLs[s.ID]; ok && u != "" {
		return strings.TrimRight(u, "/")
	}
	return s.BaseURL
}

func (a *Adapter) openAI(s Spec, credential string) *openAIClient {
	if s.ID == Ollama {
		return &openAIClient{id: Ollama, baseURL: a.localRoot(credential) + "/v1", http: a.client}
	}
	return &openAIClient{id: s.ID, baseURL: a.baseURL(s), apiKey: strings.TrimSpace(credential), http: a.client}
}

func (a *Adapter) anthropic(s Spec, credential string) *anthropicClient {
	base := ""
	if u, ok := a.baseURLs[s.ID]; ok {
		base = u
	}
	return newAnthropicClient(strings.TrimSpace(credential), base, a.client)
}

// Invoke sends r to its backend and returns the raw response text. An empty
// model selects the catalogue default.
func (a *Adapter) Invoke(ctx context.Context, r Request) (string, error) {
	s, err := Lookup(r.Backend)
	if err != nil {
		return "", err
	}
	if r.Model == "" {
		r.Model = s.DefaultModel()
	}
	if a.generationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.generationTimeout)
		defer cancel()
	}

	start := time.Now()
	var text string
	switch s.protocol {
	case protocolAnthropic:
		text, err = a.anthropic(s, r.Credential).complete(ctx, r)
	default:
		text, err = a.openAI(s, r.Credential).complete(ctx, r)
	}
	if err != nil {
		return "", err
	}

	a.logger.Debug("generation finished",
		zap.String("backend", string(s.ID)),
		zap.String("model", r.Model),
		zap.Int("chars", len(text)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return text, nil
}

// Verify performs a live credential and connectivity check and returns a
// message suitable for display either way.
func (a *Adapter) Verify(ctx context.Context, credential string, id Identity) (bool, string) {
	s, err := Lookup(id)
	if err != nil {
		return false, capitalize(err.Error())
	}

	ctx, cancel := context.WithTimeout(ctx, verifyTimeout)
	defer cancel()

	switch {
	case s.Discovery:
		names, err := a.ollamaModels(ctx, a.localRoot(credential))
		if err != nil {
			return false, verifyFailure(s, err)
		}
		return true, verifyOllamaMessage(names)
	case s.protocol == protocolAnthropic:
		_, err = a.anthropic(s, credential).complete(ctx, Request{
			Model:     s.verifyModel,
			Prompt:    "Hi",
			MaxTokens: 5,
		})
	default:
		err = a.openAI(s, credential).listModels(ctx)
	}
	if err != nil {
		return false, verifyFailure(s, err)
	}
	return true, "Connected to " + s.Label + "."
}

const verifyDetailLimit = 140

// InvalidKeyMessage is the Verify message for a rejected credential.
const InvalidKeyMessage = "Invalid API key. Please check it and try again."

func verifyFailure(s Spec, err error) string {
	var (
		auth *AuthenticationError
		conn *ConnectionError
	)
	switch {
	case errors.As(err, &auth):
		return InvalidKeyMessage
	case errors.As(err, &conn), errors.Is(err, context.DeadlineExceeded):
		if s.ID == Ollama {
			return "Cannot reach Ollama. Is it running? Start it with: ollama serve"
		}
		return "Cannot reach " + s.Label + ". Check your network connection."
	default:
		return truncate(err.Error(), verifyDetailLimit)
	}
}

// DiscoverModels lists the models installed on the local backend. It never
// fails: an unreachable server or an empty install yields a placeholder entry.
func (a *Adapter) DiscoverModels(ctx context.Context, credential string) []ModelOption {
	ctx, cancel := context.WithTimeout(ctx, discoverTimeout)
	defer cancel()

	names, err := a.ollamaModels(ctx, a.localRoot(credential))
	if err != nil {
		a.logger.Debug("model discovery failed", zap.String("backend", string(Ollama)), zap.Error(err))
		return []ModelOption{NotRunningPlaceholder}
	}
	if len(names) == 0 {
		return []ModelOption{NoModelsPlaceholder}
	}

	out := make([]ModelOption, len(names))
	for i, n := range names {
		out[i] = ModelOption{Label: n, ID: n}
	}
	return out
}

// Models returns the picker entries for id: discovered models for backends
// that support discovery, the static catalogue otherwise.
func (a *Adapter) Models(ctx context.Context, id Identity, credential string) ([]ModelOption, error) {
	s, err := Lookup(id)
	if err != nil {
		return nil, err
	}
	if s.Discovery {
		return a.DiscoverModels(ctx, credential), nil
	}
	return append([]ModelOption(nil), s.Models...), nil
}

// Warmup asks the local backend to keep model resident. It is best effort:
// failures are logged and dropped, and other backends ignore the call.
func (a *Adapter) Warmup(ctx context.Context, id Identity, credential, model string) {
	s, err := Lookup(id)
	if err != nil || !s.KeepWarm {
		return
	}
	if model == "" {
		model = s.DefaultModel()
	}

	ctx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()

	if err := a.ollamaWarmup(ctx, a.localRoot(credential), model); err != nil {
		a.logger.Debug("warmup failed", zap.String("backend", string(id)), zap.String("model", model), zap.Error(err))
	}
}

// Transcribe converts recorded audio to text on a transcription-capable
// backend.
func (a *Adapter) Transcribe(ctx context.Context, audio []byte, filename, credential string, id Identity) (string, error) {
	s, err := Lookup(id)
	if err != nil {
		return "", err
	}
	if !s.Transcription {
		return "", &UnsupportedBackendError{Backend: id, Feature: "audio transcription", Supported: TranscriptionBackends()}
	}
	if filename == "" {
		filename = "answer.wav"
	}

	text, err := a.openAI(s, credential).transcribe(ctx, audio, filename, s.TranscriptionModel)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", &EmptyTranscriptError{Backend: id}
	}
	return text, nil
}
