package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/interviewcoach/backend/internal/budget"
)

var ErrUnknownBackend = errors.New("unknown backend")

// Identity names one interchangeable text-generation backend.
type Identity string

const (
	Groq       Identity = "groq"
	OpenAI     Identity = "openai"
	Anthropic  Identity = "anthropic"
	OpenRouter Identity = "openrouter"
	Ollama     Identity = "ollama"
)

type protocol int

const (
	protocolOpenAI protocol = iota
	protocolAnthropic
)

// ModelOption is one entry of a model picker. Placeholder entries are shown
// when no real model list is available and must not be treated as installed.
type ModelOption struct {
	Label       string `json:"label"`
	ID          string `json:"id"`
	Placeholder bool   `json:"placeholder,omitempty"`
}

// Spec is the capability table entry for one backend. It is looked up once
// per call instead of comparing identity strings throughout the builders.
type Spec struct {
	ID                 Identity
	Label              string
	BaseURL            string // API root; for Ollama the default server root
	HelpURL            string
	Models             []ModelOption
	Class              budget.Class
	Transcription      bool
	TranscriptionModel string
	Discovery          bool // installed models can be listed from a running instance
	KeepWarm           bool // supports the keep-alive warm-up call

	protocol    protocol
	verifyModel string // used by a minimal completion when there is no listing call
}

// DefaultModel is the first catalogue entry.
func (s Spec) DefaultModel() string {
	if len(s.Models) == 0 {
		return ""
	}
	return s.Models[0].ID
}

var specs = []Spec{
	{
		ID:      Groq,
		Label:   "Groq",
		BaseURL: "https://api.groq.com/openai/v1",
		HelpURL: "https://console.groq.com/keys",
		Models: []ModelOption{
			{Label: "Llama 3.3 70B (recommended, free)", ID: "llama-3.3-70b-versatile"},
			{Label: "Llama 3.1 8B (fastest, free)", ID: "llama-3.1-8b-instant"},
			{Label: "Mixtral 8x7B (free)", ID: "mixtral-8x7b-32768"},
		},
		Class:              budget.ClassCloud,
		Transcription:      true,
		TranscriptionModel: "whisper-large-v3",
		protocol:           protocolOpenAI,
	},
	{
		ID:      OpenAI,
		Label:   "OpenAI",
		BaseURL: "https://api.openai.com/v1",
		HelpURL: "https://platform.openai.com/api-keys",
		Models: []ModelOption{
			{Label: "GPT-4o Mini (budget)", ID: "gpt-4o-mini"},
			{Label: "GPT-4o (best)", ID: "gpt-4o"},
			{Label: "GPT-3.5 Turbo", ID: "gpt-3.5-turbo"},
		},
		Class:              budget.ClassCloud,
		Transcription:      true,
		TranscriptionModel: "whisper-1",
		protocol:           protocolOpenAI,
	},
	{
		ID:      Anthropic,
		Label:   "Anthropic",
		BaseURL: "https://api.anthropic.com",
		HelpURL: "https://console.anthropic.com/settings/keys",
		Models: []ModelOption{
			{Label: "Claude 3 Haiku (cheapest)", ID: "claude-3-haiku-20240307"},
			{Label: "Claude 3.5 Sonnet", ID: "claude-3-5-sonnet-20241022"},
		},
		Class:       budget.ClassCloud,
		protocol:    protocolAnthropic,
		verifyModel: "claude-3-haiku-20240307",
	},
	{
		ID:      OpenRouter,
		Label:   "OpenRouter",
		BaseURL: "https://openrouter.ai/api/v1",
		HelpURL: "https://openrouter.ai/keys",
		Models: []ModelOption{
			{Label: "Llama 3.3 70B (free tier)", ID: "meta-llama/llama-3.3-70b-instruct"},
			{Label: "Mistral 7B (budget)", ID: "mistralai/mistral-7b-instruct"},
			{Label: "GPT-4o Mini", ID: "openai/gpt-4o-mini"},
		},
		Class:    budget.ClassCloud,
		protocol: protocolOpenAI,
	},
	{
		ID:      Ollama,
		Label:   "Ollama",
		BaseURL: DefaultOllamaURL,
		HelpURL: "https://ollama.ai/download",
		Models: []ModelOption{
			{Label: "Connect first to see your installed models", ID: "llama3.2", Placeholder: true},
		},
		Class:     budget.ClassLocal,
		Discovery: true,
		KeepWarm:  true,
		protocol:  protocolOpenAI,
	},
}

// All returns the catalogue in display order.
func All() []Spec {
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out
}

// Lookup returns the capability table entry for id.
func Lookup(id Identity) (Spec, error) {
	for _, s := range specs {
		if s.ID == id {
			return s, nil
		}
	}
	return Spec{}, fmt.Errorf("%w %q", ErrUnknownBackend, id)
}

// Parse resolves a user-supplied backend name, ignoring case and spaces.
func Parse(name string) (Identity, error) {
	id := Identity(strings.ToLower(strings.TrimSpace(name)))
	if _, err := Lookup(id); err != nil {
		return "", err
	}
	return id, nil
}

// TranscriptionBackends lists the backends that can transcribe audio.
func TranscriptionBackends() []Identity {
	var ids []Identity
	for _, s := range specs {
		if s.Transcription {
			ids = append(ids, s.ID)
		}
	}
	return ids
}
