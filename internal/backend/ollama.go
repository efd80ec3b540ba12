package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// DefaultOllamaURL is used when the local credential is blank.
const DefaultOllamaURL = "http://localhost:11434"

const (
	keepAlive       = "10m"
	warmupTimeout   = 4 * time.Second
	discoverTimeout = 4 * time.Second
	verifyTimeout   = 6 * time.Second
)

// Placeholder model pickers shown instead of an error.
var (
	NoModelsPlaceholder   = ModelOption{Label: "No models found: run ollama pull phi3.5", ID: "phi3.5", Placeholder: true}
	NotRunningPlaceholder = ModelOption{Label: "Connect Ollama first (ollama serve)", ID: "llama3.2", Placeholder: true}
)

// suffixes users commonly paste along with the server root. Longest first so
// "/v1/chat/completions" is not reduced to "/v1/chat".
var ollamaSuffixes = []string{"/v1/chat/completions", "/api/v1", "/v1", "/api"}

// NormalizeOllamaURL turns whatever the user typed into the server root:
// blank means DefaultOllamaURL, a missing scheme gets http://, and API path
// suffixes are stripped.
func NormalizeOllamaURL(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return DefaultOllamaURL
	}
	u = strings.TrimRight(u, "/")
	for stripped := true; stripped; {
		stripped = false
		for _, suffix := range ollamaSuffixes {
			if strings.HasSuffix(u, suffix) {
				u = strings.TrimRight(strings.TrimSuffix(u, suffix), "/")
				stripped = true
			}
		}
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "http://" + u
	}
	return u
}

type ollamaTags struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// ollamaModels lists installed models from GET <root>/api/tags.
func (a *Adapter) ollamaModels(ctx context.Context, root string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, root+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("create tags request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, transportError(Ollama, root, err)
	}
	defer resp.Body.Close()

	if err := statusError(Ollama, resp); err != nil {
		return nil, err
	}

	var tags ollamaTags
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, &BackendError{Backend: Ollama, Detail: "unreadable model list", Wrapped: err}
	}

	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if m.Name != "" {
			names = append(names, m.Name)
		}
	}
	return names, nil
}

// ollamaWarmup asks the server to load model and keep it resident.
func (a *Adapter) ollamaWarmup(ctx context.Context, root, model string) error {
	body, err := json.Marshal(map[string]string{
		"model":      model,
		"prompt":     "",
		"keep_alive": keepAlive,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, root+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return transportError(Ollama, root, err)
	}
	defer resp.Body.Close()
	return statusError(Ollama, resp)
}

func verifyOllamaMessage(names []string) string {
	if len(names) == 0 {
		return "Connected to Ollama. No models yet: run ollama pull phi3.5"
	}
	shown := names
	if len(shown) > 3 {
		shown = shown[:3]
	}
	msg := "Connected to Ollama. Models: " + strings.Join(shown, ", ")
	if extra := len(names) - len(shown); extra > 0 {
		msg += fmt.Sprintf(" +%d more", extra)
	}
	return msg
}
