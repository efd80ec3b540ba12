// Package credentials stores backend credentials for the CLI in the OS
// keyring and resolves which one a command should use.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/interviewcoach/backend/internal/backend"
)

const keyringService = "interview-coach"

var (
	// ErrNotFound is returned when no credential is stored for a backend.
	ErrNotFound = errors.New("credential not found in keyring")
	// ErrKeyringUnavailable is returned when the OS keyring cannot be used.
	ErrKeyringUnavailable = errors.New("OS keyring is not available")
)

// Source says where a resolved credential came from.
type Source string

const (
	SourceFlag    Source = "flag"
	SourceEnv     Source = "environment"
	SourceKeyring Source = "keyring"
	SourceDefault Source = "default"
)

// EnvVar is the environment variable consulted for id, e.g.
// COACH_GROQ_CREDENTIAL.
func EnvVar(id backend.Identity) string {
	return "COACH_" + strings.ToUpper(string(id)) + "_CREDENTIAL"
}

func Get(id backend.Identity) (string, error) {
	v, err := keyring.Get(keyringService, string(id))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrKeyringUnavailable, err)
	}
	return v, nil
}

func Set(id backend.Identity, credential string) error {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return errors.New("credential cannot be empty")
	}
	if err := keyring.Set(keyringService, string(id), credential); err != nil {
		return fmt.Errorf("failed to store credential in keyring: %w", err)
	}
	return nil
}

func Delete(id backend.Identity) error {
	err := keyring.Delete(keyringService, string(id))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete credential from keyring: %w", err)
	}
	return nil
}

// Resolve picks the credential for id: the flag value, then the
// environment, then the keyring. The local backend needs no credential, so
// for it a miss resolves to "" (the default server URL).
func Resolve(id backend.Identity, flagValue string) (string, Source, error) {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v, SourceFlag, nil
	}
	if v := strings.TrimSpace(os.Getenv(EnvVar(id))); v != "" {
		return v, SourceEnv, nil
	}
	v, err := Get(id)
	switch {
	case err == nil:
		return v, SourceKeyring, nil
	case id == backend.Ollama:
		return "", SourceDefault, nil
	case errors.Is(err, ErrNotFound):
		return "", "", fmt.Errorf("no credential for %s: pass --credential, set %s, or run: coachctl login --backend %s", id, EnvVar(id), id)
	default:
		return "", "", err
	}
}
