package credentials_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"

	"github.com/interviewcoach/backend/internal/backend"
	"github.com/interviewcoach/backend/internal/credentials"
)

func TestSetGetDelete(t *testing.T) {
	keyring.MockInit()

	_, err := credentials.Get(backend.Groq)
	assert.ErrorIs(t, err, credentials.ErrNotFound)

	require.NoError(t, credentials.Set(backend.Groq, "  gsk-123 "))
	v, err := credentials.Get(backend.Groq)
	require.NoError(t, err)
	assert.Equal(t, "gsk-123", v)

	require.NoError(t, credentials.Delete(backend.Groq))
	assert.ErrorIs(t, credentials.Delete(backend.Groq), credentials.ErrNotFound)

	assert.Error(t, credentials.Set(backend.Groq, " "))
}

func TestEnvVar(t *testing.T) {
	assert.Equal(t, "COACH_OPENROUTER_CREDENTIAL", credentials.EnvVar(backend.OpenRouter))
}

func TestResolve_Order(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, credentials.Set(backend.OpenAI, "from-keyring"))

	t.Setenv(credentials.EnvVar(backend.OpenAI), "")
	v, src, err := credentials.Resolve(backend.OpenAI, "")
	require.NoError(t, err)
	assert.Equal(t, "from-keyring", v)
	assert.Equal(t, credentials.SourceKeyring, src)

	t.Setenv(credentials.EnvVar(backend.OpenAI), "from-env")
	v, src, err = credentials.Resolve(backend.OpenAI, "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
	assert.Equal(t, credentials.SourceEnv, src)

	v, src, err = credentials.Resolve(backend.OpenAI, "from-flag")
	require.NoError(t, err)
	assert.Equal(t, "from-flag", v)
	assert.Equal(t, credentials.SourceFlag, src)
}

func TestResolve_Missing(t *testing.T) {
	keyring.MockInit()
	t.Setenv(credentials.EnvVar(backend.Anthropic), "")
	t.Setenv(credentials.EnvVar(backend.Ollama), "")

	_, _, err := credentials.Resolve(backend.Anthropic, "")
	assert.ErrorContains(t, err, "COACH_ANTHROPIC_CREDENTIAL")

	v, src, err := credentials.Resolve(backend.Ollama, "")
	require.NoError(t, err)
	assert.Empty(t, v)
	assert.Equal(t, credentials.SourceDefault, src)
}
