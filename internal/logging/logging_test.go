package logging_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/interviewcoach/backend/internal/logging"
)

func TestNew_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coach.log")
	logger := logging.New(path, true)

	logger.Debug("not in file")
	logger.Info("session started", zap.String("session_id", "abc"))
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "session started", entry["message"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Contains(t, entry, "timestamp")
}

func TestNew_NoFile(t *testing.T) {
	logger := logging.New("", false)
	require.NotNil(t, logger)
	logger.Debug("console only")
}
