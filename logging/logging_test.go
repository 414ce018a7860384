package logging_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"responseready/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("warn", "json", &buf)

	logger.Info().Msg("hidden")
	assert.Zero(t, buf.Len(), "info is below warn")

	logger.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNew_InvalidLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("loud", "json", &buf)

	logger.Debug().Msg("debug")
	logger.Info().Msg("info")
	assert.NotContains(t, buf.String(), "debug")
	assert.Contains(t, buf.String(), "info")
}

func TestAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New("info", "json", &buf)

	logging.Audit(logger, "uid-1", "users/role", "set uid-2 to dispatch")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "audit", entry["event"])
	assert.Equal(t, "uid-1", entry["user_id"])
	assert.Equal(t, "users/role", entry["action"])
	assert.Equal(t, "set uid-2 to dispatch", entry["details"])
}
