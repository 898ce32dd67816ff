package utils

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", "json", &buf)
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Str("board_id", "B1").Msg("Board connection state changed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "B1", entry["board_id"])
	assert.Contains(t, entry, "time")
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("debug", "console", &buf)
	require.NoError(t, err)

	logger.Debug().Msg("Received board status")
	assert.Contains(t, buf.String(), "Received board status")
}

func TestNewLogger_InvalidLevel(t *testing.T) {
	_, err := NewLogger("loud", "json", &bytes.Buffer{})
	assert.Error(t, err)
}
