package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/mohitkumar/mnet/config"
	"github.com/mohitkumar/mnet/errs"
	"github.com/stretchr/testify/require"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LogConfig{Level: "warn"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "shown", entry["msg"])
	require.Equal(t, "warn", entry["level"])
}

func TestNewDevelopmentUsesConsole(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewWithWriter(config.LogConfig{Level: "debug", Development: true}, &buf)
	require.NoError(t, err)
	logger.Debug("details")
	require.Contains(t, buf.String(), "DEBUG")
	require.Contains(t, buf.String(), "details")
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"})
	require.ErrorIs(t, err, errs.ErrInvalidArgument)
}
