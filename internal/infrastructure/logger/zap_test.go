package logger

import (
	"testing"

	"github.com/auditsuite/tasktimer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFallsBackOnBadLevel(t *testing.T) {
	log, err := New(config.LoggerConfig{Level: "chatty", Encoding: "console"})
	require.NoError(t, err)
	assert.True(t, log.Desugar().Core().Enabled(0)) // info
}

func TestNewJSON(t *testing.T) {
	log, err := New(config.LoggerConfig{Level: "warn", Encoding: "json", OutputPaths: []string{"stdout"}})
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(0))
	assert.NotNil(t, log.Named("timer"))
}

func TestNewNop(t *testing.T) {
	log := NewNop()
	log.Infow("nop_ok", "k", "v")
}
