package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kindlecrm/internal/config"
)

func TestLoadConfigRunsValidation(t *testing.T) {
	t.Setenv("PORT", "8181")
	cfg, err := LoadConfig((*config.Config).Validate)
	require.NoError(t, err)
	assert.Equal(t, "8181", cfg.Port)

	boom := errors.New("boom")
	_, err = LoadConfig(func(*config.Config) error { return boom })
	assert.ErrorIs(t, err, boom)
}

func TestSetupLogger(t *testing.T) {
	logger := SetupLogger("debug", "web")
	assert.Equal(t, "web", logger.Component())
}
