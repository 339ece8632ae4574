package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("PORT", "")
	t.Setenv("NODE_ENV", "")
	t.Setenv("LLM_ECONOMY_MODEL", "")
	t.Setenv("LLM_DEEP_MODEL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3001, cfg.Port)
	assert.False(t, cfg.Production)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.EconomyModel)
	assert.Equal(t, "gpt-4o", cfg.LLM.HighCapabilityModel)
	assert.Equal(t, 20, cfg.RateLimit.ResearchPerMinute)
	assert.Equal(t, 60, cfg.RateLimit.HistoryPerMinute)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRecognizesProduction(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/app")
	t.Setenv("NODE_ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Production)
}
