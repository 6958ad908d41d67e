package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Env)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	assert.Equal(t, "public/dashboard_data.json", cfg.ArtifactPath)
	assert.Equal(t, "2", cfg.TeamID)
	assert.Equal(t, "BUF", cfg.TeamAbbr)
	assert.Equal(t, "Buffalo Bills", cfg.TeamName)

	assert.Equal(t, "gemini-2.5-pro", cfg.GeminiModel)
	assert.Equal(t, 4, cfg.InsightsMaxRetries)
	assert.Equal(t, time.Second, cfg.InsightsBackoffBase)
	assert.Equal(t, 30*time.Second, cfg.ExternalAPITimeout)

	// Secrets have no baked-in defaults
	assert.Empty(t, cfg.OddsAPIKey)
	assert.Empty(t, cfg.GeminiAPIKey)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("TEAM_ABBR", "KC")
	t.Setenv("INSIGHTS_MAX_RETRIES", "2")
	t.Setenv("INSIGHTS_BACKOFF_BASE", "250ms")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "KC", cfg.TeamAbbr)
	assert.Equal(t, 2, cfg.InsightsMaxRetries)
	assert.Equal(t, 250*time.Millisecond, cfg.InsightsBackoffBase)
}
