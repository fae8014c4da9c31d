package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LLM_RESPONSE_FORMAT", "")
	t.Setenv("CLASSIFY_BATCH_SIZE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.ClassifyBatchSize)
	assert.Equal(t, 50, cfg.ClassifyModelCap)
	assert.Equal(t, 2*time.Second, cfg.ClassifyRetryCooldown)
	assert.Equal(t, "lines", cfg.LLMResponseFormat)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("LLM_RESPONSE_FORMAT", "json")
	t.Setenv("CLASSIFY_RETRY_COOLDOWN", "3s")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("ENV", "production")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.LLMResponseFormat)
	assert.Equal(t, 3*time.Second, cfg.ClassifyRetryCooldown)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestLoad_RejectsUnknownFormat(t *testing.T) {
	t.Setenv("LLM_RESPONSE_FORMAT", "xml")

	_, err := Load()
	assert.Error(t, err)
}
