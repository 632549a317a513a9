package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080/api", cfg.Remote.BaseURL)
	assert.Equal(t, 12, cfg.Sync.PageSize)
	assert.Equal(t, 5*time.Second, cfg.Sync.FailureCooldown)
	assert.Equal(t, StatsModeAuthoritative, cfg.Sync.StatsMode)
	assert.Equal(t, SearchBackendNone, cfg.Search.Backend)
	assert.Equal(t, 14.0, cfg.Map.FocusZoomThreshold)
	assert.Equal(t, 15.0, cfg.Map.FocusZoom)
	assert.Equal(t, 1500*time.Millisecond, cfg.Map.HighlightDuration)
	assert.InDelta(t, 41.9981, cfg.Map.CenterLatitude, 1e-9)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TOURLY_API_URL", "https://tourly.example/api")
	t.Setenv("SYNC_FAILURE_COOLDOWN", "2500")
	t.Setenv("MAP_HIGHLIGHT_DURATION", "2s")
	t.Setenv("SEARCH_BACKEND", "Typesense")
	t.Setenv("ELASTICSEARCH_ADDRESSES", "http://es1:9200, http://es2:9200")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "https://tourly.example/api", cfg.Remote.BaseURL)
	assert.Equal(t, 2500*time.Millisecond, cfg.Sync.FailureCooldown)
	assert.Equal(t, 2*time.Second, cfg.Map.HighlightDuration)
	assert.Equal(t, SearchBackendTypesense, cfg.Search.Backend)
	assert.Equal(t, []string{"http://es1:9200", "http://es2:9200"}, cfg.Elasticsearch.Addresses)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	t.Setenv("SYNC_PAGE_SIZE", "0")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_RejectsUnknownStatsMode(t *testing.T) {
	t.Setenv("SYNC_STATS_MODE", "sometimes")
	_, err := Load()
	assert.ErrorContains(t, err, "SYNC_STATS_MODE")
}
