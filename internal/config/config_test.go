package config

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	cfg, err := LoadFromEnv(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.LaneCount)
	assert.Equal(t, 5, cfg.Concurrency)
	assert.Equal(t, 30*time.Second, cfg.DefaultTimeout)
	assert.Equal(t, 2*time.Second, cfg.FlushInterval)
	assert.Equal(t, 100, cfg.FlushBatchSize)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DISPATCHER_LANES", "8")
	t.Setenv("DISPATCHER_CONCURRENCY", "2")
	t.Setenv("DISPATCHER_DEFAULT_TIMEOUT", "5s")

	cfg, err := LoadFromEnv(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.LaneCount)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.DefaultTimeout)
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "zero lanes", key: "DISPATCHER_LANES", value: "0"},
		{name: "negative concurrency", key: "DISPATCHER_CONCURRENCY", value: "-1"},
		{name: "zero flush batch", key: "DISPATCHER_FLUSH_BATCH", value: "0"},
		{name: "zero default timeout", key: "DISPATCHER_DEFAULT_TIMEOUT", value: "0s"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := LoadFromEnv(context.Background())
			assert.Error(t, err)
		})
	}
}
