package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"contexthub-backend/infrastructure/config"
)

func TestInitializeContainer_MemoryMode(t *testing.T) {
	cfg := &config.Config{
		ServerAddress:     ":0",
		Environment:       "development",
		PersistenceMode:   config.PersistenceMemory,
		AWSRegion:         "us-east-1",
		MetricsNamespace:  "ContextHub",
		HeartbeatInterval: 30 * time.Second,
		RateLimitPerMin:   120,
	}
	require.NoError(t, cfg.Validate())

	container, err := InitializeContainer(context.Background(), cfg)
	require.NoError(t, err)

	assert.NotNil(t, container.Logger)
	assert.NotNil(t, container.EntryRepo)
	assert.NotNil(t, container.RelRepo)
	assert.NotNil(t, container.Searcher)
	assert.NotNil(t, container.Publisher)
	assert.NotNil(t, container.Cache)
	assert.NotNil(t, container.Store)
	assert.NotNil(t, container.Bus)
	assert.NotNil(t, container.MCPServer)
	assert.NotNil(t, container.Hooks)
	assert.NotNil(t, container.RateLimiter)
	assert.NotNil(t, container.Metrics)
	assert.NotNil(t, container.Tracer)
}
