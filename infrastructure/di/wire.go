//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"
	"go.uber.org/zap"

	"contexthub-backend/application/ports"
	"contexthub-backend/application/services"
	"contexthub-backend/infrastructure/config"
	"contexthub-backend/interfaces/mcp"
	"contexthub-backend/pkg/extensions"
	"contexthub-backend/pkg/observability"
	"contexthub-backend/pkg/ratelimit"
)

// Container holds all application dependencies
type Container struct {
	Config      *config.Config
	Logger      *zap.Logger
	EntryRepo   ports.EntryRepository
	RelRepo     ports.RelationshipRepository
	Searcher    ports.Searcher
	Publisher   ports.EventPublisher
	Cache       ports.Cache
	Store       *services.ContextStore
	Bus         *mcp.Bus
	MCPServer   *mcp.Server
	Hooks       *extensions.HookManager
	RateLimiter ratelimit.Limiter
	Metrics     *observability.Metrics
	Tracer      *observability.Tracer
}

// SuperSet is the main provider set containing all providers
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideAWSConfig,
	ProvideDynamoDBClient,
	ProvideEventBridgeClient,
	ProvideCloudWatchClient,
	ProvideEntryRepository,
	ProvideRelationshipRepository,
	ProvideSearcher,
	ProvideBus,
	ProvideExternalPublisher,
	ProvideEventPublisher,
	ProvideMetrics,
	ProvideTracer,
	ProvideHookManager,
	ProvideRateLimiter,
	ProvideInMemoryCache,
	ProvideContextStore,
	ProvideMCPServer,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer creates a fully wired container
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	wire.Build(SuperSet)
	return nil, nil // Wire will replace this
}
