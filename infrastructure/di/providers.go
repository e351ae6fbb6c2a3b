// Package di wires the application together. Providers are consumed
// by google/wire; wire_gen.go holds the generated initializer.
package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscloudwatch "github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"contexthub-backend/application/ports"
	"contexthub-backend/application/services"
	"contexthub-backend/domain/events"
	"contexthub-backend/infrastructure/config"
	"contexthub-backend/infrastructure/messaging/eventbridge"
	dynamorepo "contexthub-backend/infrastructure/persistence/dynamodb"
	"contexthub-backend/infrastructure/persistence/memory"
	"contexthub-backend/interfaces/mcp"
	"contexthub-backend/pkg/extensions"
	"contexthub-backend/pkg/observability"
	"contexthub-backend/pkg/ratelimit"
)

// ProvideLogger creates a new logger instance
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

// ProvideAWSConfig creates AWS configuration
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	return awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.AWSRegion),
	)
}

// ProvideDynamoDBClient creates a DynamoDB client
func ProvideDynamoDBClient(awsCfg aws.Config) *awsdynamodb.Client {
	return awsdynamodb.NewFromConfig(awsCfg)
}

// ProvideEventBridgeClient creates an EventBridge client
func ProvideEventBridgeClient(awsCfg aws.Config) *awseventbridge.Client {
	return awseventbridge.NewFromConfig(awsCfg)
}

// ProvideCloudWatchClient creates a CloudWatch client
func ProvideCloudWatchClient(awsCfg aws.Config) *awscloudwatch.Client {
	return awscloudwatch.NewFromConfig(awsCfg)
}

// ProvideEntryRepository selects the entry store by persistence mode
func ProvideEntryRepository(client *awsdynamodb.Client, cfg *config.Config) ports.EntryRepository {
	if cfg.PersistenceMode == config.PersistenceDynamoDB {
		return dynamorepo.NewEntryRepository(client, cfg.DynamoDBTable, cfg.ProjectIndex, cfg.ArtifactIndex)
	}
	return memory.NewEntryRepository()
}

// ProvideRelationshipRepository selects the relationship store by
// persistence mode
func ProvideRelationshipRepository(client *awsdynamodb.Client, cfg *config.Config) ports.RelationshipRepository {
	if cfg.PersistenceMode == config.PersistenceDynamoDB {
		return dynamorepo.NewRelationshipRepository(client, cfg.DynamoDBTable)
	}
	return memory.NewRelationshipRepository()
}

// ProvideSearcher creates the content searcher
func ProvideSearcher(entries ports.EntryRepository) ports.Searcher {
	return services.NewNaiveSearcher(entries)
}

// ProvideBus creates the MCP event bus
func ProvideBus(logger *zap.Logger) *mcp.Bus {
	return mcp.NewBus(logger)
}

// ProvideExternalPublisher creates the EventBridge publisher, nil when
// EventBridge is disabled
func ProvideExternalPublisher(ebClient *awseventbridge.Client, cfg *config.Config, logger *zap.Logger) *eventbridge.Publisher {
	if !cfg.EnableEventBridge {
		return nil
	}
	return eventbridge.NewPublisher(ebClient, cfg.EventBusName, logger)
}

// ProvideEventPublisher fans domain events out to connected MCP
// clients, and to EventBridge when enabled. Publishing is best-effort
// on both paths.
func ProvideEventPublisher(bus *mcp.Bus, external *eventbridge.Publisher) ports.EventPublisher {
	adapter := &eventPublisherAdapter{bus: bus}
	if external != nil {
		adapter.external = external
	}
	return adapter
}

// eventPublisherAdapter projects domain events onto the MCP bus and
// forwards them to an optional external publisher
type eventPublisherAdapter struct {
	bus      *mcp.Bus
	external ports.EventPublisher
}

func (a *eventPublisherAdapter) Publish(ctx context.Context, event events.DomainEvent) error {
	a.bus.Emit(mcp.Event{
		Type:      event.GetEventType(),
		Timestamp: event.GetTimestamp().UTC().Format(time.RFC3339Nano),
		Data: map[string]interface{}{
			"aggregate_id": event.GetAggregateID(),
			"event":        event,
		},
	})
	if a.external != nil {
		return a.external.Publish(ctx, event)
	}
	return nil
}

// ProvideMetrics creates the metrics recorder. A nil client turns
// every recording into a no-op.
func ProvideMetrics(client *awscloudwatch.Client, cfg *config.Config, logger *zap.Logger) *observability.Metrics {
	if !cfg.EnableMetrics {
		return observability.NewMetrics(cfg.MetricsNamespace, nil, logger)
	}
	namespace := fmt.Sprintf("%s/%s", cfg.MetricsNamespace, cfg.Environment)
	return observability.NewMetrics(namespace, client, logger)
}

// ProvideTracer creates the request tracer
func ProvideTracer(cfg *config.Config) *observability.Tracer {
	return observability.NewTracer("contexthub-backend", cfg.EnableTracing)
}

// ProvideHookManager creates the extension hook manager
func ProvideHookManager() *extensions.HookManager {
	return extensions.NewHookManager()
}

// ProvideRateLimiter creates the per-connection invocation limiter
func ProvideRateLimiter(cfg *config.Config) ratelimit.Limiter {
	return ratelimit.NewTokenBucketLimiter(cfg.RateLimitPerMin, time.Minute/time.Duration(cfg.RateLimitPerMin))
}

// ProvideInMemoryCache creates the entry read cache
func ProvideInMemoryCache() ports.Cache {
	return NewInMemoryCache()
}

// ProvideContextStore creates the context store service
func ProvideContextStore(
	entries ports.EntryRepository,
	relations ports.RelationshipRepository,
	searcher ports.Searcher,
	publisher ports.EventPublisher,
	cache ports.Cache,
	hooks *extensions.HookManager,
	metrics *observability.Metrics,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *services.ContextStore {
	return services.NewContextStore(entries, relations, searcher, publisher, cache, metrics, tracer, logger,
		services.WithHooks(hooks))
}

// ProvideMCPServer creates the MCP protocol server. Protocol domain
// events bypass the bus adapter and go straight to EventBridge, since
// the server already announces them on the bus itself.
func ProvideMCPServer(
	store *services.ContextStore,
	bus *mcp.Bus,
	hooks *extensions.HookManager,
	limiter ratelimit.Limiter,
	metrics *observability.Metrics,
	external *eventbridge.Publisher,
	cfg *config.Config,
	logger *zap.Logger,
) *mcp.Server {
	opts := []mcp.ServerOption{
		mcp.WithRateLimiter(limiter),
		mcp.WithHeartbeatInterval(cfg.HeartbeatInterval),
		mcp.WithMetrics(metrics),
	}
	if external != nil {
		opts = append(opts, mcp.WithEventPublisher(external))
	}
	return mcp.NewServer(store, bus, hooks, logger, opts...)
}
