package observability

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// Metrics publishes application metrics to CloudWatch.
// All recorders are no-ops when no client is configured, so callers
// never need to guard metric calls.
type Metrics struct {
	namespace string
	client    *cloudwatch.Client
	logger    *zap.Logger
}

// NewMetrics creates a new metrics instance
func NewMetrics(namespace string, client *cloudwatch.Client, logger *zap.Logger) *Metrics {
	return &Metrics{
		namespace: namespace,
		client:    client,
		logger:    logger,
	}
}

// RecordStoreOperation records latency and outcome for a context store operation
func (m *Metrics) RecordStoreOperation(ctx context.Context, operation string, duration time.Duration, err error) {
	if m.client == nil {
		return
	}

	status := "success"
	if err != nil {
		status = "failure"
	}

	dimensions := []types.Dimension{
		{Name: aws.String("Operation"), Value: aws.String(operation)},
		{Name: aws.String("Status"), Value: aws.String(status)},
	}

	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("StoreOperationLatency"),
			Dimensions: dimensions,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(time.Now()),
		},
		{
			MetricName: aws.String("StoreOperationCount"),
			Dimensions: dimensions,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(time.Now()),
		},
	})
}

// RecordToolInvocation records latency and outcome for a protocol tool invocation
func (m *Metrics) RecordToolInvocation(ctx context.Context, tool string, duration time.Duration, status string) {
	if m.client == nil {
		return
	}

	dimensions := []types.Dimension{
		{Name: aws.String("Tool"), Value: aws.String(tool)},
		{Name: aws.String("Status"), Value: aws.String(status)},
	}

	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("ToolInvocationLatency"),
			Dimensions: dimensions,
			Value:      aws.Float64(float64(duration.Milliseconds())),
			Unit:       types.StandardUnitMilliseconds,
			Timestamp:  aws.Time(time.Now()),
		},
		{
			MetricName: aws.String("ToolInvocationCount"),
			Dimensions: dimensions,
			Value:      aws.Float64(1),
			Unit:       types.StandardUnitCount,
			Timestamp:  aws.Time(time.Now()),
		},
	})
}

// RecordConnectionCount records the number of live protocol connections
func (m *Metrics) RecordConnectionCount(ctx context.Context, transport string, count int) {
	if m.client == nil {
		return
	}

	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("ActiveConnections"),
			Dimensions: []types.Dimension{
				{Name: aws.String("Transport"), Value: aws.String(transport)},
			},
			Value:     aws.Float64(float64(count)),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

// RecordEventBroadcast records a broadcast fan-out
func (m *Metrics) RecordEventBroadcast(ctx context.Context, eventType string, delivered int) {
	if m.client == nil {
		return
	}

	m.put(ctx, []types.MetricDatum{
		{
			MetricName: aws.String("EventBroadcastDeliveries"),
			Dimensions: []types.Dimension{
				{Name: aws.String("EventType"), Value: aws.String(eventType)},
			},
			Value:     aws.Float64(float64(delivered)),
			Unit:      types.StandardUnitCount,
			Timestamp: aws.Time(time.Now()),
		},
	})
}

func (m *Metrics) put(ctx context.Context, data []types.MetricDatum) {
	input := &cloudwatch.PutMetricDataInput{
		Namespace:  aws.String(m.namespace),
		MetricData: data,
	}

	if _, err := m.client.PutMetricData(ctx, input); err != nil {
		// Metric delivery failures must not fail the operation being measured
		if m.logger != nil {
			m.logger.Warn("Failed to send metrics", zap.Error(err))
		}
	}
}
