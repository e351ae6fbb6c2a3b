// Package eventbridge publishes domain events to an EventBridge bus
// for downstream consumers outside this service.
package eventbridge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge/types"
	"go.uber.org/zap"

	"contexthub-backend/domain/events"
)

const maxBatchSize = 10

// Publisher implements ports.EventPublisher on EventBridge
type Publisher struct {
	client  *eventbridge.Client
	busName string
	source  string
	logger  *zap.Logger
}

// NewPublisher creates an EventBridge publisher
func NewPublisher(client *eventbridge.Client, busName string, logger *zap.Logger) *Publisher {
	return &Publisher{
		client:  client,
		busName: busName,
		source:  events.SourceBackend,
		logger:  logger,
	}
}

// Publish implements ports.EventPublisher
func (p *Publisher) Publish(ctx context.Context, event events.DomainEvent) error {
	return p.PublishBatch(ctx, []events.DomainEvent{event})
}

// PublishBatch sends events in PutEvents batches of up to 10 entries
func (p *Publisher) PublishBatch(ctx context.Context, domainEvents []events.DomainEvent) error {
	if len(domainEvents) == 0 {
		return nil
	}

	entries := make([]types.PutEventsRequestEntry, 0, len(domainEvents))
	for _, event := range domainEvents {
		detail, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("failed to marshal event %s: %w", event.GetEventType(), err)
		}
		entries = append(entries, types.PutEventsRequestEntry{
			EventBusName: aws.String(p.busName),
			Source:       aws.String(p.source),
			DetailType:   aws.String(event.GetEventType()),
			Detail:       aws.String(string(detail)),
			Time:         aws.Time(event.GetTimestamp()),
		})
	}

	for i := 0; i < len(entries); i += maxBatchSize {
		end := i + maxBatchSize
		if end > len(entries) {
			end = len(entries)
		}

		result, err := p.client.PutEvents(ctx, &eventbridge.PutEventsInput{
			Entries: entries[i:end],
		})
		if err != nil {
			return fmt.Errorf("failed to put events: %w", err)
		}
		if result.FailedEntryCount > 0 {
			for _, entry := range result.Entries {
				if entry.ErrorCode != nil {
					p.logger.Warn("EventBridge rejected event",
						zap.String("errorCode", aws.ToString(entry.ErrorCode)),
						zap.String("errorMessage", aws.ToString(entry.ErrorMessage)),
					)
				}
			}
			return fmt.Errorf("eventbridge rejected %d of %d events", result.FailedEntryCount, end-i)
		}
	}

	return nil
}
