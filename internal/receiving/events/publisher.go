package events

import (
	"context"

	"github.com/pharmflow/pharmflow-backend/pkg/logger"
	"github.com/pharmflow/pharmflow-backend/pkg/messaging"
)

// Publisher publishes receiving domain events. A nil Publisher is valid
// and drops all events, so the service layer never has to branch on
// whether messaging is configured.
type Publisher struct {
	pub *messaging.Publisher
	log *logger.Logger
}

// NewPublisher creates a receiving event publisher
func NewPublisher(rmq *messaging.RabbitMQ, log *logger.Logger) (*Publisher, error) {
	pub, err := messaging.NewPublisher(rmq, messaging.ExchangeReceivingEvents, "receiving-service", log)
	if err != nil {
		return nil, err
	}
	return &Publisher{pub: pub, log: log}, nil
}

func (p *Publisher) publish(ctx context.Context, eventType string, data interface{}) {
	if p == nil || p.pub == nil {
		return
	}
	if err := p.pub.Publish(ctx, eventType, data); err != nil {
		p.log.Error().Err(err).Str("event_type", eventType).Msg("failed to publish event")
	}
}

// DocumentCreated publishes a document created event
func (p *Publisher) DocumentCreated(ctx context.Context, e messaging.DocumentCreatedEvent) {
	p.publish(ctx, messaging.EventDocumentCreated, e)
}

// DocumentCompleted publishes a document completed event
func (p *Publisher) DocumentCompleted(ctx context.Context, e messaging.DocumentCompletedEvent) {
	p.publish(ctx, messaging.EventDocumentCompleted, e)
}

// ReturnDocumentCreated publishes a return document created event
func (p *Publisher) ReturnDocumentCreated(ctx context.Context, e messaging.ReturnDocumentCreatedEvent) {
	p.publish(ctx, messaging.EventReturnDocumentCreated, e)
}

// StockReceived publishes a stock received event
func (p *Publisher) StockReceived(ctx context.Context, e messaging.StockReceivedEvent) {
	p.publish(ctx, messaging.EventStockReceived, e)
}
