package audit

import (
	"context"

	"ai-chatstream-be/internal/pkg/logger"
	pkgEvents "ai-chatstream-be/pkg/events"

	"github.com/google/uuid"
)

// EventPublisher is satisfied by pkg/nats.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, event pkgEvents.Event) error
}

// Publisher abstracts audit event publishing for chat operations
type Publisher interface {
	PublishSessionCreated(ctx context.Context, userId, sessionId uuid.UUID)
	PublishSessionDeleted(ctx context.Context, userId, sessionId uuid.UUID)
	PublishTurn(ctx context.Context, outcome pkgEvents.TurnOutcome)
}

// NatsPublisher implements Publisher on top of the NATS bus. A nil bus turns
// every call into a no-op, and publish failures are only logged.
type NatsPublisher struct {
	publisher EventPublisher
	logger    logger.ILogger
}

func NewNatsPublisher(publisher EventPublisher, logger logger.ILogger) *NatsPublisher {
	return &NatsPublisher{
		publisher: publisher,
		logger:    logger,
	}
}

func (p *NatsPublisher) PublishSessionCreated(ctx context.Context, userId, sessionId uuid.UUID) {
	p.publish(ctx, pkgEvents.NewSessionEvent(pkgEvents.SessionCreated, userId, sessionId))
}

func (p *NatsPublisher) PublishSessionDeleted(ctx context.Context, userId, sessionId uuid.UUID) {
	p.publish(ctx, pkgEvents.NewSessionEvent(pkgEvents.SessionDeleted, userId, sessionId))
}

// PublishTurn emits TURN_COMPLETED or TURN_ABORTED depending on the outcome.
func (p *NatsPublisher) PublishTurn(ctx context.Context, outcome pkgEvents.TurnOutcome) {
	p.publish(ctx, pkgEvents.NewTurnEvent(outcome))
}

func (p *NatsPublisher) publish(ctx context.Context, evt pkgEvents.BaseEvent) {
	if p == nil || p.publisher == nil {
		return
	}

	if err := p.publisher.Publish(ctx, evt); err != nil {
		p.logger.Error("AUDIT", "Failed to publish "+evt.Type+" event", map[string]interface{}{"error": err.Error()})
	}
}
