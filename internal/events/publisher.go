package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noonyuu/sugoi-questionnaire/internal/mq"
)

const (
	// TypeFormExtracted is emitted after a form's structure is first persisted.
	TypeFormExtracted = "form.extracted"
	// TypeFormSubmitted is emitted after answers were replayed into the live form.
	TypeFormSubmitted = "form.submitted"
)

// Event is the envelope published for downstream consumers (analytics, the
// conversational front-end's notification stream).
type Event struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Provider   string    `json:"provider"`
	FormID     string    `json:"formId"`
	Questions  int       `json:"questions,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher emits domain events over the message queue. Publication is
// best-effort: a failed publish is logged, never surfaced to the request.
type Publisher struct {
	producer *mq.Producer
	log      *zap.Logger
}

// NewPublisher constructs a Publisher. A nil producer disables publication.
func NewPublisher(producer *mq.Producer, log *zap.Logger) *Publisher {
	return &Publisher{producer: producer, log: log}
}

// FormExtracted publishes a form.extracted event.
func (p *Publisher) FormExtracted(ctx context.Context, provider, formID string, questions int) {
	p.publish(ctx, Event{
		ID:         uuid.NewString(),
		Type:       TypeFormExtracted,
		Provider:   provider,
		FormID:     formID,
		Questions:  questions,
		OccurredAt: time.Now().UTC(),
	})
}

// FormSubmitted publishes a form.submitted event.
func (p *Publisher) FormSubmitted(ctx context.Context, provider, formID string) {
	p.publish(ctx, Event{
		ID:         uuid.NewString(),
		Type:       TypeFormSubmitted,
		Provider:   provider,
		FormID:     formID,
		OccurredAt: time.Now().UTC(),
	})
}

func (p *Publisher) publish(ctx context.Context, event Event) {
	if p == nil || p.producer == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		p.log.Warn("events: marshal failed", zap.String("type", event.Type), zap.Error(err))
		return
	}

	if err := p.producer.Publish(ctx, event.FormID, payload, map[string]string{"event_type": event.Type}); err != nil {
		p.log.Warn("events: publish failed",
			zap.String("type", event.Type),
			zap.String("formId", event.FormID),
			zap.Error(err))
	}
}
