package rabbitmq

import (
	"time"

	"github.com/apex/log"
	"github.com/google/uuid"

	"report-case-service/metrics"
	"report-case-service/models"
)

// RoutingPublisher is satisfied by *Publisher
type RoutingPublisher interface {
	PublishWithRoutingKey(routingKey string, message interface{}) error
}

// CaseEvents turns case transitions into published events. A nil
// publisher turns every Emit into a no-op, so the service runs without a
// broker. Publishing is best-effort and never fails the caller.
type CaseEvents struct {
	pub RoutingPublisher
	now func() time.Time
}

func NewCaseEvents(pub RoutingPublisher) *CaseEvents {
	return &CaseEvents{pub: pub, now: time.Now}
}

// Emit publishes an event of eventType for c with routing key eventType
func (e *CaseEvents) Emit(eventType string, c *models.Case, actorID string) {
	if e == nil || e.pub == nil || c == nil {
		return
	}
	ev := models.CaseEvent{
		EventID:    uuid.NewString(),
		Type:       eventType,
		CaseID:     c.ID,
		ReporterID: c.ReporterID,
		TargetID:   c.TargetID,
		ActorID:    actorID,
		OccurredAt: e.now().UTC(),
	}
	if err := e.pub.PublishWithRoutingKey(eventType, ev); err != nil {
		metrics.EventPublishErrorsTotal.Inc()
		log.WithFields(log.Fields{"case": c.ID, "type": eventType}).Errorf("Failed to publish case event: %v", err)
		return
	}
	log.WithFields(log.Fields{"case": c.ID, "type": eventType}).Debug("Published case event")
}
