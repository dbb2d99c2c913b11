package synchook

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eosc-beyond/resource-catalogue-server/internal/events"
)

// TopicPublisher is the slice of a messaging connection the hook uses.
// *nats.Conn satisfies it.
type TopicPublisher interface {
	Publish(subject string, data []byte) error
}

// TopicHook forwards lifecycle events to the external message bus so other
// catalogue components (portal, analytics) can react without polling.
type TopicHook struct {
	prefix string
	conn   TopicPublisher
}

// NewTopicHook builds the hook. Subjects are published as
// <prefix>.<kind>.update and <prefix>.<kind>.delete.
func NewTopicHook(prefix string, conn TopicPublisher) *TopicHook {
	return &TopicHook{prefix: prefix, conn: conn}
}

// Name implements events.Handler.
func (h *TopicHook) Name() string { return "topic-publisher" }

// topicMessage is the wire form of a lifecycle notification. It carries the
// full bundle snapshot so subscribers can react without reading back.
type topicMessage struct {
	Type        string          `json:"type"`
	Kind        string          `json:"kind"`
	ResourceID  string          `json:"resourceId"`
	CatalogueID string          `json:"catalogueId"`
	Status      string          `json:"status,omitempty"`
	Active      bool            `json:"active"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	OccurredAt  time.Time       `json:"occurredAt"`
}

// Handle implements events.Handler. Draft events never leave the process.
func (h *TopicHook) Handle(_ context.Context, ev events.Event) error {
	if ev.Draft {
		return nil
	}

	msg, err := json.Marshal(topicMessage{
		Type:        string(ev.Type),
		Kind:        ev.Kind,
		ResourceID:  ev.ResourceID,
		CatalogueID: ev.CatalogueID,
		Status:      ev.Status,
		Active:      ev.Active,
		Payload:     ev.Bundle,
		OccurredAt:  ev.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to encode notification for %s %q: %w", ev.Kind, ev.ResourceID, err)
	}

	subject := h.prefix + "." + ev.Subject()
	if err := h.conn.Publish(subject, msg); err != nil {
		return fmt.Errorf("failed to publish to %q: %w", subject, err)
	}
	return nil
}
