// Package events carries the in-process lifecycle events: every manager
// mutation publishes exactly one typed event, and the synchronization hooks
// subscribe to them.
package events

import (
	"encoding/json"
	"time"
)

// Type enumerates the lifecycle transitions the managers emit.
type Type string

const (
	// TypeRegistered fires when a bundle enters the catalogue (add or
	// draft transformation).
	TypeRegistered Type = "registered"
	// TypeUpdated fires on update and provider change.
	TypeUpdated Type = "updated"
	// TypeVerified fires on the admin approve/reject transition.
	TypeVerified Type = "verified"
	// TypeStateChanged fires on publish, suspend and audit: operations that
	// alter the bundle without moving it through onboarding.
	TypeStateChanged Type = "state-changed"
	// TypeDeleted fires when a bundle is removed.
	TypeDeleted Type = "deleted"
)

// Event is an immutable snapshot of one lifecycle transition. The bundle is
// carried as JSON so subscribers never share memory with the write path.
type Event struct {
	Type        Type
	Kind        string
	ResourceID  string
	CatalogueID string
	// ProviderID is the owning provider, or "" for provider events.
	ProviderID string
	Status     string
	Active     bool
	Suspended  bool
	Draft      bool
	Bundle     json.RawMessage
	OccurredAt time.Time
}

// Subject is the notification-topic subject of the event.
func (e Event) Subject() string {
	if e.Type == TypeDeleted {
		return e.Kind + ".delete"
	}
	return e.Kind + ".update"
}
