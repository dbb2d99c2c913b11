// Package synchook contains the event subscribers that keep the rest of the
// system in step with the lifecycle managers: the public mirror, the provider
// template-status aggregate, email notifications and the external message
// topic.
package synchook

import (
	"context"

	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
	"github.com/eosc-beyond/resource-catalogue-server/internal/events"
)

// Syncer is the kind-erased view of a public mirror the hook drives.
type Syncer interface {
	Kind() bundle.Kind
	Create(ctx context.Context, resourceID string) error
	Refresh(ctx context.Context, resourceID string) error
	Remove(ctx context.Context, catalogueID, resourceID string) error
}

// MirrorHook keeps the public mirrors of all kinds in step with the private
// catalogue. One subscription serves every kind; events of kinds without a
// registered mirror are ignored.
type MirrorHook struct {
	mirrors map[string]Syncer
}

// NewMirrorHook builds the hook over the given mirrors.
func NewMirrorHook(mirrors ...Syncer) *MirrorHook {
	byKind := make(map[string]Syncer, len(mirrors))
	for _, m := range mirrors {
		byKind[m.Kind().Name] = m
	}
	return &MirrorHook{mirrors: byKind}
}

// Name implements events.Handler.
func (h *MirrorHook) Name() string { return "public-mirror" }

// Handle implements events.Handler. Deletions always reach the mirror;
// registrations and verifications publish once the resource is approved and
// active; everything else refreshes an existing copy in place.
func (h *MirrorHook) Handle(ctx context.Context, ev events.Event) error {
	m, ok := h.mirrors[ev.Kind]
	if !ok || ev.Draft {
		return nil
	}

	switch ev.Type {
	case events.TypeDeleted:
		return m.Remove(ctx, ev.CatalogueID, ev.ResourceID)
	case events.TypeRegistered, events.TypeVerified, events.TypeUpdated, events.TypeStateChanged:
		// An approved, active resource gets a copy if it has none yet;
		// existing copies are re-derived in place either way.
		if ev.Status == m.Kind().States.Approved && ev.Active {
			if err := m.Create(ctx, ev.ResourceID); err != nil {
				return err
			}
		}
		return m.Refresh(ctx, ev.ResourceID)
	}
	return nil
}
