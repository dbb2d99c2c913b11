package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
	"github.com/eosc-beyond/resource-catalogue-server/internal/events"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store"
)

// ProviderManager runs the provider lifecycle and additionally keeps the
// template-status aggregate: a per-provider summary of how far its first
// resource template has progressed through moderation.
type ProviderManager struct {
	*ResourceManager[*bundle.Provider]
}

// NewProviderManager creates the manager for the provider kind.
func NewProviderManager(
	catalogueID string,
	repo store.Repository[*bundle.Bundle[*bundle.Provider]],
	bus *events.Bus,
	opts ...Option[*bundle.Provider],
) *ProviderManager {
	return &ProviderManager{
		ResourceManager: New(bundle.KindProvider, catalogueID, repo, nil, bus, opts...),
	}
}

// ProviderBundle loads a provider bundle by id, regardless of its moderation
// state. It satisfies the registry view the resource managers depend on; the
// caller-facing Get applies visibility rules this internal path must not.
func (m *ProviderManager) ProviderBundle(ctx context.Context, id string) (*bundle.Bundle[*bundle.Provider], error) {
	return m.get(ctx, id)
}

// SetTemplateStatus records the moderation progress of the provider's resource
// template. Setting the status it already has is a no-op, so the hooks can
// call it without first reading the provider back.
func (m *ProviderManager) SetTemplateStatus(ctx context.Context, id, status string) error {
	switch status {
	case bundle.TemplateStatusNone, bundle.TemplateStatusPending,
		bundle.TemplateStatusApproved, bundle.TemplateStatusRejected:
	default:
		return NewValidationError("%q is not a template status", status)
	}

	b, err := m.get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("provider %q: %w", id, store.ErrNotFound)
		}
		return err
	}
	if b.TemplateStatus == status {
		return nil
	}

	b.TemplateStatus = status
	b.Metadata.Touch("system", m.now())
	if err := m.repo.Update(ctx, b.ID(), b); err != nil {
		return fmt.Errorf("failed to set template status of provider %q: %w", id, err)
	}

	slog.Info("updated provider template status", "id", id, "templateStatus", status)
	m.emit(events.TypeStateChanged, b)
	return nil
}
