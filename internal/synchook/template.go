package synchook

import (
	"context"
	"fmt"

	"github.com/eosc-beyond/resource-catalogue-server/internal/auth"
	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
	"github.com/eosc-beyond/resource-catalogue-server/internal/events"
)

// ProviderReader is the read side of the provider registry the hook needs.
type ProviderReader interface {
	ProviderBundle(ctx context.Context, id string) (*bundle.Bundle[*bundle.Provider], error)
}

// VerifyFunc re-runs the moderation transition of one kind on behalf of the
// system.
type VerifyFunc func(ctx context.Context, ident auth.Identity, id, status string, active bool) error

// ResourceVerifier pairs a kind with its verify transition.
type ResourceVerifier struct {
	Kind   bundle.Kind
	Verify VerifyFunc
}

// TemplateStatusHook watches resource registrations and updates. When a
// provider whose resource template was never reviewed, or was rejected,
// submits a resource, the resource is pushed back to pending so moderation
// sees it again, which in turn marks the provider's template as pending.
type TemplateStatusHook struct {
	catalogueID string
	providers   ProviderReader
	verifiers   map[string]ResourceVerifier
}

// NewTemplateStatusHook builds the hook for the given resource kinds.
func NewTemplateStatusHook(catalogueID string, providers ProviderReader, verifiers ...ResourceVerifier) *TemplateStatusHook {
	byKind := make(map[string]ResourceVerifier, len(verifiers))
	for _, v := range verifiers {
		byKind[v.Kind.Name] = v
	}
	return &TemplateStatusHook{
		catalogueID: catalogueID,
		providers:   providers,
		verifiers:   byKind,
	}
}

// Name implements events.Handler.
func (h *TemplateStatusHook) Name() string { return "provider-template-status" }

// Handle implements events.Handler. Only registrations and updates of local,
// non-draft resources are of interest.
func (h *TemplateStatusHook) Handle(ctx context.Context, ev events.Event) error {
	if ev.Type != events.TypeRegistered && ev.Type != events.TypeUpdated {
		return nil
	}
	if ev.Draft || ev.CatalogueID != h.catalogueID {
		return nil
	}
	verifier, ok := h.verifiers[ev.Kind]
	if !ok {
		return nil
	}

	provider, err := h.providers.ProviderBundle(ctx, ev.ProviderID)
	if err != nil {
		return fmt.Errorf("failed to load provider %q: %w", ev.ProviderID, err)
	}
	if provider.TemplateStatus != bundle.TemplateStatusNone &&
		provider.TemplateStatus != bundle.TemplateStatusRejected {
		return nil
	}

	if err := verifier.Verify(ctx, auth.System(), ev.ResourceID, verifier.Kind.States.Pending, false); err != nil {
		return fmt.Errorf("failed to reset %s %q to pending: %w", ev.Kind, ev.ResourceID, err)
	}
	return nil
}
