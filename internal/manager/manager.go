// Package manager implements the resource lifecycle of the catalogue: the
// draft workspace, the onboarding state machine, moderation actions and the
// event emission the synchronization hooks subscribe to.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/eosc-beyond/resource-catalogue-server/internal/auth"
	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
	"github.com/eosc-beyond/resource-catalogue-server/internal/events"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store"
)

// providerRegistry is the view of the provider manager a resource manager
// needs: existence checks and template-status bookkeeping.
type providerRegistry interface {
	ProviderBundle(ctx context.Context, id string) (*bundle.Bundle[*bundle.Provider], error)
	SetTemplateStatus(ctx context.Context, id, status string) error
}

// ResourceManager runs the lifecycle of one document kind. One instantiation
// serves services, another datasources, and so on; the provider manager embeds
// an instantiation with no provider registry of its own.
type ResourceManager[T bundle.Payload] struct {
	kind        bundle.Kind
	catalogueID string
	repo        store.Repository[*bundle.Bundle[T]]
	providers   providerRegistry
	bus         *events.Bus

	now   func() time.Time
	newID func() string
}

// Option configures a ResourceManager.
type Option[T bundle.Payload] func(*ResourceManager[T])

// WithClock overrides the time source, for tests.
func WithClock[T bundle.Payload](now func() time.Time) Option[T] {
	return func(m *ResourceManager[T]) { m.now = now }
}

// WithIDGenerator overrides id assignment, for tests.
func WithIDGenerator[T bundle.Payload](gen func() string) Option[T] {
	return func(m *ResourceManager[T]) { m.newID = gen }
}

// New creates a manager for one kind. providers may be nil only for the
// provider kind itself.
func New[T bundle.Payload](
	kind bundle.Kind,
	catalogueID string,
	repo store.Repository[*bundle.Bundle[T]],
	providers providerRegistry,
	bus *events.Bus,
	opts ...Option[T],
) *ResourceManager[T] {
	m := &ResourceManager[T]{
		kind:        kind,
		catalogueID: catalogueID,
		repo:        repo,
		providers:   providers,
		bus:         bus,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Kind returns the document kind the manager serves.
func (m *ResourceManager[T]) Kind() bundle.Kind { return m.kind }

// Add registers a new resource: it enters the catalogue pending and inactive,
// with an onboard/registered entry opening its lifecycle log.
func (m *ResourceManager[T]) Add(ctx context.Context, ident auth.Identity, b *bundle.Bundle[T]) (*bundle.Bundle[T], error) {
	if ident.IsAnonymous() {
		return nil, ErrAccessDenied
	}
	if err := m.prepare(ctx, b); err != nil {
		return nil, err
	}

	b.Status = m.kind.States.Pending
	b.Active = false
	b.Suspended = false
	b.Draft = false
	if m.providers == nil {
		// Providers carry the template-status aggregate from birth.
		b.TemplateStatus = bundle.TemplateStatusNone
	}
	now := m.now()
	b.Metadata = bundle.NewMetadata(ident.Email, now)
	b.AppendLoggingInfo(bundle.NewLoggingInfo(actorOf(ident), bundle.TypeOnboard, bundle.ActionRegistered, "", now))

	if err := m.repo.Add(ctx, b.ID(), b); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, NewConflictError("%s %q already exists", m.kind.Name, b.ID())
		}
		return nil, fmt.Errorf("failed to add %s %q: %w", m.kind.Name, b.ID(), err)
	}

	slog.Info("registered resource", "kind", m.kind.Name, "id", b.ID(), "catalogue", b.CatalogueID())
	m.emit(events.TypeRegistered, b)
	return b, nil
}

// Update replaces the payload of an existing resource, keeping its moderation
// state, and appends an update/updated entry.
func (m *ResourceManager[T]) Update(ctx context.Context, ident auth.Identity, b *bundle.Bundle[T], comment string) (*bundle.Bundle[T], error) {
	if ident.IsAnonymous() {
		return nil, ErrAccessDenied
	}
	existing, err := m.get(ctx, b.ID())
	if err != nil {
		return nil, err
	}
	if existing.Draft {
		return nil, NewValidationError("%s %q is a draft; use the draft operations", m.kind.Name, b.ID())
	}
	if err := m.validatePayload(ctx, b); err != nil {
		return nil, err
	}

	existing.Payload = b.Payload
	now := m.now()
	existing.Metadata.Touch(ident.Email, now)
	existing.AppendLoggingInfo(bundle.NewLoggingInfo(actorOf(ident), bundle.TypeUpdate, bundle.ActionUpdated, comment, now))

	if err := m.repo.Update(ctx, existing.ID(), existing); err != nil {
		return nil, fmt.Errorf("failed to update %s %q: %w", m.kind.Name, existing.ID(), err)
	}

	slog.Info("updated resource", "kind", m.kind.Name, "id", existing.ID())
	m.emit(events.TypeUpdated, existing)
	return existing, nil
}

// Verify is the admin transition that moves a resource out of pending: it
// sets status and active together and appends the onboarding outcome. It is
// the only legal way to approve or reject a resource, and it keeps the owning
// provider's template status in step.
func (m *ResourceManager[T]) Verify(ctx context.Context, ident auth.Identity, id, status string, active bool) (*bundle.Bundle[T], error) {
	if !ident.IsAdmin() {
		return nil, ErrAccessDenied
	}
	if !m.kind.States.Contains(status) {
		return nil, NewValidationError("%q is not a %s state", status, m.kind.Name)
	}
	b, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := m.now()
	b.Status = status
	templateStatus := ""
	switch status {
	case m.kind.States.Pending:
		b.Active = false
		templateStatus = bundle.TemplateStatusPending
	case m.kind.States.Approved:
		b.Active = active
		b.AppendLoggingInfo(bundle.NewLoggingInfo(actorOf(ident), bundle.TypeOnboard, bundle.ActionApproved, "", now))
		templateStatus = bundle.TemplateStatusApproved
	case m.kind.States.Rejected:
		b.Active = false
		b.AppendLoggingInfo(bundle.NewLoggingInfo(actorOf(ident), bundle.TypeOnboard, bundle.ActionRejected, "", now))
		templateStatus = bundle.TemplateStatusRejected
	}
	b.Metadata.Touch(ident.Email, now)

	if m.providers != nil && b.CatalogueID() == m.catalogueID {
		if err := m.providers.SetTemplateStatus(ctx, b.Payload.GetProviderID(), templateStatus); err != nil {
			return nil, fmt.Errorf("failed to update template status of provider %q: %w", b.Payload.GetProviderID(), err)
		}
	}

	if err := m.repo.Update(ctx, b.ID(), b); err != nil {
		return nil, fmt.Errorf("failed to verify %s %q: %w", m.kind.Name, id, err)
	}

	slog.Info("verified resource", "kind", m.kind.Name, "id", id, "status", status, "active", b.Active)
	m.emit(events.TypeVerified, b)
	return b, nil
}

// Audit appends a compliance-review entry without touching the onboarding
// state.
func (m *ResourceManager[T]) Audit(ctx context.Context, ident auth.Identity, id, comment, actionType string) (*bundle.Bundle[T], error) {
	if !ident.IsAdmin() {
		return nil, ErrAccessDenied
	}
	if actionType != bundle.ActionValid && actionType != bundle.ActionInvalid {
		return nil, NewValidationError("audit action must be %q or %q", bundle.ActionValid, bundle.ActionInvalid)
	}
	b, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}

	b.AppendLoggingInfo(bundle.NewLoggingInfo(actorOf(ident), bundle.TypeAudit, actionType, comment, m.now()))

	if err := m.repo.Update(ctx, b.ID(), b); err != nil {
		return nil, fmt.Errorf("failed to audit %s %q: %w", m.kind.Name, id, err)
	}

	slog.Info("audited resource", "kind", m.kind.Name, "id", id, "action", actionType)
	m.emit(events.TypeStateChanged, b)
	return b, nil
}

// Publish toggles the active flag of an already-moderated resource.
func (m *ResourceManager[T]) Publish(ctx context.Context, ident auth.Identity, id string, active bool) (*bundle.Bundle[T], error) {
	if ident.IsAnonymous() {
		return nil, ErrAccessDenied
	}
	b, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if (b.Status == m.kind.States.Pending || b.Status == m.kind.States.Rejected) && !b.Active {
		return nil, NewValidationError("cannot change activity of %s %q with status %q", m.kind.Name, id, b.Status)
	}
	if active && m.providers != nil {
		provider, err := m.providers.ProviderBundle(ctx, b.Payload.GetProviderID())
		if err != nil {
			return nil, fmt.Errorf("failed to load provider %q: %w", b.Payload.GetProviderID(), err)
		}
		if provider.Status != bundle.KindProvider.States.Approved || !provider.Active {
			return nil, NewConflictError("%s %q does not have an active provider", m.kind.Name, id)
		}
	}

	action := bundle.ActionDeactivated
	if active {
		action = bundle.ActionActivated
	}
	now := m.now()
	b.Active = active
	b.Metadata.Touch(ident.Email, now)
	b.AppendLoggingInfo(bundle.NewLoggingInfo(actorOf(ident), bundle.TypeUpdate, action, "", now))

	if err := m.repo.Update(ctx, b.ID(), b); err != nil {
		return nil, fmt.Errorf("failed to publish %s %q: %w", m.kind.Name, id, err)
	}

	slog.Info("toggled resource activity", "kind", m.kind.Name, "id", id, "active", active)
	m.emit(events.TypeStateChanged, b)
	return b, nil
}

// Suspend toggles the suspension flag, which overrides public visibility
// regardless of status. Suspending an already-suspended resource is a no-op.
func (m *ResourceManager[T]) Suspend(ctx context.Context, ident auth.Identity, id string, suspend bool) (*bundle.Bundle[T], error) {
	if !ident.IsAdmin() {
		return nil, ErrAccessDenied
	}
	b, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if b.Suspended == suspend {
		return b, nil
	}

	action := bundle.ActionUnsuspended
	if suspend {
		action = bundle.ActionSuspended
	}
	now := m.now()
	b.Suspended = suspend
	b.Metadata.Touch(ident.Email, now)
	b.AppendLoggingInfo(bundle.NewLoggingInfo(actorOf(ident), bundle.TypeUpdate, action, "", now))

	if err := m.repo.Update(ctx, b.ID(), b); err != nil {
		return nil, fmt.Errorf("failed to suspend %s %q: %w", m.kind.Name, id, err)
	}

	slog.Info("toggled resource suspension", "kind", m.kind.Name, "id", id, "suspended", suspend)
	m.emit(events.TypeStateChanged, b)
	return b, nil
}

// ChangeProvider reassigns a resource to another provider. Downstream it
// behaves exactly like an update: the public mirror refreshes and the new
// provider's template status is reconsidered by the hooks.
func (m *ResourceManager[T]) ChangeProvider(ctx context.Context, ident auth.Identity, id, newProviderID, comment string) (*bundle.Bundle[T], error) {
	if !ident.IsAdmin() {
		return nil, ErrAccessDenied
	}
	if m.providers == nil {
		return nil, NewValidationError("%s cannot change provider", m.kind.Name)
	}
	b, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	provider, err := m.providers.ProviderBundle(ctx, newProviderID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, NewValidationError("provider %q does not exist", newProviderID)
		}
		return nil, err
	}
	if provider.Status != bundle.KindProvider.States.Approved {
		return nil, NewConflictError("provider %q is not approved", newProviderID)
	}

	now := m.now()
	b.Payload.SetProviderID(newProviderID)
	b.Metadata.Touch(ident.Email, now)
	b.AppendLoggingInfo(bundle.NewLoggingInfo(actorOf(ident), bundle.TypeMove, bundle.ActionMoved, comment, now))

	if err := m.repo.Update(ctx, b.ID(), b); err != nil {
		return nil, fmt.Errorf("failed to move %s %q: %w", m.kind.Name, id, err)
	}

	slog.Info("moved resource", "kind", m.kind.Name, "id", id, "provider", newProviderID)
	m.emit(events.TypeUpdated, b)
	return b, nil
}

// Delete removes a resource. Mirror cleanup is the hooks' business.
func (m *ResourceManager[T]) Delete(ctx context.Context, ident auth.Identity, id string) error {
	if !ident.IsAdmin() && !ident.HasRole(auth.RoleProvider) {
		return ErrAccessDenied
	}
	b, err := m.get(ctx, id)
	if err != nil {
		return err
	}

	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete %s %q: %w", m.kind.Name, id, err)
	}

	slog.Info("deleted resource", "kind", m.kind.Name, "id", id)
	m.emit(events.TypeDeleted, b)
	return nil
}

// Get returns a resource by id, applying the same visibility rules as GetAll:
// anonymous callers only see approved, active, unsuspended entries, and drafts
// stay invisible to everyone but admins. Hidden resources read as not found so
// their existence does not leak.
func (m *ResourceManager[T]) Get(ctx context.Context, ident auth.Identity, id string) (*bundle.Bundle[T], error) {
	b, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ident.IsAdmin() {
		return b, nil
	}
	if b.Draft {
		return nil, fmt.Errorf("%s %q: %w", m.kind.Name, id, store.ErrNotFound)
	}
	if ident.IsAnonymous() {
		if b.Status != m.kind.States.Approved || !b.Active || b.Suspended {
			return nil, fmt.Errorf("%s %q: %w", m.kind.Name, id, store.ErrNotFound)
		}
	}
	return b, nil
}

// GetAll searches the kind with the given filter. Anonymous callers only see
// approved, active, unsuspended, non-draft entries; authenticated non-admin
// callers additionally see nothing in the draft workspace.
func (m *ResourceManager[T]) GetAll(ctx context.Context, ident auth.Identity, filter store.FacetFilter) (store.Paging[*bundle.Bundle[T]], error) {
	if ident.IsAnonymous() {
		filter.AddFilter(bundle.FieldStatus, m.kind.States.Approved)
		filter.AddFilter(bundle.FieldActive, "true")
		filter.AddFilter(bundle.FieldSuspended, "false")
	}
	if !ident.IsAdmin() {
		filter.AddFilter(bundle.FieldDraft, "false")
	}
	page, err := m.repo.Search(ctx, filter)
	if err != nil {
		return store.Paging[*bundle.Bundle[T]]{}, fmt.Errorf("failed to search %s: %w", m.kind.Name, err)
	}
	return page, nil
}

// AddDraft stores a bundle in the draft workspace. Drafts are invisible to
// the hooks and to non-admin searches.
func (m *ResourceManager[T]) AddDraft(ctx context.Context, ident auth.Identity, b *bundle.Bundle[T]) (*bundle.Bundle[T], error) {
	if ident.IsAnonymous() {
		return nil, ErrAccessDenied
	}
	if b.Payload.GetID() == "" {
		b.Payload.SetID(m.newID())
	}
	if b.Payload.GetCatalogueID() == "" {
		b.Payload.SetCatalogueID(m.catalogueID)
	}

	b.Draft = true
	b.Status = ""
	b.Active = false
	now := m.now()
	b.Metadata = bundle.NewMetadata(ident.Email, now)
	b.AppendLoggingInfo(bundle.NewLoggingInfo(actorOf(ident), bundle.TypeDraft, bundle.ActionRegistered, "", now))

	if err := m.repo.Add(ctx, b.ID(), b); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil, NewConflictError("%s %q already exists", m.kind.Name, b.ID())
		}
		return nil, fmt.Errorf("failed to add draft %s %q: %w", m.kind.Name, b.ID(), err)
	}
	return b, nil
}

// UpdateDraft replaces the payload of a draft.
func (m *ResourceManager[T]) UpdateDraft(ctx context.Context, ident auth.Identity, b *bundle.Bundle[T]) (*bundle.Bundle[T], error) {
	if ident.IsAnonymous() {
		return nil, ErrAccessDenied
	}
	existing, err := m.get(ctx, b.ID())
	if err != nil {
		return nil, err
	}
	if !existing.Draft {
		return nil, NewValidationError("%s %q is not a draft", m.kind.Name, b.ID())
	}

	existing.Payload = b.Payload
	existing.Metadata.Touch(ident.Email, m.now())
	if err := m.repo.Update(ctx, existing.ID(), existing); err != nil {
		return nil, fmt.Errorf("failed to update draft %s %q: %w", m.kind.Name, b.ID(), err)
	}
	return existing, nil
}

// DeleteDraft removes a draft without firing lifecycle hooks.
func (m *ResourceManager[T]) DeleteDraft(ctx context.Context, ident auth.Identity, id string) error {
	if ident.IsAnonymous() {
		return ErrAccessDenied
	}
	b, err := m.get(ctx, id)
	if err != nil {
		return err
	}
	if !b.Draft {
		return NewValidationError("%s %q is not a draft", m.kind.Name, id)
	}
	if err := m.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete draft %s %q: %w", m.kind.Name, id, err)
	}
	return nil
}

// TransformToNonDraft moves a draft into the onboarding pipeline, with the
// same observable outcome as Add.
func (m *ResourceManager[T]) TransformToNonDraft(ctx context.Context, ident auth.Identity, id string) (*bundle.Bundle[T], error) {
	if ident.IsAnonymous() {
		return nil, ErrAccessDenied
	}
	b, err := m.get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.Draft {
		return nil, NewValidationError("%s %q is not a draft", m.kind.Name, id)
	}
	if err := m.validatePayload(ctx, b); err != nil {
		return nil, err
	}

	now := m.now()
	b.Draft = false
	b.Status = m.kind.States.Pending
	b.Active = false
	b.Metadata.Touch(ident.Email, now)
	b.AppendLoggingInfo(bundle.NewLoggingInfo(actorOf(ident), bundle.TypeOnboard, bundle.ActionRegistered, "", now))

	if err := m.repo.Update(ctx, b.ID(), b); err != nil {
		return nil, fmt.Errorf("failed to transform draft %s %q: %w", m.kind.Name, id, err)
	}

	slog.Info("transformed draft", "kind", m.kind.Name, "id", id)
	m.emit(events.TypeRegistered, b)
	return b, nil
}

func (m *ResourceManager[T]) get(ctx context.Context, id string) (*bundle.Bundle[T], error) {
	b, err := m.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%s %q: %w", m.kind.Name, id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load %s %q: %w", m.kind.Name, id, err)
	}
	return b, nil
}

// prepare assigns missing identifiers and validates a bundle ahead of Add.
func (m *ResourceManager[T]) prepare(ctx context.Context, b *bundle.Bundle[T]) error {
	if b.Payload.GetID() == "" {
		b.Payload.SetID(m.newID())
	}
	if b.Payload.GetCatalogueID() == "" {
		b.Payload.SetCatalogueID(m.catalogueID)
	}
	return m.validatePayload(ctx, b)
}

func (m *ResourceManager[T]) validatePayload(ctx context.Context, b *bundle.Bundle[T]) error {
	if strings.TrimSpace(b.Payload.GetName()) == "" {
		return NewValidationError("%s name is required", m.kind.Name)
	}
	if m.providers != nil {
		providerID := b.Payload.GetProviderID()
		if providerID == "" {
			return NewValidationError("%s must reference a provider", m.kind.Name)
		}
		if _, err := m.providers.ProviderBundle(ctx, providerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return NewValidationError("provider %q does not exist", providerID)
			}
			return fmt.Errorf("failed to validate provider %q: %w", providerID, err)
		}
	}
	return nil
}

func (m *ResourceManager[T]) emit(eventType events.Type, b *bundle.Bundle[T]) {
	if m.bus == nil {
		return
	}
	raw, err := json.Marshal(b)
	if err != nil {
		slog.Error("failed to snapshot bundle for event", "kind", m.kind.Name, "id", b.ID(), "error", err)
		return
	}
	m.bus.Publish(events.Event{
		Type:        eventType,
		Kind:        m.kind.Name,
		ResourceID:  b.ID(),
		CatalogueID: b.CatalogueID(),
		ProviderID:  b.Payload.GetProviderID(),
		Status:      b.Status,
		Active:      b.Active,
		Suspended:   b.Suspended,
		Draft:       b.Draft,
		Bundle:      raw,
		OccurredAt:  m.now(),
	})
}

// actorOf maps a caller identity to the audit-trail actor record.
func actorOf(ident auth.Identity) bundle.Actor {
	role := "user"
	switch {
	case ident.HasRole(auth.RoleAdmin):
		role = "admin"
	case ident.HasRole(auth.RoleEPOT):
		role = "epot"
	case ident.HasRole(auth.RoleProvider):
		role = "provider"
	}
	if ident.UserID == "system" {
		role = "system"
	}
	return bundle.Actor{Email: ident.Email, FullName: ident.FullName, Role: role}
}
