// Package public maintains the read-only public mirror of the catalogue.
// Every approved resource has a sanitized copy under a composite public id,
// kept in step with the private catalogue by the synchronization hooks.
package public

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store"
)

// Mirror maintains the public copies of one document kind. The private
// repository is the authoritative store the lifecycle managers write to; the
// public repository only ever holds sanitized clones.
type Mirror[T bundle.Payload] struct {
	kind    bundle.Kind
	private store.Repository[*bundle.Bundle[T]]
	public  store.Repository[*bundle.Bundle[T]]

	maxWait time.Duration
}

// Option configures a Mirror.
type Option[T bundle.Payload] func(*Mirror[T])

// WithMaxWait bounds how long Create waits for the private document store to
// make a freshly written resource readable.
func WithMaxWait[T bundle.Payload](d time.Duration) Option[T] {
	return func(m *Mirror[T]) { m.maxWait = d }
}

// NewMirror creates the mirror for one kind.
func NewMirror[T bundle.Payload](
	kind bundle.Kind,
	private, public store.Repository[*bundle.Bundle[T]],
	opts ...Option[T],
) *Mirror[T] {
	m := &Mirror[T]{
		kind:    kind,
		private: private,
		public:  public,
		maxWait: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Kind returns the document kind the mirror serves.
func (m *Mirror[T]) Kind() bundle.Kind { return m.kind }

// Create publishes the public copy of a resource. It re-reads the
// authoritative private copy, retrying while the document store catches up
// with the write that triggered the call. Creating a copy that already exists
// is a no-op, so redelivered events are harmless.
func (m *Mirror[T]) Create(ctx context.Context, resourceID string) error {
	b, err := m.waitFor(ctx, resourceID)
	if err != nil {
		return fmt.Errorf("failed to read %s %q for publication: %w", m.kind.Name, resourceID, err)
	}

	clone, err := m.sanitize(b)
	if err != nil {
		return err
	}
	if err := m.public.Add(ctx, clone.ID(), clone); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return nil
		}
		return fmt.Errorf("failed to publish %s %q: %w", m.kind.Name, resourceID, err)
	}

	slog.Info("published public copy", "kind", m.kind.Name, "id", clone.ID())
	return nil
}

// Refresh re-derives the public copy from the current private state. A
// resource without a public copy is left alone: not every update concerns an
// approved resource.
func (m *Mirror[T]) Refresh(ctx context.Context, resourceID string) error {
	b, err := m.private.Get(ctx, resourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Debug("skipping refresh of vanished resource", "kind", m.kind.Name, "id", resourceID)
			return nil
		}
		return fmt.Errorf("failed to read %s %q for refresh: %w", m.kind.Name, resourceID, err)
	}

	clone, err := m.sanitize(b)
	if err != nil {
		return err
	}
	if err := m.public.Update(ctx, clone.ID(), clone); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Debug("no public copy to refresh", "kind", m.kind.Name, "id", clone.ID())
			return nil
		}
		return fmt.Errorf("failed to refresh public %s %q: %w", m.kind.Name, clone.ID(), err)
	}
	return nil
}

// Remove deletes the public copy. Removing a copy that never existed is a
// no-op.
func (m *Mirror[T]) Remove(ctx context.Context, catalogueID, resourceID string) error {
	publicID := bundle.PublicID(catalogueID, resourceID)
	if err := m.public.Delete(ctx, publicID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("failed to remove public %s %q: %w", m.kind.Name, publicID, err)
	}
	slog.Info("removed public copy", "kind", m.kind.Name, "id", publicID)
	return nil
}

// Get returns a public copy by its composite id.
func (m *Mirror[T]) Get(ctx context.Context, publicID string) (*bundle.Bundle[T], error) {
	b, err := m.public.Get(ctx, publicID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("public %s %q: %w", m.kind.Name, publicID, store.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load public %s %q: %w", m.kind.Name, publicID, err)
	}
	return b, nil
}

// Search searches the public copies.
func (m *Mirror[T]) Search(ctx context.Context, filter store.FacetFilter) (store.Paging[*bundle.Bundle[T]], error) {
	page, err := m.public.Search(ctx, filter)
	if err != nil {
		return store.Paging[*bundle.Bundle[T]]{}, fmt.Errorf("failed to search public %s: %w", m.kind.Name, err)
	}
	return page, nil
}

// waitFor reads the private copy, retrying with exponential backoff while the
// document store has not yet made a recent write readable.
func (m *Mirror[T]) waitFor(ctx context.Context, resourceID string) (*bundle.Bundle[T], error) {
	return backoff.Retry(ctx, func() (*bundle.Bundle[T], error) {
		b, err := m.private.Get(ctx, resourceID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, err
			}
			return nil, backoff.Permanent(err)
		}
		return b, nil
	},
		backoff.WithBackOff(backoff.NewExponentialBackOff()),
		backoff.WithMaxElapsedTime(m.maxWait),
	)
}

// sanitize clones a private bundle into its public form: access details
// stripped, the published flag set and the composite public id applied.
func (m *Mirror[T]) sanitize(b *bundle.Bundle[T]) (*bundle.Bundle[T], error) {
	clone, err := bundle.Clone(b)
	if err != nil {
		return nil, err
	}
	clone.Payload.StripAccess()
	clone.Payload.SetID(bundle.PublicID(b.CatalogueID(), b.ID()))
	clone.Metadata.Published = true
	return clone, nil
}
