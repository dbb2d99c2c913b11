package manager

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eosc-beyond/resource-catalogue-server/internal/auth"
	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store/inmemory"
)

const testCatalogue = "eosc"

var (
	adminIdent = auth.Identity{
		UserID:   "admin-1",
		Email:    "admin@example.org",
		FullName: "Ada Admin",
		Roles:    []string{auth.RoleAdmin},
	}
	providerIdent = auth.Identity{
		UserID:   "owner-1",
		Email:    "owner@example.org",
		FullName: "Olive Owner",
		Roles:    []string{auth.RoleProvider},
	}
)

type fixture struct {
	services  *ResourceManager[*bundle.Service]
	providers *ProviderManager
}

// newFixture wires a service manager against an in-memory store, with one
// approved and active provider already onboarded.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	providerRepo := inmemory.New(func(b *bundle.Bundle[*bundle.Provider]) map[string]string {
		return bundle.IndexFields(b)
	})
	providers := NewProviderManager(testCatalogue, providerRepo, nil)

	serviceRepo := inmemory.New(func(b *bundle.Bundle[*bundle.Service]) map[string]string {
		return bundle.IndexFields(b)
	})
	services := New(bundle.KindService, testCatalogue, serviceRepo, providers, nil)

	_, err := providers.Add(ctx, providerIdent, &bundle.Bundle[*bundle.Provider]{
		Payload: &bundle.Provider{ID: "prov-1", Name: "Provider One"},
	})
	require.NoError(t, err)
	_, err = providers.Verify(ctx, adminIdent, "prov-1", bundle.KindProvider.States.Approved, true)
	require.NoError(t, err)

	return &fixture{services: services, providers: providers}
}

func serviceBundle(id string) *bundle.Bundle[*bundle.Service] {
	return &bundle.Bundle[*bundle.Service]{
		Payload: &bundle.Service{ID: id, Name: "Service " + id, ResourceOrganisation: "prov-1"},
	}
}

func TestAddAssignsLifecycleDefaults(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	b, err := f.services.Add(ctx, providerIdent, &bundle.Bundle[*bundle.Service]{
		Payload: &bundle.Service{Name: "Compute Service", ResourceOrganisation: "prov-1"},
		Status:  "approved resource", // caller-supplied state is discarded
		Active:  true,
	})
	require.NoError(t, err)

	require.NotEmpty(t, b.ID())
	require.Equal(t, testCatalogue, b.CatalogueID())
	require.Equal(t, bundle.KindService.States.Pending, b.Status)
	require.False(t, b.Active)
	require.False(t, b.Draft)
	require.Equal(t, providerIdent.Email, b.Metadata.RegisteredBy)

	require.NotNil(t, b.LatestOnboardingInfo)
	require.Equal(t, bundle.ActionRegistered, b.LatestOnboardingInfo.ActionType)
	require.Equal(t, "provider", b.LatestOnboardingInfo.UserRole)
}

func TestAddRequiresAuthentication(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.services.Add(context.Background(), auth.Anonymous(), serviceBundle("svc-1"))
	require.ErrorIs(t, err, ErrAccessDenied)
}

func TestAddRejectsUnknownProvider(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.services.Add(context.Background(), providerIdent, &bundle.Bundle[*bundle.Service]{
		Payload: &bundle.Service{Name: "Orphan", ResourceOrganisation: "nope"},
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestAddDuplicateConflicts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)
	_, err = f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
}

func TestVerifyApproveUpdatesProviderTemplate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)

	b, err := f.services.Verify(ctx, adminIdent, "svc-1", bundle.KindService.States.Approved, true)
	require.NoError(t, err)
	require.Equal(t, bundle.KindService.States.Approved, b.Status)
	require.True(t, b.Active)
	require.Equal(t, bundle.ActionApproved, b.LatestOnboardingInfo.ActionType)

	p, err := f.providers.Get(ctx, adminIdent, "prov-1")
	require.NoError(t, err)
	require.Equal(t, bundle.TemplateStatusApproved, p.TemplateStatus)
}

func TestVerifyRejectDeactivates(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)

	b, err := f.services.Verify(ctx, adminIdent, "svc-1", bundle.KindService.States.Rejected, true)
	require.NoError(t, err)
	require.Equal(t, bundle.KindService.States.Rejected, b.Status)
	require.False(t, b.Active, "rejection always deactivates")
	require.Equal(t, bundle.ActionRejected, b.LatestOnboardingInfo.ActionType)

	p, err := f.providers.Get(ctx, adminIdent, "prov-1")
	require.NoError(t, err)
	require.Equal(t, bundle.TemplateStatusRejected, p.TemplateStatus)
}

func TestVerifyAccessAndVocabulary(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)

	_, err = f.services.Verify(ctx, providerIdent, "svc-1", bundle.KindService.States.Approved, true)
	require.ErrorIs(t, err, ErrAccessDenied)

	_, err = f.services.Verify(ctx, adminIdent, "svc-1", "approved provider", true)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestPublishGuards(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)

	// Pending and inactive: no activity toggles allowed.
	_, err = f.services.Publish(ctx, providerIdent, "svc-1", true)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.services.Verify(ctx, adminIdent, "svc-1", bundle.KindService.States.Approved, false)
	require.NoError(t, err)

	b, err := f.services.Publish(ctx, providerIdent, "svc-1", true)
	require.NoError(t, err)
	require.True(t, b.Active)
	require.Equal(t, bundle.ActionActivated, b.LatestUpdateInfo.ActionType)

	// Deactivate the owning provider: the service can no longer activate.
	_, err = f.services.Publish(ctx, providerIdent, "svc-1", false)
	require.NoError(t, err)
	_, err = f.providers.Publish(ctx, adminIdent, "prov-1", false)
	require.NoError(t, err)

	_, err = f.services.Publish(ctx, providerIdent, "svc-1", true)
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)
}

func TestSuspendIsIdempotent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)

	b, err := f.services.Suspend(ctx, adminIdent, "svc-1", true)
	require.NoError(t, err)
	require.True(t, b.Suspended)
	require.Equal(t, bundle.ActionSuspended, b.LatestUpdateInfo.ActionType)
	entries := len(b.LoggingInfo)

	b, err = f.services.Suspend(ctx, adminIdent, "svc-1", true)
	require.NoError(t, err)
	require.Len(t, b.LoggingInfo, entries, "repeated suspension must not append entries")
}

func TestAuditRecordsOutcome(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)

	_, err = f.services.Audit(ctx, adminIdent, "svc-1", "", "approved")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	b, err := f.services.Audit(ctx, adminIdent, "svc-1", "metadata incomplete", bundle.ActionInvalid)
	require.NoError(t, err)
	require.Equal(t, bundle.ActionInvalid, b.LatestAuditInfo.ActionType)
	require.Equal(t, bundle.AuditStateInvalidNotUpdated, b.AuditState())
}

func TestChangeProvider(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.providers.Add(ctx, providerIdent, &bundle.Bundle[*bundle.Provider]{
		Payload: &bundle.Provider{ID: "prov-2", Name: "Provider Two"},
	})
	require.NoError(t, err)

	_, err = f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)

	// Target provider still pending: refuse the move.
	_, err = f.services.ChangeProvider(ctx, adminIdent, "svc-1", "prov-2", "handover")
	var cerr *ConflictError
	require.ErrorAs(t, err, &cerr)

	_, err = f.providers.Verify(ctx, adminIdent, "prov-2", bundle.KindProvider.States.Approved, true)
	require.NoError(t, err)

	b, err := f.services.ChangeProvider(ctx, adminIdent, "svc-1", "prov-2", "handover")
	require.NoError(t, err)
	require.Equal(t, "prov-2", b.Payload.GetProviderID())
	require.Equal(t, bundle.ActionMoved, b.LatestUpdateInfo.ActionType)
}

func TestGetAllVisibility(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	for i := 1; i <= 2; i++ {
		_, err := f.services.Add(ctx, providerIdent, serviceBundle(fmt.Sprintf("svc-%d", i)))
		require.NoError(t, err)
	}
	_, err := f.services.Verify(ctx, adminIdent, "svc-1", bundle.KindService.States.Approved, true)
	require.NoError(t, err)

	public, err := f.services.GetAll(ctx, auth.Anonymous(), store.NewFacetFilter())
	require.NoError(t, err)
	require.Equal(t, 1, public.Total)
	require.Equal(t, "svc-1", public.Results[0].ID())

	all, err := f.services.GetAll(ctx, adminIdent, store.NewFacetFilter())
	require.NoError(t, err)
	require.Equal(t, 2, all.Total)
}

func TestGetVisibility(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)

	// Pending resources read as not found for anonymous callers, and the
	// lifecycle log with its submitter details never leaks.
	_, err = f.services.Get(ctx, auth.Anonymous(), "svc-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	b, err := f.services.Get(ctx, providerIdent, "svc-1")
	require.NoError(t, err)
	require.Equal(t, bundle.KindService.States.Pending, b.Status)

	_, err = f.services.Verify(ctx, adminIdent, "svc-1", bundle.KindService.States.Approved, true)
	require.NoError(t, err)
	b, err = f.services.Get(ctx, auth.Anonymous(), "svc-1")
	require.NoError(t, err)
	require.True(t, b.Active)

	// Suspension hides it again.
	_, err = f.services.Suspend(ctx, adminIdent, "svc-1", true)
	require.NoError(t, err)
	_, err = f.services.Get(ctx, auth.Anonymous(), "svc-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	// Drafts stay invisible to everyone but admins.
	draft, err := f.services.AddDraft(ctx, providerIdent, &bundle.Bundle[*bundle.Service]{
		Payload: &bundle.Service{Name: "WIP", ResourceOrganisation: "prov-1"},
	})
	require.NoError(t, err)
	_, err = f.services.Get(ctx, providerIdent, draft.ID())
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.services.Get(ctx, adminIdent, draft.ID())
	require.NoError(t, err)
}

func TestDraftLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	draft, err := f.services.AddDraft(ctx, providerIdent, &bundle.Bundle[*bundle.Service]{
		Payload: &bundle.Service{Name: "WIP", ResourceOrganisation: "prov-1"},
	})
	require.NoError(t, err)
	require.True(t, draft.Draft)
	require.Empty(t, draft.Status)

	// Drafts stay out of non-admin listings.
	page, err := f.services.GetAll(ctx, providerIdent, store.NewFacetFilter())
	require.NoError(t, err)
	require.Zero(t, page.Total)

	draft.Payload.Name = "Finished Service"
	_, err = f.services.UpdateDraft(ctx, providerIdent, draft)
	require.NoError(t, err)

	b, err := f.services.TransformToNonDraft(ctx, providerIdent, draft.ID())
	require.NoError(t, err)
	require.False(t, b.Draft)
	require.Equal(t, bundle.KindService.States.Pending, b.Status)
	require.Equal(t, bundle.TypeOnboard, b.LatestOnboardingInfo.Type)

	// The lifecycle operations refuse to treat it as a draft afterwards.
	_, err = f.services.UpdateDraft(ctx, providerIdent, b)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
}

func TestDeleteDraftLeavesNoTrace(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	draft, err := f.services.AddDraft(ctx, providerIdent, &bundle.Bundle[*bundle.Service]{
		Payload: &bundle.Service{Name: "WIP", ResourceOrganisation: "prov-1"},
	})
	require.NoError(t, err)

	require.NoError(t, f.services.DeleteDraft(ctx, providerIdent, draft.ID()))
	_, err = f.services.Get(ctx, adminIdent, draft.ID())
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestUpdateReplacesPayload(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	services := New(bundle.KindService, testCatalogue,
		inmemory.New(func(b *bundle.Bundle[*bundle.Service]) map[string]string {
			return bundle.IndexFields(b)
		}),
		f.providers, nil,
		WithClock[*bundle.Service](func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}))

	_, err := services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)

	updated := serviceBundle("svc-1")
	updated.Payload.Description = "now with a description"
	b, err := services.Update(ctx, providerIdent, updated, "added description")
	require.NoError(t, err)
	require.Equal(t, "now with a description", b.Payload.Description)
	require.Equal(t, bundle.KindService.States.Pending, b.Status, "update keeps moderation state")
	require.Equal(t, "added description", b.LatestUpdateInfo.Comment)
	require.NotEqual(t, b.Metadata.RegisteredAt, b.Metadata.ModifiedAt)
}

func TestDeleteRequiresRole(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.services.Add(ctx, providerIdent, serviceBundle("svc-1"))
	require.NoError(t, err)

	plain := auth.Identity{UserID: "user-1", Email: "user@example.org", Roles: []string{auth.RoleUser}}
	require.ErrorIs(t, f.services.Delete(ctx, plain, "svc-1"), ErrAccessDenied)

	require.NoError(t, f.services.Delete(ctx, providerIdent, "svc-1"))
	_, err = f.services.Get(ctx, adminIdent, "svc-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}
