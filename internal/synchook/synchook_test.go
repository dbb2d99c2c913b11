package synchook

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eosc-beyond/resource-catalogue-server/internal/auth"
	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
	"github.com/eosc-beyond/resource-catalogue-server/internal/events"
	"github.com/eosc-beyond/resource-catalogue-server/internal/public"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store"
	"github.com/eosc-beyond/resource-catalogue-server/internal/store/inmemory"
)

const testCatalogue = "eosc"

func serviceIndexer(b *bundle.Bundle[*bundle.Service]) map[string]string {
	return bundle.IndexFields(b)
}

func serviceEvent(evType events.Type, b *bundle.Bundle[*bundle.Service]) events.Event {
	raw, _ := json.Marshal(b)
	return events.Event{
		Type:        evType,
		Kind:        bundle.KindService.Name,
		ResourceID:  b.ID(),
		CatalogueID: b.CatalogueID(),
		ProviderID:  b.Payload.GetProviderID(),
		Status:      b.Status,
		Active:      b.Active,
		Draft:       b.Draft,
		Bundle:      raw,
		OccurredAt:  time.Now(),
	}
}

func approvedService(id string) *bundle.Bundle[*bundle.Service] {
	b := &bundle.Bundle[*bundle.Service]{
		Payload: &bundle.Service{
			ID:                   id,
			Name:                 "Service " + id,
			ResourceOrganisation: "prov-1",
			CatalogueID:          testCatalogue,
		},
		Status:   bundle.KindService.States.Approved,
		Active:   true,
		Metadata: bundle.Metadata{RegisteredBy: "owner@example.org"},
	}
	b.AppendLoggingInfo(bundle.NewLoggingInfo(
		bundle.Actor{Email: "admin@example.org", Role: "admin"},
		bundle.TypeOnboard, bundle.ActionApproved, "", time.Now()))
	return b
}

func TestMirrorHookPublishesApprovedResources(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	private := inmemory.New(serviceIndexer)
	mirror := public.NewMirror(bundle.KindService, private, inmemory.New(serviceIndexer))
	hook := NewMirrorHook(mirror)

	b := approvedService("svc-1")
	require.NoError(t, private.Add(ctx, "svc-1", b))
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeVerified, b)))

	pub, err := mirror.Get(ctx, "eosc.svc-1")
	require.NoError(t, err)
	require.True(t, pub.Metadata.Published)
}

func TestMirrorHookIgnoresPendingAndDrafts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	private := inmemory.New(serviceIndexer)
	mirror := public.NewMirror(bundle.KindService, private, inmemory.New(serviceIndexer))
	hook := NewMirrorHook(mirror)

	pending := approvedService("svc-1")
	pending.Status = bundle.KindService.States.Pending
	pending.Active = false
	require.NoError(t, private.Add(ctx, "svc-1", pending))
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeRegistered, pending)))

	_, err := mirror.Get(ctx, "eosc.svc-1")
	require.ErrorIs(t, err, store.ErrNotFound)

	draft := approvedService("svc-2")
	draft.Draft = true
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeRegistered, draft)))
	_, err = mirror.Get(ctx, "eosc.svc-2")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMirrorHookRefreshesAndRemoves(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	private := inmemory.New(serviceIndexer)
	mirror := public.NewMirror(bundle.KindService, private, inmemory.New(serviceIndexer))
	hook := NewMirrorHook(mirror)

	b := approvedService("svc-1")
	require.NoError(t, private.Add(ctx, "svc-1", b))
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeVerified, b)))

	b.Payload.Name = "Renamed"
	require.NoError(t, private.Update(ctx, "svc-1", b))
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeUpdated, b)))

	pub, err := mirror.Get(ctx, "eosc.svc-1")
	require.NoError(t, err)
	require.Equal(t, "Renamed", pub.Payload.Name)

	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeDeleted, b)))
	_, err = mirror.Get(ctx, "eosc.svc-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestMirrorHookIgnoresUnknownKinds(t *testing.T) {
	t.Parallel()

	hook := NewMirrorHook()
	ev := serviceEvent(events.TypeVerified, approvedService("svc-1"))
	require.NoError(t, hook.Handle(context.Background(), ev))
}

type fakeProviderReader struct {
	templateStatus string
}

func (r *fakeProviderReader) ProviderBundle(context.Context, string) (*bundle.Bundle[*bundle.Provider], error) {
	return &bundle.Bundle[*bundle.Provider]{
		Payload:        &bundle.Provider{ID: "prov-1", Name: "Provider One", CatalogueID: testCatalogue},
		TemplateStatus: r.templateStatus,
	}, nil
}

type verifyCall struct {
	ident  auth.Identity
	id     string
	status string
	active bool
}

func recordingVerifier(calls *[]verifyCall) ResourceVerifier {
	return ResourceVerifier{
		Kind: bundle.KindService,
		Verify: func(_ context.Context, ident auth.Identity, id, status string, active bool) error {
			*calls = append(*calls, verifyCall{ident: ident, id: id, status: status, active: active})
			return nil
		},
	}
}

func TestTemplateStatusHookResetsFirstTemplate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		templateStatus string
		wantReset      bool
	}{
		{name: "never reviewed", templateStatus: bundle.TemplateStatusNone, wantReset: true},
		{name: "previously rejected", templateStatus: bundle.TemplateStatusRejected, wantReset: true},
		{name: "pending review", templateStatus: bundle.TemplateStatusPending, wantReset: false},
		{name: "already approved", templateStatus: bundle.TemplateStatusApproved, wantReset: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var calls []verifyCall
			hook := NewTemplateStatusHook(testCatalogue,
				&fakeProviderReader{templateStatus: tt.templateStatus},
				recordingVerifier(&calls))

			ev := serviceEvent(events.TypeRegistered, approvedService("svc-1"))
			require.NoError(t, hook.Handle(context.Background(), ev))

			if !tt.wantReset {
				require.Empty(t, calls)
				return
			}
			require.Len(t, calls, 1)
			require.Equal(t, "svc-1", calls[0].id)
			require.Equal(t, bundle.KindService.States.Pending, calls[0].status)
			require.False(t, calls[0].active)
			require.True(t, calls[0].ident.IsAdmin(), "the reset runs with system privileges")
		})
	}
}

func TestTemplateStatusHookScope(t *testing.T) {
	t.Parallel()

	var calls []verifyCall
	hook := NewTemplateStatusHook(testCatalogue,
		&fakeProviderReader{templateStatus: bundle.TemplateStatusNone},
		recordingVerifier(&calls))
	ctx := context.Background()

	// Moderation events themselves never retrigger a reset.
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeVerified, approvedService("svc-1"))))

	draft := approvedService("svc-2")
	draft.Draft = true
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeRegistered, draft)))

	foreign := approvedService("svc-3")
	foreign.Payload.CatalogueID = "other"
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeRegistered, foreign)))

	require.Empty(t, calls)
}

type fakeMailer struct {
	to      [][]string
	subject []string
}

func (m *fakeMailer) Send(to []string, subject, _ string) error {
	m.to = append(m.to, to)
	m.subject = append(m.subject, subject)
	return nil
}

func TestMailHookNotifiesModeratorsOnRegistration(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	hook := NewMailHook(testCatalogue, mailer, []string{"moderators@example.org"})

	ev := serviceEvent(events.TypeRegistered, approvedService("svc-1"))
	require.NoError(t, hook.Handle(context.Background(), ev))

	require.Len(t, mailer.to, 1)
	require.Equal(t, []string{"moderators@example.org"}, mailer.to[0])
	require.Contains(t, mailer.subject[0], "onboarding request")
}

func TestMailHookNotifiesSubmitterOnDecision(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	hook := NewMailHook(testCatalogue, mailer, []string{"moderators@example.org"})

	ev := serviceEvent(events.TypeVerified, approvedService("svc-1"))
	require.NoError(t, hook.Handle(context.Background(), ev))

	require.Len(t, mailer.to, 1)
	require.Equal(t, []string{"owner@example.org"}, mailer.to[0])
	require.Contains(t, mailer.subject[0], "approved")
}

func TestMailHookSkipsInternalTransitions(t *testing.T) {
	t.Parallel()

	mailer := &fakeMailer{}
	hook := NewMailHook(testCatalogue, mailer, []string{"moderators@example.org"})
	ctx := context.Background()

	// Reset to pending: latest onboarding entry is still the registration.
	reset := approvedService("svc-1")
	reset.LoggingInfo = nil
	reset.LatestOnboardingInfo = nil
	reset.AppendLoggingInfo(bundle.NewLoggingInfo(
		bundle.Actor{Email: "owner@example.org"}, bundle.TypeOnboard, bundle.ActionRegistered, "", time.Now()))
	reset.Status = bundle.KindService.States.Pending
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeVerified, reset)))

	draft := approvedService("svc-2")
	draft.Draft = true
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeRegistered, draft)))

	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeStateChanged, approvedService("svc-3"))))

	require.Empty(t, mailer.to)
}

type fakePublisher struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	if p.err != nil {
		return p.err
	}
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return nil
}

func TestTopicHookSubjects(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	hook := NewTopicHook("catalogue", pub)
	ctx := context.Background()

	b := approvedService("svc-1")
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeUpdated, b)))
	require.NoError(t, hook.Handle(ctx, serviceEvent(events.TypeDeleted, b)))

	require.Equal(t, []string{"catalogue.service.update", "catalogue.service.delete"}, pub.subjects)

	var msg struct {
		ResourceID string `json:"resourceId"`
		Payload    struct {
			Payload bundle.Service `json:"payload"`
		} `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(pub.payloads[0], &msg))
	require.Equal(t, "svc-1", msg.ResourceID)
	require.Equal(t, "Service svc-1", msg.Payload.Payload.Name, "messages carry the full bundle snapshot")
}

func TestTopicHookDraftsStayInternal(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	hook := NewTopicHook("catalogue", pub)

	draft := approvedService("svc-1")
	draft.Draft = true
	require.NoError(t, hook.Handle(context.Background(), serviceEvent(events.TypeRegistered, draft)))
	require.Empty(t, pub.subjects)
}

func TestTopicHookPropagatesPublishErrors(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("connection lost")}
	hook := NewTopicHook("catalogue", pub)

	err := hook.Handle(context.Background(), serviceEvent(events.TypeUpdated, approvedService("svc-1")))
	require.ErrorContains(t, err, "connection lost")
}
