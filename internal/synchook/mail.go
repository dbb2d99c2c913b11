package synchook

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/eosc-beyond/resource-catalogue-server/internal/bundle"
	"github.com/eosc-beyond/resource-catalogue-server/internal/events"
	"github.com/eosc-beyond/resource-catalogue-server/internal/notify"
)

// MailHook emails the moderation team when a resource enters onboarding and
// the submitter when moderation decides.
type MailHook struct {
	catalogueID string
	mailer      notify.Mailer
	moderators  []string
}

// NewMailHook builds the hook. moderators is the moderation-team distribution
// list for onboarding requests.
func NewMailHook(catalogueID string, mailer notify.Mailer, moderators []string) *MailHook {
	return &MailHook{
		catalogueID: catalogueID,
		mailer:      mailer,
		moderators:  moderators,
	}
}

// Name implements events.Handler.
func (h *MailHook) Name() string { return "mail-notifications" }

// mailView is the slice of the event snapshot the notifications need.
type mailView struct {
	Payload struct {
		Name string `json:"name"`
	} `json:"payload"`
	Metadata struct {
		RegisteredBy string `json:"registeredBy"`
	} `json:"metadata"`
	LatestOnboardingInfo struct {
		ActionType string `json:"actionType"`
	} `json:"latestOnboardingInfo"`
}

// Handle implements events.Handler. Only local, non-draft lifecycle events
// produce mail.
func (h *MailHook) Handle(_ context.Context, ev events.Event) error {
	if ev.Draft || ev.CatalogueID != h.catalogueID {
		return nil
	}

	var view mailView
	if err := json.Unmarshal(ev.Bundle, &view); err != nil {
		return fmt.Errorf("failed to decode %s %q snapshot: %w", ev.Kind, ev.ResourceID, err)
	}

	switch ev.Type {
	case events.TypeRegistered:
		subject := fmt.Sprintf("[%s] New %s onboarding request: %s", h.catalogueID, ev.Kind, view.Payload.Name)
		body := fmt.Sprintf(
			"A new %s %q (%s) was submitted by %s and awaits moderation.\n",
			ev.Kind, view.Payload.Name, ev.ResourceID, view.Metadata.RegisteredBy)
		return h.mailer.Send(h.moderators, subject, body)

	case events.TypeVerified:
		// Resets back to pending are internal bookkeeping, not decisions.
		action := view.LatestOnboardingInfo.ActionType
		if view.Metadata.RegisteredBy == "" ||
			(action != bundle.ActionApproved && action != bundle.ActionRejected) {
			return nil
		}
		subject := fmt.Sprintf("[%s] Your %s %q was %s", h.catalogueID, ev.Kind,
			view.Payload.Name, view.LatestOnboardingInfo.ActionType)
		body := fmt.Sprintf(
			"The moderation team reviewed %s %q (%s).\nNew status: %s.\n",
			ev.Kind, view.Payload.Name, ev.ResourceID, ev.Status)
		return h.mailer.Send([]string{view.Metadata.RegisteredBy}, subject, body)
	}
	return nil
}
