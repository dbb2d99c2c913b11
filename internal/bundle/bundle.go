// Package bundle defines the envelope that pairs a catalogue payload with its
// moderation state and audit trail.
package bundle

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Payload is the capability surface the generic machinery needs from a domain
// entity. All payload types implement it with pointer receivers.
type Payload interface {
	GetID() string
	SetID(id string)
	GetCatalogueID() string
	SetCatalogueID(id string)
	GetName() string
	// GetProviderID returns the id of the owning provider, or "" for payloads
	// that are themselves providers.
	GetProviderID() string
	SetProviderID(id string)
	// StripAccess removes fields that must not be visible on public copies
	// (user lists, main contacts).
	StripAccess()
}

// Metadata carries the audit fields of a bundle.
type Metadata struct {
	RegisteredBy string   `json:"registeredBy,omitempty"`
	RegisteredAt string   `json:"registeredAt,omitempty"`
	ModifiedBy   string   `json:"modifiedBy,omitempty"`
	ModifiedAt   string   `json:"modifiedAt,omitempty"`
	Published    bool     `json:"published"`
	Terms        []string `json:"terms,omitempty"`
}

// Touch updates the modification fields of the metadata.
func (m *Metadata) Touch(by string, at time.Time) {
	m.ModifiedBy = by
	m.ModifiedAt = strconv.FormatInt(at.UnixMilli(), 10)
}

// NewMetadata returns metadata for a freshly registered bundle.
func NewMetadata(by string, at time.Time) Metadata {
	millis := strconv.FormatInt(at.UnixMilli(), 10)
	return Metadata{
		RegisteredBy: by,
		RegisteredAt: millis,
		ModifiedBy:   by,
		ModifiedAt:   millis,
	}
}

// Bundle wraps a domain payload with moderation status, visibility flags and
// the append-only lifecycle log.
type Bundle[T Payload] struct {
	Payload   T        `json:"payload"`
	Status    string   `json:"status,omitempty"`
	Active    bool     `json:"active"`
	Suspended bool     `json:"suspended"`
	Draft     bool     `json:"draft"`
	Metadata  Metadata `json:"metadata"`

	// TemplateStatus is the provider-level aggregate over the moderation
	// state of the provider's resources. Only provider bundles carry it.
	TemplateStatus string `json:"templateStatus,omitempty"`

	LoggingInfo []LoggingInfo `json:"loggingInfo,omitempty"`

	// Denormalized pointers into LoggingInfo for fast access.
	LatestOnboardingInfo *LoggingInfo `json:"latestOnboardingInfo,omitempty"`
	LatestUpdateInfo     *LoggingInfo `json:"latestUpdateInfo,omitempty"`
	LatestAuditInfo      *LoggingInfo `json:"latestAuditInfo,omitempty"`
}

// ID delegates to the payload; a bundle never has an identity of its own.
func (b *Bundle[T]) ID() string { return b.Payload.GetID() }

// CatalogueID delegates to the payload.
func (b *Bundle[T]) CatalogueID() string { return b.Payload.GetCatalogueID() }

// AppendLoggingInfo appends an entry and refreshes the matching latest-info
// pointer. Entries are kept ordered by date ascending.
func (b *Bundle[T]) AppendLoggingInfo(entry LoggingInfo) {
	b.LoggingInfo = append(b.LoggingInfo, entry)
	sortLoggingInfo(b.LoggingInfo)
	e := entry
	switch entry.Type {
	case TypeOnboard:
		b.LatestOnboardingInfo = &e
	case TypeUpdate, TypeMove:
		b.LatestUpdateInfo = &e
	case TypeAudit:
		b.LatestAuditInfo = &e
	}
}

// AuditState derives the audit status of the bundle from its lifecycle log.
func (b *Bundle[T]) AuditState() string { return AuditState(b.LoggingInfo) }

// Clone deep-copies a bundle through its JSON form so hooks never share
// payload memory with the write path.
func Clone[T Payload](b *Bundle[T]) (*Bundle[T], error) {
	raw, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal bundle %q: %w", b.ID(), err)
	}
	var out Bundle[T]
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal bundle %q: %w", b.ID(), err)
	}
	return &out, nil
}

// StateVocabulary holds the status strings of one resource kind.
type StateVocabulary struct {
	Pending  string
	Approved string
	Rejected string
}

// Contains reports whether s is one of the vocabulary's states.
func (v StateVocabulary) Contains(s string) bool {
	return s == v.Pending || s == v.Approved || s == v.Rejected
}

// Kind describes one catalogue document kind: its name (also the store index
// and notification topic prefix) and its status vocabulary.
type Kind struct {
	Name   string
	States StateVocabulary
}

// The catalogue kinds. Status strings are vocabulary ids carried over from the
// catalogue's controlled vocabularies.
var (
	KindService = Kind{
		Name:   "service",
		States: StateVocabulary{Pending: "pending resource", Approved: "approved resource", Rejected: "rejected resource"},
	}
	KindDatasource = Kind{
		Name:   "datasource",
		States: StateVocabulary{Pending: "pending datasource", Approved: "approved datasource", Rejected: "rejected datasource"},
	}
	KindTrainingResource = Kind{
		Name:   "training_resource",
		States: StateVocabulary{Pending: "pending resource", Approved: "approved resource", Rejected: "rejected resource"},
	}
	KindInteroperabilityRecord = Kind{
		Name: "interoperability_record",
		States: StateVocabulary{
			Pending:  "pending interoperability record",
			Approved: "approved interoperability record",
			Rejected: "rejected interoperability record",
		},
	}
	KindResourceInteroperabilityRecord = Kind{
		Name:   "resource_interoperability_record",
		States: StateVocabulary{Pending: "pending resource", Approved: "approved resource", Rejected: "rejected resource"},
	}
	KindProvider = Kind{
		Name:   "provider",
		States: StateVocabulary{Pending: "pending provider", Approved: "approved provider", Rejected: "rejected provider"},
	}
)

// Provider template statuses: the provider-level aggregate over the moderation
// state of its resources.
const (
	TemplateStatusNone     = "no template status"
	TemplateStatusPending  = "pending template"
	TemplateStatusApproved = "approved template"
	TemplateStatusRejected = "rejected template"
)

// PublicID is the composite key of a public mirror copy.
func PublicID(catalogueID, resourceID string) string {
	return catalogueID + "." + resourceID
}
