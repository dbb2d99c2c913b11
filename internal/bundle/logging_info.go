package bundle

import (
	"sort"
	"strconv"
	"time"
)

// Lifecycle event types.
const (
	TypeOnboard = "onboard"
	TypeUpdate  = "update"
	TypeAudit   = "audit"
	TypeDraft   = "draft"
	TypeMove    = "move"
)

// Lifecycle action types.
const (
	ActionRegistered  = "registered"
	ActionApproved    = "approved"
	ActionRejected    = "rejected"
	ActionUpdated     = "updated"
	ActionActivated   = "activated"
	ActionDeactivated = "deactivated"
	ActionSuspended   = "suspended"
	ActionUnsuspended = "unsuspended"
	ActionValid       = "valid"
	ActionInvalid     = "invalid"
	ActionMoved       = "moved"
)

// Derived audit states computed from the lifecycle log.
const (
	AuditStateNotAudited        = "Not Audited"
	AuditStateValidNotUpdated   = "Valid and not updated"
	AuditStateValidAndUpdated   = "Valid and updated"
	AuditStateInvalidNotUpdated = "Invalid and not updated"
	AuditStateInvalidAndUpdated = "Invalid and updated"
)

// LoggingInfo is one immutable entry of a bundle's lifecycle log. Dates are
// unix-millisecond strings for compatibility with existing records.
type LoggingInfo struct {
	Date         string `json:"date"`
	UserEmail    string `json:"userEmail,omitempty"`
	UserFullName string `json:"userFullName,omitempty"`
	UserRole     string `json:"userRole,omitempty"`
	Type         string `json:"type"`
	ActionType   string `json:"actionType"`
	Comment      string `json:"comment,omitempty"`
}

// Actor identifies who caused a lifecycle event.
type Actor struct {
	Email    string
	FullName string
	Role     string
}

// NewLoggingInfo creates a lifecycle entry stamped with the given time.
func NewLoggingInfo(actor Actor, eventType, actionType, comment string, at time.Time) LoggingInfo {
	return LoggingInfo{
		Date:         strconv.FormatInt(at.UnixMilli(), 10),
		UserEmail:    actor.Email,
		UserFullName: actor.FullName,
		UserRole:     actor.Role,
		Type:         eventType,
		ActionType:   actionType,
		Comment:      comment,
	}
}

// SystemUpdateLoggingInfo creates an entry for changes made by the system
// itself rather than a user.
func SystemUpdateLoggingInfo(actionType string, at time.Time) LoggingInfo {
	return LoggingInfo{
		Date:       strconv.FormatInt(at.UnixMilli(), 10),
		Type:       TypeUpdate,
		ActionType: actionType,
		UserRole:   "system",
	}
}

// sortLoggingInfo orders entries by date ascending. Dates are numeric strings;
// entries with unparsable dates sort first.
func sortLoggingInfo(entries []LoggingInfo) {
	sort.SliceStable(entries, func(i, j int) bool {
		return dateMillis(entries[i].Date) < dateMillis(entries[j].Date)
	})
}

func dateMillis(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// AuditState scans the lifecycle log for the most recent audit entry and
// reports whether any update postdates it.
func AuditState(entries []LoggingInfo) string {
	ordered := make([]LoggingInfo, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool {
		return dateMillis(ordered[i].Date) > dateMillis(ordered[j].Date)
	})

	auditIndex := -1
	auditAction := ""
	for i, entry := range ordered {
		if entry.Type == TypeAudit {
			auditIndex = i
			auditAction = entry.ActionType
			break
		}
	}
	if auditIndex < 0 {
		return AuditStateNotAudited
	}

	updatedAfterAudit := false
	for i := 0; i < auditIndex; i++ {
		if ordered[i].Type == TypeUpdate {
			updatedAfterAudit = true
			break
		}
	}

	switch {
	case !updatedAfterAudit && auditAction == ActionInvalid:
		return AuditStateInvalidNotUpdated
	case !updatedAfterAudit:
		return AuditStateValidNotUpdated
	case auditAction == ActionInvalid:
		return AuditStateInvalidAndUpdated
	default:
		return AuditStateValidAndUpdated
	}
}
