package domain

import "time"

// Audit status constants.
const (
	AuditAllowed = "ALLOWED"
	AuditDenied  = "DENIED"
)

// AuditEntry represents a single audit log record. Every mutating operation
// writes one, whether it was allowed or denied.
type AuditEntry struct {
	ID           string
	CircleID     *string // nil for operations without a circle in scope yet
	PrincipalKey string  // acting principal
	Action       string  // e.g. "CREATE_DELEGATION", "REMOVE_MEMBER"
	Status       string  // "ALLOWED" or "DENIED"
	Detail       string
	CreatedAt    time.Time
}

// AuditFilter holds filter parameters for querying the audit log.
type AuditFilter struct {
	CircleID     *string
	PrincipalKey *string
	Action       *string
	Status       *string
	Page         PageRequest
}
