// Package repository implements domain repository interfaces using SQLite.
package repository

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"circle-core/internal/domain"
)

// mapDBError translates driver-level failures into typed domain errors.
// Anything not recognized (busy timeouts, context deadlines) passes through
// untranslated so callers can tell transient store failures from domain
// failures.
func mapDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.NotFoundError{Message: "resource not found"}
	}
	if strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return &domain.ConflictError{Message: "resource already exists"}
	}
	return err
}

// joinScopes encodes a scope set as a space-separated string, the same shape
// OAuth scope parameters use. Scope names are catalog-validated before they
// reach the store, so no escaping is needed.
func joinScopes(scopes []string) string {
	return strings.Join(scopes, " ")
}

// splitScopes decodes a stored scope string.
func splitScopes(s string) []string {
	return strings.Fields(s)
}

// nullString converts an optional string for storage.
func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// nullTime converts an optional time for storage.
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// timePtr converts a nullable column back to an optional time.
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// stringPtr converts a nullable column back to an optional string.
func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
