package domain

import "time"

// DelegationStatus is the stored lifecycle state of a delegation.
type DelegationStatus string

// Delegation status constants. Revoked and expired are terminal: rows in
// either state are immutable audit history and are never deleted.
const (
	DelegationActive  DelegationStatus = "active"
	DelegationRevoked DelegationStatus = "revoked"
	DelegationExpired DelegationStatus = "expired"
)

// Terminal reports whether the status admits no further transitions.
func (s DelegationStatus) Terminal() bool {
	return s == DelegationRevoked || s == DelegationExpired
}

// Delegation is a directed, time-bounded, scope-limited grant from a
// delegator membership to a delegatee principal. The delegatee may or may
// not hold its own membership in the circle. Delegated scopes are frozen at
// issuance: later changes to the delegator's role do not re-validate them.
type Delegation struct {
	ID                    string
	CircleID              string
	DelegatorMembershipID string
	Delegatee             Principal
	Scopes                []string
	Status                DelegationStatus
	ExpiresAt             *time.Time // nil means no automatic expiry
	CreatedAt             time.Time
	RevokedAt             *time.Time
	RevokedBy             *string // principal key of the revoker
}

// EffectiveStatus resolves the delegation's status at the given instant
// without mutating storage: a stored-active delegation whose expiry has
// passed reads as expired. Callers needing a durable transition use
// MaterializeExpiry on the delegation engine.
func (d *Delegation) EffectiveStatus(now time.Time) DelegationStatus {
	if d.Status == DelegationActive && d.ExpiresAt != nil && !now.Before(*d.ExpiresAt) {
		return DelegationExpired
	}
	return d.Status
}
