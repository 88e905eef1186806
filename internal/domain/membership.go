package domain

import "time"

// Membership binds a principal to a circle via a role. A principal has at
// most one active membership per circle; deactivated rows are kept as
// history.
type Membership struct {
	ID        string
	CircleID  string
	Principal Principal
	RoleID    string
	IsActive  bool
	JoinedAt  time.Time
}
