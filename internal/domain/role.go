package domain

import "time"

// Role level constants, in descending trust order.
const (
	LevelOwner  = "owner"
	LevelAdmin  = "admin"
	LevelMember = "member"
)

// ValidLevel reports whether level is one of the known role levels.
func ValidLevel(level string) bool {
	return level == LevelOwner || level == LevelAdmin || level == LevelMember
}

// Role is a circle-scoped named bundle of scopes with a trust level.
// Exactly one owner-level role exists per circle; it is created atomically
// with the circle and never mutated afterwards.
type Role struct {
	ID        string
	CircleID  string
	Name      string
	Level     string
	Scopes    []string
	CreatedAt time.Time
}

// IsOwner reports whether this is the circle's owner role.
func (r *Role) IsOwner() bool { return r.Level == LevelOwner }
