package domain

import (
	"regexp"
	"strings"
	"time"
)

// Circle lifecycle status constants.
const (
	CircleActive   = "active"
	CircleInactive = "inactive"
	CircleArchived = "archived"
)

// Circle is a federated group scoping memberships, roles, and delegations.
// Archiving a circle freezes all mutations but preserves history.
type Circle struct {
	ID        string
	Name      string
	Slug      string // unique, immutable once published
	Status    string
	CreatedAt time.Time
}

// IsActive reports whether the circle accepts mutations.
func (c *Circle) IsActive() bool { return c.Status == CircleActive }

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the canonical slug for a circle name: lowercased, runs of
// non-alphanumerics collapsed to single hyphens, trimmed.
func Slugify(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = slugStrip.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
