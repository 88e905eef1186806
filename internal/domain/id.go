package domain

import "github.com/google/uuid"

// NewID generates a UUIDv7 string for engine-owned entities. Time-ordered
// IDs keep SQLite index pages hot on append-heavy tables.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}
