package domain

import (
	"encoding/base64"
	"strconv"
)

// DefaultMaxResults is the default page size when none is specified.
const DefaultMaxResults = 100

// MaxMaxResults is the maximum allowed page size.
const MaxMaxResults = 1000

// PageRequest holds pagination parameters for list operations. PageToken is
// an opaque base64-encoded offset.
type PageRequest struct {
	MaxResults int
	PageToken  string
}

// Limit returns the effective page size, clamped to [1, MaxMaxResults].
func (p PageRequest) Limit() int {
	if p.MaxResults <= 0 {
		return DefaultMaxResults
	}
	if p.MaxResults > MaxMaxResults {
		return MaxMaxResults
	}
	return p.MaxResults
}

// Offset decodes the page token. Empty or malformed tokens decode to 0.
func (p PageRequest) Offset() int {
	if p.PageToken == "" {
		return 0
	}
	raw, err := base64.StdEncoding.DecodeString(p.PageToken)
	if err != nil {
		return 0
	}
	offset, err := strconv.Atoi(string(raw))
	if err != nil || offset < 0 {
		return 0
	}
	return offset
}

// NextPageToken returns the token for the page after (offset, limit), or ""
// when total is exhausted.
func NextPageToken(offset, limit int, total int64) string {
	next := offset + limit
	if int64(next) >= total {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(next)))
}
