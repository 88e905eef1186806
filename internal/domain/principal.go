package domain

import (
	"fmt"
	"strings"
)

// Principal type constants.
const (
	PrincipalIndividual   = "individual"
	PrincipalOrganization = "organization"
)

// Principal identifies an individual or organization. Exactly one of the
// two types applies; the engine never stores both identifiers on one row.
type Principal struct {
	Type string // "individual" or "organization"
	ID   string
}

// Individual creates an individual principal.
func Individual(id string) Principal {
	return Principal{Type: PrincipalIndividual, ID: id}
}

// Organization creates an organization principal.
func Organization(id string) Principal {
	return Principal{Type: PrincipalOrganization, ID: id}
}

// Key returns the discriminated storage key ("individual:<id>" or
// "organization:<id>"). Membership and delegation lookups compare this
// single key.
func (p Principal) Key() string {
	return p.Type + ":" + p.ID
}

// Validate checks the principal is well-formed.
func (p Principal) Validate() error {
	if p.Type != PrincipalIndividual && p.Type != PrincipalOrganization {
		return ErrValidation("principal type must be %q or %q, got %q",
			PrincipalIndividual, PrincipalOrganization, p.Type)
	}
	if p.ID == "" {
		return ErrValidation("principal id is required")
	}
	return nil
}

// ParsePrincipal inverts Principal.Key.
func ParsePrincipal(key string) (Principal, error) {
	typ, id, ok := strings.Cut(key, ":")
	if !ok {
		return Principal{}, ErrValidation("malformed principal key %q", key)
	}
	p := Principal{Type: typ, ID: id}
	if err := p.Validate(); err != nil {
		return Principal{}, err
	}
	return p, nil
}

// String implements fmt.Stringer for log output.
func (p Principal) String() string { return p.Key() }

var _ fmt.Stringer = Principal{}
