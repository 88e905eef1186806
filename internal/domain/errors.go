// Package domain defines core types, repository interfaces, and errors for
// the coordination-circle engine.
package domain

import (
	"fmt"
	"strings"
)

// NotFoundError indicates a circle, role, membership, or delegation was not found.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// AccessDeniedError indicates the acting principal lacks a required scope.
// Source records which grant path was consulted ("role", "delegation",
// "both", or "none") and Missing names the scope that was not satisfied.
type AccessDeniedError struct {
	Message string
	Source  string
	Missing string
}

func (e *AccessDeniedError) Error() string { return e.Message }

// ValidationError indicates invalid input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError indicates a state conflict (duplicate resource, archived
// circle, lost conditional update).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string { return e.Message }

// UnknownScopeError indicates a scope identifier outside the catalog.
// This is a configuration error — fatal to the triggering request and
// never retried.
type UnknownScopeError struct {
	Scope string
}

func (e *UnknownScopeError) Error() string {
	return fmt.Sprintf("unknown scope %q", e.Scope)
}

// ScopeNotHeldError indicates a delegation request exceeding the delegator's
// effective scopes. Missing lists the unsatisfied scopes.
type ScopeNotHeldError struct {
	Missing []string
}

func (e *ScopeNotHeldError) Error() string {
	return fmt.Sprintf("delegator does not hold scopes: %s", strings.Join(e.Missing, ", "))
}

// InvariantError indicates an owner-role invariant violation. These are
// usage errors: retrying cannot change the outcome.
type InvariantError struct {
	Message string
}

func (e *InvariantError) Error() string { return e.Message }

// TerminalStateError indicates an operation against a delegation already in
// a terminal state (revoked or expired). It is an idempotency signal —
// callers may treat it as success-equivalent.
type TerminalStateError struct {
	Status DelegationStatus
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("delegation already %s", e.Status)
}

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrAccessDenied creates an AccessDeniedError with a formatted message.
func ErrAccessDenied(format string, args ...interface{}) *AccessDeniedError {
	return &AccessDeniedError{Message: fmt.Sprintf(format, args...)}
}

// ErrValidation creates a ValidationError with a formatted message.
func ErrValidation(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// ErrConflict creates a ConflictError with a formatted message.
func ErrConflict(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// ErrOwnerRoleImmutable creates the fixed invariant error for attempts to
// modify, reassign, or transfer the owner role. Ownership transfer is
// unsupported in this engine.
func ErrOwnerRoleImmutable() *InvariantError {
	return &InvariantError{Message: "owner role is immutable"}
}

// ErrCannotRemoveOwner creates the fixed invariant error for attempts to
// remove the owner membership.
func ErrCannotRemoveOwner() *InvariantError {
	return &InvariantError{Message: "owner membership cannot be removed"}
}

// ErrDuplicateOwnerRole creates the fixed invariant error for attempts to
// create a second owner-level role. The owner role is created exactly once,
// atomically with its circle.
func ErrDuplicateOwnerRole() *InvariantError {
	return &InvariantError{Message: "circle already has an owner role"}
}
