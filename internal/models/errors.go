package models

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds, matchable with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrInvalidState        = errors.New("invalid state")
	ErrComplianceGate      = errors.New("compliance gate not satisfied")
	ErrNotFound            = errors.New("not found")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// ValidationError reports malformed input. No state was changed.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// InvalidStateError reports an operation not permitted in the entity's
// current lifecycle state.
type InvalidStateError struct {
	Entity string
	ID     string
	Op     string
	State  string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %s in state %s: %s", e.Op, e.Entity, e.ID, e.State, e.Reason)
}

func (e *InvalidStateError) Unwrap() error {
	return ErrInvalidState
}

// ComplianceGateError reports a completion attempt with required controls
// still outstanding.
type ComplianceGateError struct {
	ID      DiscardID
	Missing []Control
}

func (e *ComplianceGateError) Error() string {
	parts := make([]string, len(e.Missing))
	for i, c := range e.Missing {
		parts[i] = string(c) + " required before completion"
	}
	return fmt.Sprintf("discard %s cannot be completed: %s", e.ID, strings.Join(parts, ", "))
}

func (e *ComplianceGateError) Unwrap() error {
	return ErrComplianceGate
}

// NotFoundError reports a missing alert, discard, item or lot.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// ConcurrencyConflictError reports a write against a stale version.
// Callers should re-read and retry.
type ConcurrencyConflictError struct {
	Entity  string
	ID      string
	Version int
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s %s was modified concurrently (expected version %d)", e.Entity, e.ID, e.Version)
}

func (e *ConcurrencyConflictError) Unwrap() error {
	return ErrConcurrencyConflict
}
