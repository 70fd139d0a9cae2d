package repository

// Package repository contains data access layer abstractions.
// Implementations live in subpackages (e.g., postgres) and contain no business logic.

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist (including after expiry).
	ErrNotFound = errors.New("repository: not found")
	// ErrDuplicateKey indicates an insert collided with an existing identifier.
	ErrDuplicateKey = errors.New("repository: duplicate key")
	// ErrIllegalTransition indicates a status change that is not an edge of the state machine.
	ErrIllegalTransition = errors.New("repository: illegal status transition")
)

// UpdateResult is the outcome of a conditional write.
type UpdateResult int

const (
	// PreconditionNotMet means another actor already moved or removed the record; nothing was written.
	PreconditionNotMet UpdateResult = iota
	// Applied means the write took effect.
	Applied
)

func (r UpdateResult) String() string {
	if r == Applied {
		return "applied"
	}
	return "precondition_not_met"
}
