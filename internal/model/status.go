package model

import (
	"errors"
	"fmt"
)

// Status is the lifecycle state of an import transaction.
// The string values are part of the wire protocol and the persisted schema; never rename them.
type Status string

const (
	StatusGenerated Status = "GENERATED"
	StatusReceived  Status = "RECEIVED"
	StatusProcessed Status = "PROCESSED"
	StatusCancelled Status = "CANCELLED"
	StatusTimeout   Status = "TIMEOUT"
	StatusNonValid  Status = "NON_VALID"

	// StatusNotFound is only ever pushed to clients; it is never persisted.
	StatusNotFound Status = "NOT_FOUND"
)

// ErrUnknownStatus is returned when decoding a status string outside the closed set.
var ErrUnknownStatus = errors.New("unknown transaction status")

// ParseStatus decodes a wire or stored status string.
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusGenerated, StatusReceived, StatusProcessed, StatusCancelled,
		StatusTimeout, StatusNonValid, StatusNotFound:
		return st, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

func (s Status) String() string { return string(s) }

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if _, err := ParseStatus(string(s)); err != nil {
		return nil, err
	}
	return []byte(s), nil
}

// UnmarshalText implements encoding.TextUnmarshaler and rejects unknown values.
func (s *Status) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// IsTerminal reports whether no processor may move the transaction further.
// RECEIVED counts as terminal for every actor except the storage completion
// processor that claimed it.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusProcessed, StatusCancelled, StatusTimeout, StatusNonValid:
		return true
	}
	return false
}

var transitions = map[Status][]Status{
	StatusGenerated: {StatusReceived, StatusCancelled, StatusTimeout},
	StatusReceived:  {StatusProcessed, StatusNonValid},
}

// CanTransition reports whether from -> to is an edge of the import state machine.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
