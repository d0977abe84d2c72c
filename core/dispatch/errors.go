package dispatch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/rescue/core/store"
)

var (
	// ErrNotFound is returned for an unknown request or team id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState is returned when an operation is not legal from the
	// current status, including losing a concurrent assignment.
	ErrInvalidState = errors.New("invalid state")
	// ErrInvalidTransition is returned when the target status is not
	// reachable from the current one.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrCapabilityMismatch is returned when a team lacks the capability a
	// request needs. Retrying with the same team cannot succeed.
	ErrCapabilityMismatch = errors.New("capability mismatch")
	// ErrInvalidInput is returned when intake or registration data fails
	// validation.
	ErrInvalidInput = errors.New("invalid input")
)

// OpError describes a failed lifecycle operation. Err wraps one of the
// sentinel errors above, or a store fault.
type OpError struct {
	Op        string
	RequestID string
	TeamID    string
	Err       error
}

func (e *OpError) Error() string {
	var b strings.Builder
	b.WriteString(e.Op)
	if e.RequestID != "" {
		b.WriteString(" request ")
		b.WriteString(e.RequestID)
	}
	if e.TeamID != "" {
		b.WriteString(" team ")
		b.WriteString(e.TeamID)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *OpError) Unwrap() error { return e.Err }

func opError(op, requestID, teamID string, kind error, format string, args ...any) error {
	return &OpError{
		Op:        op,
		RequestID: requestID,
		TeamID:    teamID,
		Err:       fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...)),
	}
}

// storeError translates store sentinels into engine sentinels. A lost
// conditional write is an InvalidState; anything else is passed through.
func storeError(op, requestID, teamID string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &OpError{Op: op, RequestID: requestID, TeamID: teamID, Err: fmt.Errorf("%w: %v", ErrNotFound, err)}
	case errors.Is(err, store.ErrConflict):
		return &OpError{Op: op, RequestID: requestID, TeamID: teamID, Err: fmt.Errorf("%w: %v", ErrInvalidState, err)}
	case errors.Is(err, store.ErrDuplicate):
		return &OpError{Op: op, RequestID: requestID, TeamID: teamID, Err: fmt.Errorf("%w: %v", ErrInvalidInput, err)}
	default:
		return &OpError{Op: op, RequestID: requestID, TeamID: teamID, Err: err}
	}
}
