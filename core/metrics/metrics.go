package metrics

import (
	"time"

	"github.com/kilianp07/rescue/core/model"
)

// AssignMode tells whether a team was chosen by an operator or by matching.
type AssignMode string

const (
	AssignManual AssignMode = "manual"
	AssignAuto   AssignMode = "auto"
)

// AutoAssignOutcome is the result of one auto-assignment attempt.
type AutoAssignOutcome string

const (
	OutcomeAssigned AutoAssignOutcome = "assigned"
	OutcomeNoTeam   AutoAssignOutcome = "no_team"
	OutcomeError    AutoAssignOutcome = "error"
)

// AssignmentEvent is recorded for every committed assignment.
type AssignmentEvent struct {
	RequestID  string
	TeamID     string
	Capability model.Capability
	Priority   model.Priority
	Mode       AssignMode
	// Wait is the time between request creation and assignment.
	Wait time.Duration
	Time time.Time
}

// TransitionEvent is recorded for every committed status transition.
type TransitionEvent struct {
	RequestID  string
	TeamID     string
	From       model.RequestStatus
	To         model.RequestStatus
	Capability model.Capability
	Time       time.Time
}

// Sink records dispatch engine activity.
type Sink interface {
	RecordAssignment(ev AssignmentEvent) error
	RecordAutoAssign(c model.Capability, outcome AutoAssignOutcome) error
	RecordTransition(ev TransitionEvent) error
	RecordPublishFailure(transport, topic string) error
}

// OperationRecorder is implemented by sinks measuring lifecycle operation
// latency. op is one of "assign", "auto_assign", "transition", "intake".
type OperationRecorder interface {
	RecordOperation(op string, d time.Duration, err error) error
}

// NopSink implements Sink and OperationRecorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAssignment(AssignmentEvent) error                     { return nil }
func (NopSink) RecordAutoAssign(model.Capability, AutoAssignOutcome) error { return nil }
func (NopSink) RecordTransition(TransitionEvent) error                     { return nil }
func (NopSink) RecordPublishFailure(string, string) error                  { return nil }
func (NopSink) RecordOperation(string, time.Duration, error) error         { return nil }
