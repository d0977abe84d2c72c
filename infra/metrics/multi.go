package metrics

import (
	"errors"
	"time"

	coremetrics "github.com/kilianp07/rescue/core/metrics"
	"github.com/kilianp07/rescue/core/model"
)

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// Combine adapts NewMultiSink to the combiner expected by coremetrics.NewSink.
func Combine(sinks ...coremetrics.Sink) coremetrics.Sink { return NewMultiSink(sinks...) }

// RecordAssignment forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAssignment(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordAutoAssign forwards auto-assignment outcomes.
func (m *MultiSink) RecordAutoAssign(c model.Capability, o coremetrics.AutoAssignOutcome) error {
	for _, s := range m.Sinks {
		if err := s.RecordAutoAssign(c, o); err != nil {
			return err
		}
	}
	return nil
}

// RecordTransition forwards transitions.
func (m *MultiSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransition(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordPublishFailure forwards publish failures.
func (m *MultiSink) RecordPublishFailure(transport, topic string) error {
	for _, s := range m.Sinks {
		if err := s.RecordPublishFailure(transport, topic); err != nil {
			return err
		}
	}
	return nil
}

// RecordOperation forwards latency metrics when supported by the sink.
func (m *MultiSink) RecordOperation(op string, d time.Duration, err error) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(coremetrics.OperationRecorder); ok {
			if rerr := rec.RecordOperation(op, d, err); rerr != nil {
				return rerr
			}
		}
	}
	return nil
}

// Close closes every sink that holds resources.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.Sinks {
		if c, ok := s.(interface{ Close() error }); ok {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}
