package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/rescue/core/metrics"
	"github.com/kilianp07/rescue/core/model"
)

// PromSink records dispatch activity in Prometheus metrics.
type PromSink struct {
	assignments *prometheus.CounterVec
	wait        *prometheus.HistogramVec
	autoAssign  *prometheus.CounterVec
	transitions *prometheus.CounterVec
	publishErrs *prometheus.CounterVec
	operations  *prometheus.HistogramVec
	activeTeams *prometheus.GaugeVec
}

// NewPromSink registers dispatch metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately on Config.PrometheusPort.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rescue_assignments_total",
			Help: "Committed team assignments",
		}, []string{"capability", "priority", "mode"}),
		wait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rescue_assignment_wait_seconds",
			Help:    "Time between request intake and team assignment",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"capability", "priority"}),
		autoAssign: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rescue_auto_assign_total",
			Help: "Auto-assignment attempts by outcome",
		}, []string{"capability", "outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rescue_transitions_total",
			Help: "Committed request status transitions",
		}, []string{"from", "to"}),
		publishErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rescue_publish_failures_total",
			Help: "Event deliveries that failed",
		}, []string{"transport", "topic"}),
		operations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rescue_operation_duration_seconds",
			Help:    "Latency of lifecycle operations",
			Buckets: prometheus.DefBuckets,
		}, []string{"op", "result"}),
		activeTeams: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "rescue_teams_engaged",
			Help: "Teams currently attached to a request, by capability of the request",
		}, []string{"capability"}),
	}
	var err error
	if s.assignments, err = register(reg, s.assignments); err != nil {
		return nil, err
	}
	if s.wait, err = register(reg, s.wait); err != nil {
		return nil, err
	}
	if s.autoAssign, err = register(reg, s.autoAssign); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.publishErrs, err = register(reg, s.publishErrs); err != nil {
		return nil, err
	}
	if s.operations, err = register(reg, s.operations); err != nil {
		return nil, err
	}
	if s.activeTeams, err = register(reg, s.activeTeams); err != nil {
		return nil, err
	}
	return s, nil
}

// register reuses a collector already registered under the same name.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (s *PromSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	s.assignments.WithLabelValues(string(ev.Capability), string(ev.Priority), string(ev.Mode)).Inc()
	if ev.Wait > 0 {
		s.wait.WithLabelValues(string(ev.Capability), string(ev.Priority)).Observe(ev.Wait.Seconds())
	}
	s.activeTeams.WithLabelValues(string(ev.Capability)).Inc()
	return nil
}

func (s *PromSink) RecordAutoAssign(c model.Capability, outcome coremetrics.AutoAssignOutcome) error {
	s.autoAssign.WithLabelValues(string(c), string(outcome)).Inc()
	return nil
}

func (s *PromSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	s.transitions.WithLabelValues(string(ev.From), string(ev.To)).Inc()
	if ev.To.Terminal() && ev.From.Active() {
		s.activeTeams.WithLabelValues(string(ev.Capability)).Dec()
	}
	return nil
}

func (s *PromSink) RecordPublishFailure(transport, topic string) error {
	s.publishErrs.WithLabelValues(transport, TopicClass(topic)).Inc()
	return nil
}

func (s *PromSink) RecordOperation(op string, d time.Duration, err error) error {
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.operations.WithLabelValues(op, result).Observe(d.Seconds())
	return nil
}

// TopicClass replaces the id segments of a topic with '+' so labels stay
// bounded.
func TopicClass(topic string) string {
	parts := strings.Split(topic, "/")
	switch {
	case len(parts) == 3 && parts[0] == "emergency" && parts[1] == "status":
		parts[2] = "+"
	case len(parts) == 3 && parts[0] == "team" && parts[2] == "assignments":
		parts[1] = "+"
	}
	return strings.Join(parts, "/")
}
