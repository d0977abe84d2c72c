package dispatch

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rescue/core/logger"
	"github.com/kilianp07/rescue/core/metrics"
	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/store"
)

type published struct {
	topic string
	ev    model.Event
}

type recordPublisher struct {
	mu     sync.Mutex
	events []published
	err    error
	panics bool
}

func (p *recordPublisher) Publish(_ context.Context, topic string, ev model.Event) error {
	if p.panics {
		panic("transport exploded")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, ev: ev})
	return p.err
}

func (p *recordPublisher) Name() string { return "record" }

func (p *recordPublisher) kinds(kind model.EventKind) []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []published
	for _, e := range p.events {
		if e.ev.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

type recordSink struct {
	metrics.NopSink
	mu          sync.Mutex
	assignments []metrics.AssignmentEvent
	outcomes    []metrics.AutoAssignOutcome
	transitions []metrics.TransitionEvent
	failures    []string
}

func (s *recordSink) RecordAssignment(ev metrics.AssignmentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments = append(s.assignments, ev)
	return nil
}

func (s *recordSink) RecordAutoAssign(_ model.Capability, o metrics.AutoAssignOutcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, o)
	return nil
}

func (s *recordSink) RecordTransition(ev metrics.TransitionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitions = append(s.transitions, ev)
	return nil
}

func (s *recordSink) RecordPublishFailure(transport, topic string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, transport+"|"+topic)
	return nil
}

type fixture struct {
	ctx   context.Context
	store *store.MemoryStore
	pub   *recordPublisher
	sink  *recordSink
	ctl   *Controller
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:   context.Background(),
		store: store.NewMemoryStore(),
		pub:   &recordPublisher{},
		sink:  &recordSink{},
		now:   time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	var seq int
	var mu sync.Mutex
	ctl, err := NewController(f.store, f.pub, f.sink, logger.NopLogger{},
		WithClock(func() time.Time { return f.now }),
		WithIDGenerator(func() string {
			mu.Lock()
			defer mu.Unlock()
			seq++
			return fmt.Sprintf("gen-%03d", seq)
		}),
	)
	require.NoError(t, err)
	f.ctl = ctl
	return f
}

func (f *fixture) team(t *testing.T, id string, capacity int, caps ...model.Capability) {
	t.Helper()
	require.NoError(t, f.store.CreateTeam(f.ctx, model.RescueTeam{
		ID:           id,
		Name:         "Team " + id,
		Capabilities: model.NewCapabilitySet(caps...),
		Capacity:     capacity,
		Status:       model.TeamAvailable,
		CreatedAt:    f.now,
		UpdatedAt:    f.now,
	}))
}

func (f *fixture) request(t *testing.T, id string, c model.Capability) {
	t.Helper()
	require.NoError(t, f.store.CreateRequest(f.ctx, model.EmergencyRequest{
		ID:         id,
		Capability: c,
		Priority:   model.PriorityHigh,
		Status:     model.RequestPending,
		CreatedAt:  f.now,
		UpdatedAt:  f.now,
	}))
}

func (f *fixture) getTeam(t *testing.T, id string) model.RescueTeam {
	t.Helper()
	tm, err := f.store.GetTeam(f.ctx, id)
	require.NoError(t, err)
	return tm
}

func (f *fixture) getRequest(t *testing.T, id string) model.EmergencyRequest {
	t.Helper()
	r, err := f.store.GetRequest(f.ctx, id)
	require.NoError(t, err)
	return r
}
