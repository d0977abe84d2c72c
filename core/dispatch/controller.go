package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/rescue/core/events"
	"github.com/kilianp07/rescue/core/logger"
	"github.com/kilianp07/rescue/core/metrics"
	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/monitoring"
	"github.com/kilianp07/rescue/core/store"
	"github.com/kilianp07/rescue/internal/keylock"
)

// Store is the persistence the controller needs.
type Store interface {
	store.TeamStore
	store.RequestStore
}

// Controller is the single writer of request and team status. Every
// operation holds the per-key locks of the request and of every team it
// touches; keys are taken in sorted order so concurrent operations cannot
// deadlock. Conditional store writes back the locks up across processes.
type Controller struct {
	store   Store
	matcher *Matcher
	pub     events.Publisher
	metrics metrics.Sink
	log     logger.Logger
	locks   *keylock.Map

	now         func() time.Time
	newID       func() string
	maxAttempts int
}

// Option customises a Controller.
type Option func(*Controller)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

// WithIDGenerator overrides how intake and registration generate ids.
func WithIDGenerator(f func() string) Option { return func(c *Controller) { c.newID = f } }

// WithConfig applies engine settings.
func WithConfig(cfg Config) Option {
	return func(c *Controller) {
		cfg.SetDefaults()
		c.maxAttempts = cfg.MaxAssignAttempts
	}
}

// NewController wires the engine. pub, sink and log may be nil.
func NewController(st Store, pub events.Publisher, sink metrics.Sink, log logger.Logger, opts ...Option) (*Controller, error) {
	if st == nil {
		return nil, fmt.Errorf("dispatch: nil store provided to NewController")
	}
	if pub == nil {
		pub = events.NopPublisher{}
	}
	if sink == nil {
		sink = metrics.NopSink{}
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	c := &Controller{
		store:       st,
		matcher:     NewMatcher(st),
		pub:         pub,
		metrics:     sink,
		log:         log,
		locks:       keylock.New(),
		now:         time.Now,
		newID:       uuid.NewString,
		maxAttempts: 3,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Matcher exposes the matching engine used by AutoAssign.
func (c *Controller) Matcher() *Matcher { return c.matcher }

func requestKey(id string) string { return "request:" + id }

func teamKey(id string) string {
	if id == "" {
		return ""
	}
	return "team:" + id
}

// lockRequest locks the request plus the extra teams and the team currently
// attached to it. The request is re-read under the lock; if its team changed
// meanwhile the locks are retaken.
func (c *Controller) lockRequest(ctx context.Context, op, requestID string, teams ...string) (model.EmergencyRequest, func(), error) {
	for {
		req, err := c.store.GetRequest(ctx, requestID)
		if err != nil {
			return model.EmergencyRequest{}, nil, storeError(op, requestID, "", err)
		}
		attached := activeTeam(req)
		keys := []string{requestKey(requestID), teamKey(attached)}
		for _, t := range teams {
			keys = append(keys, teamKey(t))
		}
		req, held, err := c.relock(ctx, requestID, attached, keys)
		if err != nil {
			return model.EmergencyRequest{}, nil, storeError(op, requestID, "", err)
		}
		if held != nil {
			return req, held, nil
		}
		if err := ctx.Err(); err != nil {
			return model.EmergencyRequest{}, nil, err
		}
	}
}

// relock takes keys and re-reads the request. The locks are handed back only
// when the request still points at the team they were taken for; every other
// exit, a panic included, releases them.
func (c *Controller) relock(ctx context.Context, requestID, attached string, keys []string) (req model.EmergencyRequest, held func(), err error) {
	unlock := c.locks.LockAll(keys...)
	defer func() {
		if held == nil {
			unlock()
		}
	}()
	req, err = c.store.GetRequest(ctx, requestID)
	if err != nil || activeTeam(req) != attached {
		return req, nil, err
	}
	return req, unlock, nil
}

func activeTeam(r model.EmergencyRequest) string {
	if r.Status.Active() {
		return r.AssignedTeam
	}
	return ""
}

// Assign attaches a team to a request chosen by an operator.
func (c *Controller) Assign(ctx context.Context, requestID, teamID string) (model.EmergencyRequest, error) {
	start := c.now()
	req, err := c.assign(ctx, requestID, teamID, metrics.AssignManual)
	c.recordOperation("assign", start, err)
	return req, err
}

func (c *Controller) assign(ctx context.Context, requestID, teamID string, mode metrics.AssignMode) (model.EmergencyRequest, error) {
	const op = "assign"
	req, unlock, err := c.lockRequest(ctx, op, requestID, teamID)
	if err != nil {
		return model.EmergencyRequest{}, err
	}
	defer unlock()

	if req.Status.Terminal() {
		return req, opError(op, requestID, teamID, ErrInvalidState, "request is %s", req.Status)
	}
	team, err := c.store.GetTeam(ctx, teamID)
	if err != nil {
		return req, storeError(op, requestID, teamID, err)
	}
	if !team.Capabilities.Has(req.Capability) {
		return req, opError(op, requestID, teamID, ErrCapabilityMismatch, "team lacks %s", req.Capability)
	}
	if team.Status != model.TeamAvailable || team.CurrentRequest != "" {
		return req, opError(op, requestID, teamID, ErrInvalidState, "team is %s", team.Status)
	}

	now := c.now()
	claimed := team.Clone()
	claimed.Status = model.TeamAssigned
	claimed.CurrentRequest = requestID
	claimed.UpdatedAt = now
	if err := c.store.SaveTeam(ctx, claimed, store.StateOf(team)); err != nil {
		return req, storeError(op, requestID, teamID, err)
	}

	previous := activeTeam(req)
	updated := req
	updated.Status = model.RequestAssigned
	updated.AssignedTeam = teamID
	updated.AssignedAt = &now
	updated.UpdatedAt = now
	if err := c.store.SaveRequest(ctx, updated, req.Status); err != nil {
		c.undoTeam(ctx, op, team, claimed)
		return req, storeError(op, requestID, teamID, err)
	}
	if previous != "" && previous != teamID {
		if err := c.release(ctx, requestID, previous); err != nil {
			c.log.Errorf("reassign %s: release previous team %s: %v", requestID, previous, err)
			monitoring.CaptureException(err, map[string]string{"op": op, "request_id": requestID, "team_id": previous})
		}
	}

	c.log.Infof("assigned team %s to request %s (%s)", teamID, requestID, mode)
	c.record(func(s metrics.Sink) error {
		return s.RecordAssignment(metrics.AssignmentEvent{
			RequestID:  requestID,
			TeamID:     teamID,
			Capability: req.Capability,
			Priority:   req.Priority,
			Mode:       mode,
			Wait:       now.Sub(req.CreatedAt),
			Time:       now,
		})
	})
	c.publish(ctx, model.Event{
		Kind:       model.EventTeamAssigned,
		RequestID:  requestID,
		TeamID:     teamID,
		Status:     updated.Status,
		Capability: updated.Capability,
		Priority:   updated.Priority,
		Timestamp:  now,
	})
	return updated, nil
}

// undoTeam restores a team after the paired request write failed. written is
// the copy saved just before.
func (c *Controller) undoTeam(ctx context.Context, op string, original, written model.RescueTeam) {
	if err := c.store.SaveTeam(ctx, original, store.StateOf(written)); err != nil {
		c.log.Errorf("%s: restore team %s: %v", op, original.ID, err)
		monitoring.CaptureException(err, map[string]string{"op": op, "team_id": original.ID})
	}
}

// AutoAssign matches a PENDING request to the best eligible team. It never
// fails: finding no team leaves the request PENDING, and errors or panics are
// logged, reported to the monitor and swallowed.
func (c *Controller) AutoAssign(ctx context.Context, requestID string) (teamID string, assigned bool) {
	start := c.now()
	var capability model.Capability
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("auto-assign %s: recovered panic: %v", requestID, r)
			monitoring.CapturePanic(r, map[string]string{"op": "auto_assign", "request_id": requestID})
			c.record(func(s metrics.Sink) error { return s.RecordAutoAssign(capability, metrics.OutcomeError) })
			c.recordOperation("auto_assign", start, &monitoring.PanicError{Value: r})
			teamID, assigned = "", false
		}
	}()

	fail := func(err error) {
		c.log.Errorf("auto-assign %s: %v", requestID, err)
		monitoring.CaptureException(err, map[string]string{"op": "auto_assign", "request_id": requestID})
		c.record(func(s metrics.Sink) error { return s.RecordAutoAssign(capability, metrics.OutcomeError) })
		c.recordOperation("auto_assign", start, err)
	}

	req, err := c.store.GetRequest(ctx, requestID)
	if err != nil {
		fail(err)
		return "", false
	}
	capability = req.Capability
	if req.Status != model.RequestPending {
		c.log.Debugf("auto-assign %s skipped: request is %s", requestID, req.Status)
		return "", false
	}

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		id, ok, err := c.matcher.SelectTeam(ctx, req.Capability)
		if err != nil {
			fail(err)
			return "", false
		}
		if !ok {
			c.log.Warnf("no available team for request %s with capability %s", requestID, req.Capability)
			c.record(func(s metrics.Sink) error { return s.RecordAutoAssign(capability, metrics.OutcomeNoTeam) })
			c.recordOperation("auto_assign", start, nil)
			return "", false
		}
		_, err = c.assign(ctx, requestID, id, metrics.AssignAuto)
		if err == nil {
			c.record(func(s metrics.Sink) error { return s.RecordAutoAssign(capability, metrics.OutcomeAssigned) })
			c.recordOperation("auto_assign", start, nil)
			return id, true
		}
		if !errors.Is(err, ErrInvalidState) {
			fail(err)
			return "", false
		}
		cur, gerr := c.store.GetRequest(ctx, requestID)
		if gerr == nil && cur.Status != model.RequestPending {
			c.log.Debugf("auto-assign %s: request became %s concurrently", requestID, cur.Status)
			c.recordOperation("auto_assign", start, nil)
			return "", false
		}
		c.log.Debugf("auto-assign %s: attempt %d lost team %s: %v", requestID, attempt, id, err)
	}
	c.log.Warnf("auto-assign %s: gave up after %d attempts", requestID, c.maxAttempts)
	c.record(func(s metrics.Sink) error { return s.RecordAutoAssign(capability, metrics.OutcomeNoTeam) })
	c.recordOperation("auto_assign", start, nil)
	return "", false
}

// Transition moves a request along PENDING→ASSIGNED→EN_ROUTE→ON_SCENE→RESOLVED,
// or to CANCELLED from any non-terminal state, and mirrors the change on the
// attached team. Committed transitions are final.
func (c *Controller) Transition(ctx context.Context, requestID string, to model.RequestStatus) (model.EmergencyRequest, error) {
	start := c.now()
	req, err := c.transition(ctx, requestID, to)
	c.recordOperation("transition", start, err)
	return req, err
}

func (c *Controller) transition(ctx context.Context, requestID string, to model.RequestStatus) (model.EmergencyRequest, error) {
	const op = "transition"
	req, unlock, err := c.lockRequest(ctx, op, requestID)
	if err != nil {
		return model.EmergencyRequest{}, err
	}
	defer unlock()

	from := req.Status
	if !CanTransition(from, to) {
		return req, opError(op, requestID, "", ErrInvalidTransition, "%s -> %s", from, to)
	}
	teamID := activeTeam(req)
	if to == model.RequestAssigned && teamID == "" {
		return req, opError(op, requestID, "", ErrInvalidState, "no team to assign; use assign")
	}

	now := c.now()
	updated := req
	updated.Status = to
	updated.UpdatedAt = now

	var (
		team    model.RescueTeam
		written model.RescueTeam
		teamSet bool
	)
	switch to {
	case model.RequestEnRoute, model.RequestOnScene:
		team, err = c.store.GetTeam(ctx, teamID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return req, opError(op, requestID, teamID, ErrInvalidState, "assigned team is missing")
			}
			return req, storeError(op, requestID, teamID, err)
		}
		if team.CurrentRequest != requestID {
			return req, opError(op, requestID, teamID, ErrInvalidState, "team is attached to %q", team.CurrentRequest)
		}
		if to == model.RequestEnRoute && updated.RespondedAt == nil {
			updated.RespondedAt = &now
		}
		status, _ := teamStatusFor(to)
		written = team.Clone()
		written.Status = status
		written.UpdatedAt = now
		if err := c.store.SaveTeam(ctx, written, store.StateOf(team)); err != nil {
			return req, storeError(op, requestID, teamID, err)
		}
		teamSet = true
	case model.RequestResolved, model.RequestCancelled:
		updated.CompletedAt = &now
		if teamID != "" {
			team, err = c.store.GetTeam(ctx, teamID)
			switch {
			case errors.Is(err, store.ErrNotFound):
				c.log.Warnf("%s %s: assigned team %s no longer exists", op, requestID, teamID)
			case err != nil:
				return req, storeError(op, requestID, teamID, err)
			case team.CurrentRequest == requestID:
				written = releasedCopy(team, now)
				if err := c.store.SaveTeam(ctx, written, store.StateOf(team)); err != nil {
					return req, storeError(op, requestID, teamID, err)
				}
				teamSet = true
			}
		}
	}

	if err := c.store.SaveRequest(ctx, updated, from); err != nil {
		if teamSet {
			c.undoTeam(ctx, op, team, written)
		}
		return req, storeError(op, requestID, teamID, err)
	}

	c.log.Infof("request %s %s -> %s", requestID, from, to)
	c.record(func(s metrics.Sink) error {
		return s.RecordTransition(metrics.TransitionEvent{
			RequestID:  requestID,
			TeamID:     updated.AssignedTeam,
			From:       from,
			To:         to,
			Capability: updated.Capability,
			Time:       now,
		})
	})
	c.publish(ctx, model.Event{
		Kind:       model.EventStatusChange,
		RequestID:  requestID,
		TeamID:     updated.AssignedTeam,
		Status:     to,
		Capability: updated.Capability,
		Priority:   updated.Priority,
		Timestamp:  now,
	})
	return updated, nil
}

// release frees a team still attached to requestID. Callers hold its lock.
func (c *Controller) release(ctx context.Context, requestID, teamID string) error {
	team, err := c.store.GetTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.CurrentRequest != requestID {
		return nil
	}
	return c.store.SaveTeam(ctx, releasedCopy(team, c.now()), store.StateOf(team))
}

func releasedCopy(t model.RescueTeam, now time.Time) model.RescueTeam {
	out := t.Clone()
	out.Status = model.TeamAvailable
	out.CurrentRequest = ""
	out.UpdatedAt = now
	return out
}

// publish delivers ev after its state change has been committed. Failures
// and panics are logged and counted, never returned.
func (c *Controller) publish(ctx context.Context, ev model.Event) {
	ctx = context.WithoutCancel(ctx)
	for _, topic := range events.Topics(ev) {
		c.publishTopic(ctx, topic, ev)
	}
}

func (c *Controller) publishTopic(ctx context.Context, topic string, ev model.Event) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorf("publish %s on %s: recovered panic: %v", ev.Kind, topic, r)
			c.record(func(s metrics.Sink) error { return s.RecordPublishFailure(events.NameOf(c.pub), topic) })
		}
	}()
	err := c.pub.Publish(ctx, topic, ev)
	if err == nil {
		return
	}
	c.log.Warnf("publish %s for request %s on %s: %v", ev.Kind, ev.RequestID, topic, err)
	failures := events.Failures(err)
	if len(failures) == 0 {
		c.record(func(s metrics.Sink) error { return s.RecordPublishFailure(events.NameOf(c.pub), topic) })
		return
	}
	for _, f := range failures {
		f := f
		c.record(func(s metrics.Sink) error { return s.RecordPublishFailure(f.Transport, f.Topic) })
	}
}

func (c *Controller) record(f func(metrics.Sink) error) {
	if err := f(c.metrics); err != nil {
		c.log.Errorf("metrics error: %v", err)
	}
}

func (c *Controller) recordOperation(op string, start time.Time, err error) {
	rec, ok := c.metrics.(metrics.OperationRecorder)
	if !ok {
		return
	}
	if rerr := rec.RecordOperation(op, c.now().Sub(start), err); rerr != nil {
		c.log.Errorf("metrics error: %v", rerr)
	}
}
