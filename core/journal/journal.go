// Package journal keeps an append-only history of lifecycle events. A
// Recorder plugs a Store into the notifier fan-out so every published event
// is written once, whatever the number of topics it is delivered to.
package journal

import (
	"context"
	"time"

	"github.com/kilianp07/rescue/core/events"
	"github.com/kilianp07/rescue/core/model"
)

// Record is one journaled event.
type Record struct {
	Seq   int64       `json:"seq,omitempty"`
	Topic string      `json:"topic"`
	Event model.Event `json:"event"`
}

// Query filters journal records. Zero values match everything.
type Query struct {
	Start     time.Time
	End       time.Time
	RequestID string
	TeamID    string
	Kind      model.EventKind
	// Limit keeps the most recent matches when positive.
	Limit int
}

// Match reports whether r passes the filter, ignoring Limit.
func (q Query) Match(r Record) bool {
	ts := r.Event.Timestamp
	if !q.Start.IsZero() && ts.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && ts.After(q.End) {
		return false
	}
	if q.RequestID != "" && r.Event.RequestID != q.RequestID {
		return false
	}
	if q.TeamID != "" && r.Event.TeamID != q.TeamID {
		return false
	}
	if q.Kind != "" && r.Event.Kind != q.Kind {
		return false
	}
	return true
}

func (q Query) limit(res []Record) []Record {
	if q.Limit > 0 && len(res) > q.Limit {
		return res[len(res)-q.Limit:]
	}
	return res
}

// Store persists journal records.
type Store interface {
	Append(ctx context.Context, rec Record) error
	// Query returns matching records in timestamp order.
	Query(ctx context.Context, q Query) ([]Record, error)
	Close() error
}

// Recorder is an events.Publisher writing to a journal Store.
type Recorder struct {
	store Store
}

// NewRecorder wraps s.
func NewRecorder(s Store) *Recorder { return &Recorder{store: s} }

func (r *Recorder) Name() string { return "journal" }

// Publish journals ev when topic is the first topic ev is delivered to.
func (r *Recorder) Publish(ctx context.Context, topic string, ev model.Event) error {
	topics := events.Topics(ev)
	if len(topics) > 0 && topics[0] != topic {
		return nil
	}
	return r.store.Append(ctx, Record{Topic: topic, Event: ev})
}

// Query forwards to the underlying store.
func (r *Recorder) Query(ctx context.Context, q Query) ([]Record, error) {
	return r.store.Query(ctx, q)
}

func (r *Recorder) Close() error { return r.store.Close() }
