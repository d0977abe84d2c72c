// Package local delivers lifecycle events to in-process subscribers such as
// the HTTP event stream.
package local

import (
	"context"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/internal/eventbus"
)

// Config sizes subscriber buffers.
type Config struct {
	Buffer int `json:"buffer"`
}

// Publisher is an events.Publisher backed by an in-memory topic bus.
type Publisher struct {
	bus *eventbus.Bus[model.Event]
}

// New creates a Publisher.
func New(cfg Config) *Publisher {
	return &Publisher{bus: eventbus.New[model.Event](cfg.Buffer)}
}

func (p *Publisher) Name() string { return "local" }

// Publish never fails: slow subscribers miss events and having no
// subscriber is fine.
func (p *Publisher) Publish(_ context.Context, topic string, ev model.Event) error {
	p.bus.Publish(topic, ev)
	return nil
}

// Subscribe returns a channel receiving events whose topic matches pattern
// ('+' and '#' wildcards allowed).
func (p *Publisher) Subscribe(pattern string) <-chan eventbus.Message[model.Event] {
	return p.bus.Subscribe(pattern)
}

// Unsubscribe releases a channel returned by Subscribe.
func (p *Publisher) Unsubscribe(ch <-chan eventbus.Message[model.Event]) { p.bus.Unsubscribe(ch) }

// Dropped reports deliveries lost to full subscriber buffers.
func (p *Publisher) Dropped() uint64 { return p.bus.Dropped() }

func (p *Publisher) Close() error {
	p.bus.Close()
	return nil
}
