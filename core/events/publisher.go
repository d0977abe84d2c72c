package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/monitoring"
)

// Publisher delivers an event to the current subscribers of a topic. Having
// no subscriber is not an error.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev model.Event) error
}

// PublisherFunc adapts a function to the Publisher interface.
type PublisherFunc func(ctx context.Context, topic string, ev model.Event) error

func (f PublisherFunc) Publish(ctx context.Context, topic string, ev model.Event) error {
	return f(ctx, topic, ev)
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, model.Event) error { return nil }

// Named is implemented by publishers that report a transport name in logs
// and metrics.
type Named interface {
	Name() string
}

// NameOf returns p's transport name or its Go type.
func NameOf(p Publisher) string {
	if n, ok := p.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", p)
}

// PublishError reports which transport failed.
type PublishError struct {
	Transport string
	Topic     string
	Err       error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s via %s: %v", e.Topic, e.Transport, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// Multi fans an event out to every publisher. All publishers are attempted,
// even after one panics; the joined error lists each failure as a
// *PublishError.
type Multi struct {
	Publishers []Publisher
}

// NewMulti returns a Multi over pubs, skipping nil entries.
func NewMulti(pubs ...Publisher) *Multi {
	m := &Multi{}
	for _, p := range pubs {
		if p != nil {
			m.Publishers = append(m.Publishers, p)
		}
	}
	return m
}

func (m *Multi) Publish(ctx context.Context, topic string, ev model.Event) error {
	var errs []error
	for _, p := range m.Publishers {
		if err := publishOne(ctx, p, topic, ev); err != nil {
			errs = append(errs, &PublishError{Transport: NameOf(p), Topic: topic, Err: err})
		}
	}
	return errors.Join(errs...)
}

func publishOne(ctx context.Context, p Publisher, topic string, ev model.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &monitoring.PanicError{Value: r}
		}
	}()
	return p.Publish(ctx, topic, ev)
}

// Close closes every publisher implementing io.Closer-like Close() error.
func (m *Multi) Close() error {
	var errs []error
	for _, p := range m.Publishers {
		if c, ok := p.(interface{ Close() error }); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Failures extracts every *PublishError contained in err.
func Failures(err error) []*PublishError {
	if err == nil {
		return nil
	}
	var out []*PublishError
	var pe *PublishError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, Failures(e)...)
		}
		return out
	}
	if errors.As(err, &pe) {
		return []*PublishError{pe}
	}
	return nil
}
