package events

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/core/monitoring"
)

type recorder struct {
	topics []string
	err    error
}

func (r *recorder) Publish(_ context.Context, topic string, _ model.Event) error {
	r.topics = append(r.topics, topic)
	return r.err
}

func (r *recorder) Name() string { return "recorder" }

func TestTopics(t *testing.T) {
	assert.Equal(t, []string{TopicNew}, Topics(model.Event{Kind: model.EventNewRequest, RequestID: "r1"}))
	assert.Equal(t, []string{"emergency/status/r1", TopicUpdates},
		Topics(model.Event{Kind: model.EventStatusChange, RequestID: "r1"}))
	assert.Equal(t, []string{"team/t9/assignments", TopicUpdates},
		Topics(model.Event{Kind: model.EventTeamAssigned, RequestID: "r1", TeamID: "t9"}))
	assert.Nil(t, Topics(model.Event{Kind: "bogus"}))
}

func TestMultiAttemptsAllPublishers(t *testing.T) {
	failing := &recorder{err: errors.New("broker down")}
	ok := &recorder{}
	m := NewMulti(failing, nil, ok)

	err := m.Publish(context.Background(), TopicUpdates, model.Event{Kind: model.EventStatusChange})
	require.Error(t, err)

	var pe *PublishError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "recorder", pe.Transport)
	assert.Equal(t, []string{TopicUpdates}, ok.topics)
	assert.Equal(t, []string{TopicUpdates}, failing.topics)
}

type panicking struct{}

func (panicking) Publish(context.Context, string, model.Event) error { panic("codec bug") }

func (panicking) Name() string { return "broken" }

func TestMultiContinuesAfterPanic(t *testing.T) {
	after := &recorder{}
	m := NewMulti(panicking{}, after)

	var err error
	require.NotPanics(t, func() {
		err = m.Publish(context.Background(), TopicNew, model.Event{Kind: model.EventNewRequest, RequestID: "r1"})
	})
	assert.Equal(t, []string{TopicNew}, after.topics)

	failures := Failures(err)
	require.Len(t, failures, 1)
	assert.Equal(t, "broken", failures[0].Transport)
	assert.Equal(t, TopicNew, failures[0].Topic)
	var pe *monitoring.PanicError
	assert.True(t, errors.As(err, &pe))
}

func TestNameOfFallsBackToType(t *testing.T) {
	assert.Equal(t, "events.NopPublisher", NameOf(NopPublisher{}))
}
