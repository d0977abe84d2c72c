package events

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/infra/notify/local"
)

func readLine(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	line, err := r.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\n")
}

func TestStreamFiltersByTopic(t *testing.T) {
	pub := local.New(local.Config{Buffer: 4})
	defer pub.Close()
	srv := httptest.NewServer(NewHandler(pub))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events?topic=team/%2B/assignments", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	br := bufio.NewReader(resp.Body)
	assert.Equal(t, ": subscribed team/+/assignments", readLine(t, br))
	assert.Equal(t, "", readLine(t, br))

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Publish(ctx, "emergency/new", model.Event{Kind: model.EventNewRequest, RequestID: "r0", Timestamp: ts}))
	require.NoError(t, pub.Publish(ctx, "team/t1/assignments", model.Event{Kind: model.EventTeamAssigned, RequestID: "r1", TeamID: "t1", Timestamp: ts}))

	assert.Equal(t, "event: TEAM_ASSIGNED", readLine(t, br))
	data := readLine(t, br)
	assert.True(t, strings.HasPrefix(data, "data: "))
	assert.Contains(t, data, `"topic":"team/t1/assignments"`)
	assert.Contains(t, data, `"request_id":"r1"`)
}

func TestStreamEndsWhenBusCloses(t *testing.T) {
	pub := local.New(local.Config{})
	srv := httptest.NewServer(NewHandler(pub))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	br := bufio.NewReader(resp.Body)
	assert.Equal(t, ": subscribed #", readLine(t, br))
	readLine(t, br)

	require.NoError(t, pub.Close())
	_, err = br.ReadString('\n')
	assert.Error(t, err)
}
