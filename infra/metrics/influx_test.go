package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/rescue/core/metrics"
	"github.com/kilianp07/rescue/core/model"
)

func influxServer(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()
	var (
		mu     sync.Mutex
		bodies []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, strings.TrimSpace(string(data)))
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), bodies...)
	}
}

func TestInfluxSink_RecordAssignment(t *testing.T) {
	srv, bodies := influxServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	ev := coremetrics.AssignmentEvent{
		RequestID:  "r1",
		TeamID:     "t1",
		Capability: model.CapabilityFire,
		Priority:   model.PriorityHigh,
		Mode:       coremetrics.AssignAuto,
		Wait:       90 * time.Second,
		Time:       now,
	}
	if err := sink.RecordAssignment(ev); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("team_assigned").
		AddTag("capability", "FIRE").
		AddTag("priority", "HIGH").
		AddTag("mode", "auto").
		AddTag("team_id", "t1").
		AddField("request_id", "r1").
		AddField("wait_s", 90.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	got := bodies()
	if len(got) != 1 || got[0] != expected {
		t.Errorf("unexpected body: %#v", got)
	}
}

func TestInfluxSink_RecordTransitionAndFailures(t *testing.T) {
	srv, bodies := influxServer(t)
	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Unix(1700000000, 0)
	sink.now = func() time.Time { return now }

	if err := sink.RecordTransition(coremetrics.TransitionEvent{RequestID: "r1", From: model.RequestPending, To: model.RequestCancelled, Capability: model.CapabilityCrime, Time: now}); err != nil {
		t.Fatalf("transition: %v", err)
	}
	if err := sink.RecordPublishFailure("mqtt", "emergency/status/r1"); err != nil {
		t.Fatalf("publish failure: %v", err)
	}
	if err := sink.RecordAutoAssign(model.CapabilityFire, coremetrics.OutcomeNoTeam); err != nil {
		t.Fatalf("auto assign: %v", err)
	}
	if err := sink.RecordOperation("assign", 1500*time.Microsecond, errors.New("x")); err != nil {
		t.Fatalf("operation: %v", err)
	}
	got := bodies()
	if len(got) != 4 {
		t.Fatalf("expected 4 writes, got %d", len(got))
	}
	for _, part := range []string{"request_transition,", "from=PENDING", "to=CANCELLED", "capability=CRIME", `request_id="r1"`} {
		if !strings.Contains(got[0], part) {
			t.Errorf("transition line %q lacks %q", got[0], part)
		}
	}
	if !strings.Contains(got[1], `topic=emergency/status/+`) {
		t.Errorf("topic not normalised: %s", got[1])
	}
	if !strings.Contains(got[2], "outcome=no_team") {
		t.Errorf("unexpected auto assign line: %s", got[2])
	}
	if !strings.Contains(got[3], "latency_ms=1.5") || !strings.Contains(got[3], "ok=false") {
		t.Errorf("unexpected operation line: %s", got[3])
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
