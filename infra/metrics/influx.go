package metrics

import (
	"context"
	"net/http"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/rescue/core/metrics"
	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/infra/logger"
)

// InfluxSink writes dispatch events to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
	now      func() time.Time
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
		now:      time.Now,
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.Sink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

func (s *InfluxSink) write(p *write.Point) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordAssignment writes one assignment point.
func (s *InfluxSink) RecordAssignment(ev coremetrics.AssignmentEvent) error {
	p := write.NewPointWithMeasurement("team_assigned").
		AddTag("capability", string(ev.Capability)).
		AddTag("priority", string(ev.Priority)).
		AddTag("mode", string(ev.Mode)).
		AddTag("team_id", ev.TeamID).
		AddField("request_id", ev.RequestID).
		AddField("wait_s", ev.Wait.Seconds()).
		SetTime(ev.Time)
	return s.write(p)
}

// RecordAutoAssign writes the outcome of an auto-assignment.
func (s *InfluxSink) RecordAutoAssign(c model.Capability, outcome coremetrics.AutoAssignOutcome) error {
	p := write.NewPointWithMeasurement("auto_assign").
		AddTag("capability", string(c)).
		AddTag("outcome", string(outcome)).
		AddField("count", 1).
		SetTime(s.now())
	return s.write(p)
}

// RecordTransition writes a status change.
func (s *InfluxSink) RecordTransition(ev coremetrics.TransitionEvent) error {
	p := write.NewPointWithMeasurement("request_transition").
		AddTag("from", string(ev.From)).
		AddTag("to", string(ev.To)).
		AddTag("capability", string(ev.Capability)).
		AddField("request_id", ev.RequestID)
	if ev.TeamID != "" {
		p = p.AddField("team_id", ev.TeamID)
	}
	return s.write(p.SetTime(ev.Time))
}

// RecordPublishFailure writes a failed event delivery.
func (s *InfluxSink) RecordPublishFailure(transport, topic string) error {
	p := write.NewPointWithMeasurement("publish_failure").
		AddTag("transport", transport).
		AddTag("topic", TopicClass(topic)).
		AddField("topic_full", topic).
		SetTime(s.now())
	return s.write(p)
}

// RecordOperation writes lifecycle operation latency.
func (s *InfluxSink) RecordOperation(op string, d time.Duration, err error) error {
	p := write.NewPointWithMeasurement("operation").
		AddTag("op", op).
		AddTag("ok", boolTag(err == nil)).
		AddField("latency_ms", float64(d.Microseconds())/1000).
		SetTime(s.now())
	return s.write(p)
}

// Close releases the client.
func (s *InfluxSink) Close() error {
	s.client.Close()
	return nil
}

func boolTag(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
