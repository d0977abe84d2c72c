//go:build integration

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kilianp07/rescue/app"
	"github.com/kilianp07/rescue/config"
	"github.com/kilianp07/rescue/core/factory"
	coremetrics "github.com/kilianp07/rescue/core/metrics"
	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/infra/notify/mqtt"
	"github.com/kilianp07/rescue/infra/telemetry"
)

const (
	influxOrg    = "rescue"
	influxBucket = "dispatch"
	influxToken  = "e2e-token"
)

// startInflux starts an InfluxDB 2.7 container in setup mode and returns it
// along with the base URL.
func startInflux(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "influxdb:2.7",
		ExposedPorts: []string{"8086/tcp"},
		Env: map[string]string{
			"DOCKER_INFLUXDB_INIT_MODE":        "setup",
			"DOCKER_INFLUXDB_INIT_USERNAME":    "admin",
			"DOCKER_INFLUXDB_INIT_PASSWORD":    "admin-password",
			"DOCKER_INFLUXDB_INIT_ORG":         influxOrg,
			"DOCKER_INFLUXDB_INIT_BUCKET":      influxBucket,
			"DOCKER_INFLUXDB_INIT_ADMIN_TOKEN": influxToken,
		},
		WaitingFor: wait.ForHTTP("/health").WithPort("8086/tcp").WithStartupTimeout(60 * time.Second),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start influx container: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "8086")
	return cont, fmt.Sprintf("http://%s:%s", host, port.Port())
}

// startMosquitto spins up a basic Mosquitto broker for tests.
func startMosquitto(ctx context.Context, t *testing.T) (tc.Container, string) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "eclipse-mosquitto:2.0",
		ExposedPorts: []string{"1883/tcp"},
		Cmd:          []string{"mosquitto", "-c", "/mosquitto-no-auth.conf"},
		WaitingFor:   wait.ForListeningPort("1883/tcp"),
	}
	cont, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Skipf("unable to start mosquitto: %v", err)
	}
	host, _ := cont.Host(ctx)
	port, _ := cont.MappedPort(ctx, "1883")
	return cont, fmt.Sprintf("tcp://%s:%s", host, port.Port())
}

func coremetricsConfig(influxURL string) coremetrics.Config {
	return coremetrics.Config{Sinks: []factory.ModuleConfig{{
		Type: "influx",
		Conf: map[string]any{"url": influxURL, "token": influxToken, "org": influxOrg, "bucket": influxBucket},
	}}}
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func TestDispatchEndToEnd(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	influxCont, influxURL := startInflux(ctx, t)
	defer influxCont.Terminate(ctx) //nolint:errcheck
	mqttCont, broker := startMosquitto(ctx, t)
	defer mqttCont.Terminate(ctx) //nolint:errcheck

	cfg := &config.Config{
		Notifiers: []factory.ModuleConfig{
			{Type: "local"},
			{Type: "mqtt", Conf: map[string]any{"broker": broker, "client_id": "rescue-e2e", "topic_prefix": "city", "qos": 1}},
		},
		Journal: config.JournalConfig{Backend: "none"},
		Metrics: coremetricsConfig(influxURL),
		Telemetry: config.TelemetryConfig{
			Feed: telemetry.Config{Enabled: true, QoS: 1},
			MQTT: mqtt.Config{Broker: broker, ClientID: "rescue-e2e"},
		},
	}
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())

	svc, err := app.New(cfg, app.WithRegisterer(prometheus.NewRegistry()))
	require.NoError(t, err)
	defer svc.Close()
	svc.StartBackground(ctx)
	srv := httptest.NewServer(svc.Handler())
	defer srv.Close()

	field := paho.NewClient(paho.NewClientOptions().AddBroker(broker).SetClientID("field-unit"))
	tok := field.Connect()
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())
	defer field.Disconnect(250)

	assignments := make(chan paho.Message, 4)
	tok = field.Subscribe("city/team/+/assignments", 1, func(_ paho.Client, m paho.Message) { assignments <- m })
	require.True(t, tok.WaitTimeout(10*time.Second))
	require.NoError(t, tok.Error())

	resp := postJSON(t, srv.URL+"/api/teams", map[string]any{
		"id": "engine-9", "name": "Engine 9", "capabilities": []string{"FIRE"}, "capacity": 4,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	// field unit goes off duty and comes back with a new position; the
	// report is repeated until the feed subscription is in place
	require.Eventually(t, func() bool {
		field.Publish("field/team/engine-9/duty", 1, false, `{"status":"OFF_DUTY"}`).Wait()
		tm, err := svc.Controller.GetTeam(ctx, "engine-9")
		return err == nil && tm.Status == model.TeamOffDuty
	}, 10*time.Second, 100*time.Millisecond)
	field.Publish("field/team/engine-9/location", 1, false, `{"location":"Pier 4"}`).Wait()
	field.Publish("field/team/engine-9/duty", 1, false, `{"status":"AVAILABLE"}`).Wait()
	require.Eventually(t, func() bool {
		tm, err := svc.Controller.GetTeam(ctx, "engine-9")
		return err == nil && tm.Status == model.TeamAvailable && tm.CurrentLocation == "Pier 4"
	}, 10*time.Second, 100*time.Millisecond)

	resp = postJSON(t, srv.URL+"/api/requests", map[string]any{"capability": "FIRE", "priority": "CRITICAL", "location": "Warehouse 12"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var req model.EmergencyRequest
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&req))
	assert.Equal(t, model.RequestAssigned, req.Status)

	select {
	case m := <-assignments:
		assert.Equal(t, "city/team/engine-9/assignments", m.Topic())
		var ev model.Event
		require.NoError(t, json.Unmarshal(m.Payload(), &ev))
		assert.Equal(t, req.ID, ev.RequestID)
		assert.Equal(t, model.EventTeamAssigned, ev.Kind)
	case <-time.After(10 * time.Second):
		t.Fatal("no assignment received over MQTT")
	}

	cli := NewInfluxClient(influxURL, influxOrg, influxBucket, influxToken)
	defer cli.Close()
	require.Eventually(t, func() bool {
		n, err := cli.CountPoints(ctx, "team_assigned")
		return err == nil && n > 0
	}, 20*time.Second, 500*time.Millisecond)
}
