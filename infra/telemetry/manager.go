// Package telemetry ingests field reports from rescue teams over MQTT.
// Units publish their position on <prefix>/team/{id}/location and their duty
// status on <prefix>/team/{id}/duty; reports are applied through the
// dispatch controller so the single-writer rule holds.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/rescue/core/model"
	"github.com/kilianp07/rescue/infra/logger"
	infmqtt "github.com/kilianp07/rescue/infra/notify/mqtt"
)

// Config selects the topic prefix and QoS of field reports.
type Config struct {
	Enabled bool   `json:"enabled"`
	Prefix  string `json:"prefix"`
	QoS     byte   `json:"qos"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Prefix == "" {
		c.Prefix = "field"
	}
}

// TeamUpdater applies field reports.
type TeamUpdater interface {
	UpdateTeamLocation(ctx context.Context, teamID, location string) (model.RescueTeam, error)
	SetTeamDuty(ctx context.Context, teamID string, status model.TeamStatus) (model.RescueTeam, error)
}

type subscriber interface {
	IsConnected() bool
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	Disconnect(quiesce uint)
}

var newClient = func(opts *paho.ClientOptions) (subscriber, error) {
	cli := paho.NewClient(opts)
	if token := cli.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return cli, nil
}

// Manager subscribes to field reports and forwards them.
type Manager struct {
	cfg     Config
	cli     subscriber
	updater TeamUpdater
	log     logger.Logger

	reports *prometheus.CounterVec
	lastAt  prometheus.Gauge
}

// NewManager connects to MQTT with its own client id.
func NewManager(mqttCfg infmqtt.Config, cfg Config, updater TeamUpdater, reg prometheus.Registerer) (*Manager, error) {
	cfg.SetDefaults()
	mqttCfg.SetDefaults()
	opts, err := infmqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return nil, err
	}
	opts.SetClientID(mqttCfg.ClientID + "-telemetry")
	// the notifier owns the engine status topic
	opts.WillEnabled = false
	cli, err := newClient(opts)
	if err != nil {
		return nil, err
	}
	return newManager(cli, cfg, updater, reg)
}

func newManager(cli subscriber, cfg Config, updater TeamUpdater, reg prometheus.Registerer) (*Manager, error) {
	cfg.SetDefaults()
	m := &Manager{
		cfg:     cfg,
		cli:     cli,
		updater: updater,
		log:     logger.New("telemetry"),
		reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rescue_field_reports_total",
			Help: "Field reports received from teams",
		}, []string{"kind", "result"}),
		lastAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rescue_field_report_last_timestamp_seconds",
			Help: "Unix timestamp of the last applied field report",
		}),
	}
	if reg != nil {
		if err := reg.Register(m.reports); err != nil {
			return nil, err
		}
		if err := reg.Register(m.lastAt); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Topic returns the subscription pattern for a report kind.
func (m *Manager) Topic(kind string) string {
	return strings.TrimSuffix(m.cfg.Prefix, "/") + "/team/+/" + kind
}

// Start subscribes and runs until ctx is done.
func (m *Manager) Start(ctx context.Context) {
	handler := func(_ paho.Client, msg paho.Message) {
		if err := m.handle(ctx, msg.Topic(), msg.Payload()); err != nil {
			m.log.Warnf("field report on %s rejected: %v", msg.Topic(), err)
		}
	}
	for _, kind := range []string{"location", "duty"} {
		if token := m.cli.Subscribe(m.Topic(kind), m.cfg.QoS, handler); token.Wait() && token.Error() != nil {
			m.log.Errorf("subscribe %s: %v", kind, token.Error())
		}
	}
	<-ctx.Done()
	if m.cli.IsConnected() {
		m.cli.Disconnect(250)
	}
}

type report struct {
	Location string `json:"location"`
	Status   string `json:"status"`
}

func (m *Manager) handle(ctx context.Context, topic string, payload []byte) (err error) {
	teamID, kind := parseTopic(topic)
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		} else {
			m.lastAt.SetToCurrentTime()
		}
		m.reports.WithLabelValues(kind, result).Inc()
	}()
	if teamID == "" {
		return fmt.Errorf("no team id in topic %q", topic)
	}
	var r report
	if err := json.Unmarshal(payload, &r); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	switch kind {
	case "location":
		_, err = m.updater.UpdateTeamLocation(ctx, teamID, r.Location)
	case "duty":
		var st model.TeamStatus
		if st, err = model.ParseTeamStatus(r.Status); err != nil {
			return err
		}
		_, err = m.updater.SetTeamDuty(ctx, teamID, st)
	default:
		err = fmt.Errorf("unknown report kind %q", kind)
	}
	return err
}

// parseTopic extracts the team id and report kind from .../team/{id}/{kind}.
func parseTopic(topic string) (teamID, kind string) {
	parts := strings.Split(topic, "/")
	if len(parts) < 3 || parts[len(parts)-3] != "team" {
		return "", ""
	}
	return parts[len(parts)-2], parts[len(parts)-1]
}
