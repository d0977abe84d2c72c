package config

import (
	"fmt"

	"github.com/kilianp07/rescue/infra/notify/mqtt"
	"github.com/kilianp07/rescue/infra/telemetry"
)

// TelemetryConfig holds configuration for the team field-report feed.
type TelemetryConfig struct {
	Feed telemetry.Config `json:"feed"`
	MQTT mqtt.Config      `json:"mqtt"`
}

func (c *TelemetryConfig) SetDefaults() {
	if !c.Feed.Enabled {
		return
	}
	c.Feed.SetDefaults()
	c.MQTT.SetDefaults()
}

func (c TelemetryConfig) Validate() error {
	if !c.Feed.Enabled {
		return nil
	}
	if c.Feed.QoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	return c.MQTT.Validate()
}
