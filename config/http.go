package config

import "fmt"

// HTTPConfig configures the REST API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// BearerToken, when set, is required on every /api call.
	BearerToken string `json:"bearer_token"`
	// SSEBuffer is the per-subscriber event buffer of /api/events.
	SSEBuffer int `json:"sse_buffer"`
}

func (c *HTTPConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.SSEBuffer <= 0 {
		c.SSEBuffer = 64
	}
}

func (c HTTPConfig) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	return nil
}
