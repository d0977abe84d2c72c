package metrics

import "github.com/kilianp07/rescue/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusPort is the listen address of the /metrics endpoint, for
	// example ":9090". Empty disables the endpoint.
	PrometheusPort string `json:"prometheus_port"`
}
