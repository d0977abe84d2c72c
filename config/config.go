package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/rescue/core/dispatch"
	"github.com/kilianp07/rescue/core/factory"
	"github.com/kilianp07/rescue/core/metrics"
)

type Config struct {
	Logging   LoggingConfig          `json:"logging"`
	Dispatch  dispatch.Config        `json:"dispatch"`
	Store     factory.ModuleConfig   `json:"store"`
	Notifiers []factory.ModuleConfig `json:"notifiers"`
	Journal   JournalConfig          `json:"journal"`
	Metrics   metrics.Config         `json:"metrics"`
	HTTP      HTTPConfig             `json:"http"`
	Sentry    SentryConfig           `json:"sentry"`
	Telemetry TelemetryConfig        `json:"telemetry"`
}

// Load reads a YAML or JSON file, applies K_ environment overrides and
// validates the result. K_HTTP__ADDR=:9000 overrides http.addr.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Logging.SetDefaults()
	c.Dispatch.SetDefaults()
	if c.Store.Type == "" {
		c.Store.Type = "memory"
	}
	if len(c.Notifiers) == 0 {
		c.Notifiers = []factory.ModuleConfig{{Type: "local"}}
	}
	c.Journal.SetDefaults()
	c.HTTP.SetDefaults()
	c.Sentry.SetDefaults()
	c.Telemetry.SetDefaults()
}

func (c Config) Validate() error {
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	for i, n := range c.Notifiers {
		if n.Type == "" {
			return fmt.Errorf("notifiers[%d]: type is required", i)
		}
	}
	if err := c.Journal.Validate(); err != nil {
		return fmt.Errorf("journal: %w", err)
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	return nil
}
