// Package config loads and validates the engine configuration file.
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

	"github.com/kestrel-ops/kestrel/core/assign"
	"github.com/kestrel-ops/kestrel/core/intake"
	"github.com/kestrel-ops/kestrel/core/metrics"
	"github.com/kestrel-ops/kestrel/core/mission"
	"github.com/kestrel-ops/kestrel/core/planner"
	"github.com/kestrel-ops/kestrel/core/sched"
	"github.com/kestrel-ops/kestrel/core/track"
	"github.com/kestrel-ops/kestrel/infra/mqtt"
)

type Config struct {
	MQTT    mqtt.Config    `json:"mqtt"`
	Assign  assign.Config  `json:"assign"`
	Intake  intake.Config  `json:"intake"`
	Planner planner.Config `json:"planner"`
	Mission mission.Config `json:"mission"`
	Tracker track.Config   `json:"tracker"`
	Sched   sched.Config   `json:"sched"`
	Metrics metrics.Config `json:"metrics"`
	Logging LoggingConfig  `json:"logging"`
	Units   []UnitConfig   `json:"units"`
}

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
	if err := k.Load(env.Provider("KESTREL_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "kestrel_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.MQTT.SetDefaults()
	cfg.Assign.SetDefaults()
	cfg.Intake.SetDefaults()
	cfg.Planner.SetDefaults()
	cfg.Mission.SetDefaults()
	cfg.Tracker.SetDefaults()
	cfg.Sched.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	for i := range cfg.Units {
		if err := cfg.Units[i].Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}
