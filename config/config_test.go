package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := `mqtt:
  broker: "tcp://localhost:1883"
  client_id: "kestrel-1"
  username: "user"
  password: "pass"
  use_tls: false
assign:
  alpha: 1.0
  beta: 0.4
  gamma: 0.6
  min_battery: 0.25
intake:
  base_backoff: 2s
  max_backoff: 1m
  max_age: 15m
planner:
  sample_step_m: 40
  grid:
    resolution_m: 20
mission:
  arrival_radius_m: 75
  battery_critical: 0.1
  onsite_timeout: 5m
  ack_timeout: 3s
tracker:
  measurement_noise_m: 8
sched:
  workers: 8
  tick_interval: 500ms
metrics:
  prometheus_enabled: true
  prometheus_port: ":9100"
logging:
  level: "debug"
units:
  - id: "u1"
    lat: 48.85
    lon: 2.35
    battery: 0.9
    cruise_speed_ms: 15
  - id: "u2"
    lat: 48.86
    lon: 2.36
    home_lat: 48.87
    home_lon: 2.37
    battery: 0.8
    cruise_speed_ms: 12
    turn_radius_m: 60
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	checks := []struct {
		name string
		got  any
		want any
	}{
		{"broker", cfg.MQTT.Broker, "tcp://localhost:1883"},
		{"client_id", cfg.MQTT.ClientID, "kestrel-1"},
		{"alert_topic_default", cfg.MQTT.AlertTopic, "kestrel/alerts"},
		{"assign.beta", cfg.Assign.Beta, 0.4},
		{"assign.min_battery", cfg.Assign.MinBattery, 0.25},
		{"intake.base_backoff", cfg.Intake.BaseBackoff, 2 * time.Second},
		{"intake.max_age", cfg.Intake.MaxAge, 15 * time.Minute},
		{"planner.sample_step_m", cfg.Planner.SampleStepM, 40.0},
		{"planner.grid.resolution_m", cfg.Planner.Grid.ResolutionM, 20.0},
		{"mission.arrival_radius_m", cfg.Mission.ArrivalRadiusM, 75.0},
		{"mission.onsite_timeout", cfg.Mission.OnsiteTimeout, 5 * time.Minute},
		{"mission.ack_timeout", cfg.Mission.AckTimeout, 3 * time.Second},
		{"mission.battery_recovered_default", cfg.Mission.BatteryRecovered, 0.7},
		{"tracker.measurement_noise_m", cfg.Tracker.MeasurementNoiseM, 8.0},
		{"tracker.stale_after_default", cfg.Tracker.StaleAfter, 10 * time.Second},
		{"sched.workers", cfg.Sched.Workers, 8},
		{"sched.tick_interval", cfg.Sched.TickInterval, 500 * time.Millisecond},
		{"metrics.prometheus_port", cfg.Metrics.PrometheusPort, ":9100"},
		{"logging.level", cfg.Logging.Level, "debug"},
		{"units", len(cfg.Units), 2},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s mismatch: %v", c.name, c.got)
		}
	}
	u2 := cfg.Units[1].ToModel()
	if u2.Caps.TurnRadiusM != 60 || u2.Home.Lat != 48.87 {
		t.Errorf("unit conversion mismatch: %+v", u2)
	}
	u1 := cfg.Units[0].ToModel()
	if u1.Home != u1.Position {
		t.Errorf("omitted home must default to position")
	}
}

func TestLoadRejectsUnknownExtension(t *testing.T) {
	if _, err := Load("config.toml"); err == nil {
		t.Fatalf("expected unsupported format error")
	}
}

func TestLoadRejectsBadUnit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{"units":[{"id":"u1","lat":48.85,"lon":2.35,"battery":2.0,"cruise_speed_ms":15}]}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoadRejectsBadLogLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	data := `{"logging":{"level":"verbose"}}`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected log level error")
	}
}
