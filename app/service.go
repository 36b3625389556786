// Package app wires the engine components together from the configuration.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/kestrel-ops/kestrel/config"
	"github.com/kestrel-ops/kestrel/core/assign"
	"github.com/kestrel-ops/kestrel/core/events"
	"github.com/kestrel-ops/kestrel/core/fleet"
	"github.com/kestrel-ops/kestrel/core/intake"
	coremetrics "github.com/kestrel-ops/kestrel/core/metrics"
	"github.com/kestrel-ops/kestrel/core/mission"
	"github.com/kestrel-ops/kestrel/core/model"
	"github.com/kestrel-ops/kestrel/core/planner"
	"github.com/kestrel-ops/kestrel/core/sched"
	"github.com/kestrel-ops/kestrel/infra/logger"
	"github.com/kestrel-ops/kestrel/infra/metrics"
	"github.com/kestrel-ops/kestrel/infra/mqtt"
	"github.com/kestrel-ops/kestrel/internal/eventbus"
)

// Service orchestrates the assignment engine, mission manager and transport.
type Service struct {
	Fleet    *fleet.Registry
	Queue    *intake.Queue
	Engine   *assign.Engine
	Missions *mission.Manager
	Sched    *sched.Scheduler

	client      *mqtt.PahoClient
	bus         *eventbus.Bus
	log         logger.Logger
	promEnabled bool
	promPort    string
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	cfg.Logging.Apply()
	logg := logger.New("service")

	var sinks []coremetrics.MetricsSink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics)
		sinks = append(sinks, sink)
	}
	var sink coremetrics.MetricsSink = coremetrics.NopSink{}
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	bus := eventbus.New()
	reg := fleet.NewRegistry(cfg.Tracker, logger.New("fleet"))
	for _, uc := range cfg.Units {
		if err := reg.Register(uc.ToModel()); err != nil {
			return nil, fmt.Errorf("register unit: %w", err)
		}
	}
	if fr, ok := sink.(coremetrics.FleetSizeRecorder); ok {
		if err := fr.RecordFleetSize(len(cfg.Units)); err != nil {
			logg.Errorf("record fleet size: %v", err)
		}
	}

	queue := intake.New(cfg.Intake)
	pl := planner.New(cfg.Planner, nil)

	svc := &Service{
		Fleet:       reg,
		Queue:       queue,
		Sched:       sched.New(cfg.Sched, logger.New("sched")),
		bus:         bus,
		log:         logg,
		promEnabled: cfg.Metrics.PrometheusEnabled,
		promPort:    cfg.Metrics.PrometheusPort,
	}

	client, err := mqtt.NewPahoClient(cfg.MQTT, svc.onAlert, svc.onTelemetry)
	if err != nil {
		return nil, fmt.Errorf("mqtt client: %w", err)
	}
	svc.client = client
	svc.Missions = mission.NewManager(cfg.Mission, reg, pl, queue, client, bus, sink, logger.New("mission"))
	svc.Engine = assign.NewEngine(cfg.Assign, queue, reg, svc.Missions, bus, sink, nil, logger.New("assign"))
	return svc, nil
}

func (s *Service) onAlert(a model.Alert) {
	s.Queue.Push(a)
	s.bus.Publish(events.AlertEvent{Alert: a})
	s.Sched.Submit("assign", s.Engine.Sweep)
}

func (s *Service) onTelemetry(t model.Telemetry) {
	s.Sched.Submit("telemetry", func(now time.Time) {
		if _, err := s.Fleet.ObserveTelemetry(t); err != nil {
			s.log.Warnf("telemetry rejected: %v", err)
			return
		}
		s.Missions.HandleTelemetry(t, now)
	})
}

// CancelAlert withdraws an alert on external request: queued alerts are
// dropped as canceled, alerts already under investigation get their mission
// flagged for cooperative abort.
func (s *Service) CancelAlert(id string) bool {
	if a, ok := s.Queue.Remove(id); ok {
		a.Status = model.AlertCanceled
		s.bus.Publish(events.AlertEvent{Alert: a})
		return true
	}
	return s.Missions.AbortByAlert(id)
}

// Run starts the scheduler loop and blocks until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	err := s.Sched.Run(ctx, func(now time.Time) {
		s.Engine.Sweep(now)
		s.Missions.Tick(now)
	})
	if err == context.Canceled {
		return nil
	}
	return err
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	s.client.Disconnect()
	s.bus.Close()
	return nil
}
