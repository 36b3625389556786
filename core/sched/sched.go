// Package sched merges periodic ticks and discrete events into a single work
// queue consumed by a fixed worker pool. Submitting never blocks the caller:
// when the queue is full a queued tick is evicted first, since ticks are
// periodic and individually disposable.
package sched

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kestrel-ops/kestrel/core/logger"
)

// KindTick marks tasks generated by the periodic ticker.
const KindTick = "tick"

// Config defines worker pool sizing and tick cadence.
type Config struct {
	Workers      int           `json:"workers"`
	QueueSize    int           `json:"queue_size"`
	TickInterval time.Duration `json:"tick_interval"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.TickInterval <= 0 {
		c.TickInterval = time.Second
	}
}

type task struct {
	kind string
	fn   func(time.Time)
}

// Scheduler is the engine work queue.
type Scheduler struct {
	cfg     Config
	tasks   chan task
	log     logger.Logger
	closed  atomic.Bool
	dropped atomic.Int64
}

// New creates a scheduler. Run must be called for tasks to execute.
func New(cfg Config, log logger.Logger) *Scheduler {
	cfg.SetDefaults()
	return &Scheduler{cfg: cfg, tasks: make(chan task, cfg.QueueSize), log: log}
}

// Submit enqueues a task without blocking. It returns false when the task had
// to be dropped or the scheduler has shut down.
func (s *Scheduler) Submit(kind string, fn func(time.Time)) bool {
	if s.closed.Load() {
		return false
	}
	t := task{kind: kind, fn: fn}
	select {
	case s.tasks <- t:
		return true
	default:
	}
	if kind == KindTick {
		s.dropped.Add(1)
		s.log.Debugf("queue full, dropped tick")
		return false
	}
	// make room by evicting one queued tick
	select {
	case old := <-s.tasks:
		if old.kind != KindTick {
			select {
			case s.tasks <- old:
			default:
				s.dropped.Add(1)
				s.log.Warnf("queue full, dropped %s task", old.kind)
			}
		}
	default:
	}
	select {
	case s.tasks <- t:
		return true
	default:
		s.dropped.Add(1)
		s.log.Warnf("queue full, dropped %s task", kind)
		return false
	}
}

// Dropped returns the number of tasks discarded so far.
func (s *Scheduler) Dropped() int64 { return s.dropped.Load() }

// Len returns the number of queued tasks.
func (s *Scheduler) Len() int { return len(s.tasks) }

// Run starts the worker pool and the periodic ticker, then blocks until the
// context is canceled and all workers have stopped. onTick may be nil.
func (s *Scheduler) Run(ctx context.Context, onTick func(time.Time)) error {
	var wg sync.WaitGroup
	for i := 0; i < s.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case t := <-s.tasks:
					t.fn(time.Now())
				}
			}
		}()
	}

	if onTick != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticker := time.NewTicker(s.cfg.TickInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					s.Submit(KindTick, onTick)
				}
			}
		}()
	}

	<-ctx.Done()
	s.closed.Store(true)
	wg.Wait()
	return ctx.Err()
}
