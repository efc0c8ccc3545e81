// Package service implements the cooperative runtime loop: four
// independently-scheduled periodic tasks (fast, bar, reconcile, health)
// running for the lifetime of the process. Where the loop this is
// grounded on uses a single-threaded asyncio.TaskGroup, this
// implementation uses one goroutine per task coordinated by
// context.Context cancellation and sync.WaitGroup, since Go has no
// single-thread cooperative scheduler to emulate directly — the contract
// it preserves is the same one the source states: a task's own error
// never kills the loop, and a stop signal terminates every task promptly.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/alejandrodnm/ftmorisk/internal/execution"
	"github.com/alejandrodnm/ftmorisk/internal/ports"
)

func auditServiceError(loop string, err error) domain.AuditEvent {
	return domain.AuditEvent{
		Name:    "service_error",
		Payload: map[string]interface{}{"loop": loop, "error": err.Error()},
	}
}

// Config sets each task's period. Zero/negative disables that task.
type Config struct {
	FastLoopInterval      time.Duration
	BarLoopInterval       time.Duration
	ReconcileInterval     time.Duration
	HealthCheckInterval   time.Duration
}

// DefaultConfig matches the source's defaults.
func DefaultConfig() Config {
	return Config{
		FastLoopInterval:    500 * time.Millisecond,
		BarLoopInterval:     60 * time.Second,
		ReconcileInterval:   30 * time.Second,
		HealthCheckInterval: 10 * time.Second,
	}
}

// SafeModeController is the minimal surface Loop needs to latch safe mode
// from a failing task.
type SafeModeController interface {
	Enable(ctx context.Context, reason string) error
}

// Loop runs the four periodic tasks until ctx is cancelled or Stop is
// called.
type Loop struct {
	Engine   *execution.Engine
	Config   Config
	SafeMode SafeModeController
	Audit    ports.AuditLog

	stop chan struct{}
	once sync.Once
}

// New constructs a Loop.
func New(engine *execution.Engine, cfg Config, safeMode SafeModeController, audit ports.AuditLog) *Loop {
	return &Loop{Engine: engine, Config: cfg, SafeMode: safeMode, Audit: audit, stop: make(chan struct{})}
}

// Stop signals every running task to terminate. Safe to call once; later
// calls are no-ops.
func (l *Loop) Stop() {
	l.once.Do(func() { close(l.stop) })
}

// Callback is one periodic task's unit of work.
type Callback func(ctx context.Context) error

// RunForever starts all four tasks and blocks until ctx is cancelled or
// Stop is called. fastCallback and barCallback are caller-supplied (a
// strategy's tick and bar-close hooks); reconcile and health are built in.
func (l *Loop) RunForever(ctx context.Context, fastCallback, barCallback Callback) error {
	var wg sync.WaitGroup
	tasks := []struct {
		name     string
		interval time.Duration
		callback Callback
	}{
		{"fast", l.Config.FastLoopInterval, fastCallback},
		{"bar", l.Config.BarLoopInterval, barCallback},
		{"reconcile", l.Config.ReconcileInterval, l.reconcileOnce},
		{"health", l.Config.HealthCheckInterval, l.healthOnce},
	}

	for _, task := range tasks {
		if task.interval <= 0 || task.callback == nil {
			continue
		}
		wg.Add(1)
		go func(name string, interval time.Duration, callback Callback) {
			defer wg.Done()
			l.runPeriodic(ctx, name, interval, callback)
		}(task.name, task.interval, task.callback)
	}

	wg.Wait()
	return ctx.Err()
}

func (l *Loop) runPeriodic(ctx context.Context, name string, interval time.Duration, callback Callback) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.stop:
			return
		default:
		}

		start := time.Now()
		if err := callback(ctx); err != nil {
			if l.SafeMode != nil {
				_ = l.SafeMode.Enable(ctx, fmt.Sprintf("%s loop error: %v", name, err))
			}
			if l.Audit != nil {
				_ = l.Audit.Log(ctx, auditServiceError(name, err))
			}
		}
		elapsed := time.Since(start)
		delay := interval - elapsed
		if delay < 0 {
			delay = 0
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-l.stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (l *Loop) reconcileOnce(ctx context.Context) error {
	_, err := l.Engine.Reconcile(ctx, time.Now())
	return err
}

func (l *Loop) healthOnce(ctx context.Context) error {
	if !l.Engine.CheckConnection(ctx) {
		if l.SafeMode != nil {
			return l.SafeMode.Enable(ctx, "Broker connection lost")
		}
	}
	return nil
}
