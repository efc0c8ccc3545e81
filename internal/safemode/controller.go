// Package safemode implements the process-crash-surviving safe-mode latch:
// once tripped, new order placement stays blocked until an operator
// explicitly clears it, regardless of whether the condition that tripped
// it has since resolved.
package safemode

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/alejandrodnm/ftmorisk/internal/ports"
)

// Controller wraps a persisted SafeModeState with the latch semantics:
// Enable while already active is a no-op (the latch does not refresh its
// reason or timestamp), matching the source's "latched" mode.
type Controller struct {
	Store   ports.SafeModeStore
	Monitor ports.Monitor
	Audit   ports.AuditLog
	RunID   string

	mu    sync.Mutex
	state domain.SafeModeState
}

// New constructs a Controller and loads any persisted state from store.
func New(ctx context.Context, store ports.SafeModeStore, monitor ports.Monitor, audit ports.AuditLog, runID string) (*Controller, error) {
	state, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("safemode.New: load: %w", err)
	}
	return &Controller{Store: store, Monitor: monitor, Audit: audit, RunID: runID, state: state}, nil
}

// State returns the current latch state.
func (c *Controller) State() domain.SafeModeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Enable trips the latch with reason, unless it is already active (the
// latch never refreshes once tripped).
func (c *Controller) Enable(ctx context.Context, reason string) error {
	c.mu.Lock()
	if c.state.Active {
		c.mu.Unlock()
		return nil
	}
	c.state.Trip(domain.SafeModeServiceError, reason, time.Now().UTC(), c.RunID)
	state := c.state
	c.mu.Unlock()

	if err := c.Store.Save(ctx, state); err != nil {
		return fmt.Errorf("safemode.Controller.Enable: save: %w", err)
	}
	if c.Monitor != nil {
		c.Monitor.SafeMode(reason)
	}
	if c.Audit != nil {
		_ = c.Audit.Log(ctx, domain.AuditEvent{
			Name:    domain.EventSafeModeTripped,
			RunID:   c.RunID,
			Payload: domain.SafeModePayload{Reason: state.Reason, Detail: reason},
		})
	}
	return nil
}

// Clear releases the latch. Only an explicit operator reset may call
// this.
func (c *Controller) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.state = domain.SafeModeState{}
	c.mu.Unlock()

	if err := c.Store.Save(ctx, domain.SafeModeState{}); err != nil {
		return fmt.Errorf("safemode.Controller.Clear: save: %w", err)
	}
	if c.Audit != nil {
		_ = c.Audit.Log(ctx, domain.AuditEvent{Name: domain.EventSafeModeCleared, RunID: c.RunID})
	}
	return nil
}
