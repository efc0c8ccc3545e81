// Package governor implements the risk governor: the latched decision
// layer sitting between a strategy's order intents and the execution
// engine. It owns no broker or journal state, only the in-memory disabled
// latch and whatever audit/monitor ports it is given.
package governor

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/alejandrodnm/ftmorisk/internal/metrics"
	"github.com/alejandrodnm/ftmorisk/internal/ports"
)

// Decision is the governor's verdict on either a state check or a
// pre-trade check.
type Decision struct {
	Allow      bool
	Reason     string
	Flatten    bool
	ReduceOnly bool
}

// Governor evaluates account state against a frozen RuleSpec and latches
// into a disabled state on any hard violation. Disabled is cleared only by
// an explicit ResetDisable call, never automatically.
type Governor struct {
	Engine   *domain.RuleEngine
	Audit    ports.AuditLog
	Monitor  ports.Monitor

	disabled       bool
	disableReason  string
}

// New constructs a Governor for engine, with optional audit/monitor ports
// (either may be nil).
func New(engine *domain.RuleEngine, audit ports.AuditLog, monitor ports.Monitor) *Governor {
	return &Governor{Engine: engine, Audit: audit, Monitor: monitor}
}

// Disable latches the governor into a refuse-and-flatten state.
func (g *Governor) Disable(reason string) {
	g.disabled = true
	g.disableReason = reason
}

// ResetDisable clears the latch. Only an operator-triggered reset may call
// this.
func (g *Governor) ResetDisable() {
	g.disabled = false
	g.disableReason = ""
}

// Disabled reports whether the governor is currently latched, and why.
func (g *Governor) Disabled() (bool, string) {
	return g.disabled, g.disableReason
}

// RuleHeadroom returns the remaining daily and max loss headroom for state.
func (g *Governor) RuleHeadroom(state *domain.RuleState) (daily, max float64) {
	equity := state.EffectiveEquity()
	daily = domain.RemainingDailyLoss(equity, state.DayStartEquity, g.Engine.Spec.MaxDailyLoss)
	max = domain.RemainingMaxLoss(equity, state.InitialBalance, g.Engine.Spec.MaxTotalLoss)
	return daily, max
}

func (g *Governor) log(ctx context.Context, name string, payload interface{}) {
	if g.Audit == nil {
		return
	}
	_ = g.Audit.Log(ctx, domain.AuditEvent{Name: name, Payload: payload})
}

func (g *Governor) effectiveBuffers(state *domain.RuleState) (daily, max float64, inWindow bool, err error) {
	zone, err := domain.LoadZone(g.Engine.Spec.Timezone)
	if err != nil {
		return 0, 0, false, err
	}
	inWindow = domain.InMidnightWindow(state.Now, zone, g.Engine.Spec.MidnightWindowMinutes)
	if inWindow && g.Engine.Spec.MidnightPolicy == domain.MidnightBuffer {
		daily, max = g.Engine.Spec.MidnightBuffers()
		return daily, max, inWindow, nil
	}
	daily = g.Engine.Spec.EffectiveDailyBuffer()
	max = g.Engine.Spec.EffectiveMaxBuffer()
	return daily, max, inWindow, nil
}

// EvaluateState runs the full per-tick compliance check: hard violations,
// the daily/max buffers, and the midnight-window policy overlay. A hard
// violation latches Disable and returns a flatten decision; a breached
// buffer returns a refusal that does not latch; otherwise the result is
// Healthy.
func (g *Governor) EvaluateState(ctx context.Context, state *domain.RuleState) (Decision, error) {
	zone, err := domain.LoadZone(g.Engine.Spec.Timezone)
	if err != nil {
		return Decision{}, err
	}
	state.RollDayIfNeeded(zone)
	state.UpdateDrawdownStart(g.Engine.Spec.DrawdownLimitPct)

	if g.disabled {
		reason := g.disableReason
		if reason == "" {
			reason = "Trading disabled"
		}
		decision := Decision{Allow: false, Reason: reason, Flatten: true}
		if g.Monitor != nil {
			g.Monitor.FlattenTrigger(reason)
		}
		g.log(ctx, "state_check", map[string]interface{}{"allow": false, "reason": reason, "flatten": true})
		return decision, nil
	}

	violations, err := g.Engine.CheckViolation(state)
	if err != nil {
		return Decision{}, err
	}
	if len(violations) > 0 {
		for _, v := range violations {
			metrics.RuleViolations.WithLabelValues(string(v.Code)).Inc()
		}
		reason := violations[0].Message
		g.Disable(reason)
		decision := Decision{Allow: false, Reason: reason, Flatten: true}
		if g.Monitor != nil {
			g.Monitor.FlattenTrigger(reason)
		}
		g.log(ctx, "state_check", map[string]interface{}{"allow": false, "reason": reason, "flatten": true})
		return decision, nil
	}

	daily, max := g.RuleHeadroom(state)
	if daily <= 0 || max <= 0 {
		reason := "Hard limit reached"
		g.Disable(reason)
		decision := Decision{Allow: false, Reason: reason, Flatten: true}
		if g.Monitor != nil {
			g.Monitor.FlattenTrigger(reason)
		}
		g.log(ctx, "state_check", map[string]interface{}{"allow": false, "reason": reason, "flatten": true})
		return decision, nil
	}

	dailyBuffer, maxBuffer, inWindow, err := g.effectiveBuffers(state)
	if err != nil {
		return Decision{}, err
	}

	if inWindow && g.Engine.Spec.MidnightPolicy == domain.MidnightFlatten {
		decision := Decision{Allow: false, Reason: "Midnight flatten policy active", Flatten: true}
		if g.Monitor != nil {
			g.Monitor.FlattenTrigger(decision.Reason)
		}
		g.log(ctx, "state_check", map[string]interface{}{"allow": false, "reason": decision.Reason, "flatten": true})
		return decision, nil
	}
	if inWindow && g.Engine.Spec.MidnightPolicy == domain.MidnightReduce {
		decision := Decision{Allow: false, Reason: "Midnight reduce-only policy active", ReduceOnly: true}
		g.log(ctx, "state_check", map[string]interface{}{"allow": false, "reason": decision.Reason, "reduce_only": true})
		return decision, nil
	}

	if daily <= dailyBuffer {
		if g.Monitor != nil {
			g.Monitor.RuleBufferBreach("daily", daily)
		}
		decision := Decision{Allow: false, Reason: "Daily loss buffer reached"}
		g.log(ctx, "state_check", map[string]interface{}{"allow": false, "reason": decision.Reason})
		return decision, nil
	}
	if max <= maxBuffer {
		if g.Monitor != nil {
			g.Monitor.RuleBufferBreach("max", max)
		}
		decision := Decision{Allow: false, Reason: "Max loss buffer reached"}
		g.log(ctx, "state_check", map[string]interface{}{"allow": false, "reason": decision.Reason})
		return decision, nil
	}

	decision := Decision{Allow: true, Reason: "Healthy"}
	g.log(ctx, "state_check", map[string]interface{}{"allow": true, "reason": decision.Reason})
	return decision, nil
}

// CheckInactivity returns human-readable warnings for approaching (but not
// yet breaching) the inactivity and prolonged-drawdown limits, notifying
// the monitor for each.
func (g *Governor) CheckInactivity(ctx context.Context, state *domain.RuleState) ([]string, error) {
	zone, err := domain.LoadZone(g.Engine.Spec.Timezone)
	if err != nil {
		return nil, err
	}
	var warnings []string

	if days, ok := state.DaysSinceLastTrade(zone); ok {
		warnAfter := g.Engine.Spec.MaxDaysWithoutTrade - g.Engine.Spec.InactivityWarningDays
		if warnAfter < 0 {
			warnAfter = 0
		}
		if days >= warnAfter {
			message := fmt.Sprintf("Inactivity warning: %d days since last trade", days)
			warnings = append(warnings, message)
			if g.Monitor != nil {
				g.Monitor.InactivityWarning(message)
			}
			g.log(ctx, "inactivity_warning", map[string]interface{}{"kind": "no_trade", "days": days})
		}
	}

	if days, ok := state.DrawdownDays(zone); ok {
		warnAfter := g.Engine.Spec.DrawdownDaysLimit - g.Engine.Spec.DrawdownWarningDays
		if warnAfter < 0 {
			warnAfter = 0
		}
		if days >= warnAfter {
			message := fmt.Sprintf("Drawdown duration warning: %d days", days)
			warnings = append(warnings, message)
			if g.Monitor != nil {
				g.Monitor.InactivityWarning(message)
			}
			g.log(ctx, "inactivity_warning", map[string]interface{}{"kind": "drawdown", "days": days})
		}
	}

	return warnings, nil
}

// PreTrade evaluates a single order intent: first the full state check
// (with a reduce-only carve-out for flatten/reduce latches), then the rule
// engine's per-order hard checks, then the buffer-margin overlay.
func (g *Governor) PreTrade(ctx context.Context, intent domain.OrderIntent, state *domain.RuleState) (Decision, error) {
	stateCheck, err := g.EvaluateState(ctx, state)
	if err != nil {
		return Decision{}, err
	}
	if !stateCheck.Allow {
		if intent.ReduceOnly && (stateCheck.ReduceOnly || stateCheck.Flatten) {
			decision := Decision{Allow: true, Reason: "Reduce-only allowed", Flatten: stateCheck.Flatten, ReduceOnly: true}
			g.log(ctx, "pre_trade", map[string]interface{}{
				"allow": true, "reason": decision.Reason, "flatten": decision.Flatten, "reduce_only": true,
				"symbol": intent.Symbol, "side": intent.Side, "volume": intent.Volume,
			})
			return decision, nil
		}
		g.log(ctx, "pre_trade", map[string]interface{}{
			"allow": stateCheck.Allow, "reason": stateCheck.Reason, "flatten": stateCheck.Flatten, "reduce_only": stateCheck.ReduceOnly,
			"symbol": intent.Symbol, "side": intent.Side, "volume": intent.Volume,
		})
		return stateCheck, nil
	}

	preTrade := g.Engine.PreTradeCheck(intent, state)
	if !preTrade.Allow {
		decision := Decision{Allow: false, Reason: preTrade.Reason}
		g.log(ctx, "pre_trade", map[string]interface{}{
			"allow": false, "reason": decision.Reason,
			"symbol": intent.Symbol, "side": intent.Side, "volume": intent.Volume,
		})
		return decision, nil
	}

	if intent.ReduceOnly {
		decision := Decision{Allow: true, Reason: "Allowed reduce-only", ReduceOnly: true}
		g.log(ctx, "pre_trade", map[string]interface{}{
			"allow": true, "reason": decision.Reason, "reduce_only": true,
			"symbol": intent.Symbol, "side": intent.Side, "volume": intent.Volume,
		})
		return decision, nil
	}

	daily, max := g.RuleHeadroom(state)
	dailyBuffer, maxBuffer, _, err := g.effectiveBuffers(state)
	if err != nil {
		return Decision{}, err
	}

	if intent.EstimatedRisk >= daily-dailyBuffer {
		decision := Decision{Allow: false, Reason: "Order would breach daily buffer"}
		g.log(ctx, "pre_trade", map[string]interface{}{
			"allow": false, "reason": decision.Reason,
			"symbol": intent.Symbol, "side": intent.Side, "volume": intent.Volume,
		})
		return decision, nil
	}
	if intent.EstimatedRisk >= max-maxBuffer {
		decision := Decision{Allow: false, Reason: "Order would breach max buffer"}
		g.log(ctx, "pre_trade", map[string]interface{}{
			"allow": false, "reason": decision.Reason,
			"symbol": intent.Symbol, "side": intent.Side, "volume": intent.Volume,
		})
		return decision, nil
	}

	decision := Decision{Allow: true, Reason: "Allowed"}
	g.log(ctx, "pre_trade", map[string]interface{}{
		"allow": true, "reason": decision.Reason,
		"symbol": intent.Symbol, "side": intent.Side, "volume": intent.Volume,
	})
	return decision, nil
}
