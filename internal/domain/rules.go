package domain

import "time"

// ViolationCode names a hard-rule breach in the deterministic order
// check_violation reports them.
type ViolationCode string

const (
	ViolationStrategyForbidden ViolationCode = "STRATEGY_FORBIDDEN"
	ViolationDailyLossLimit    ViolationCode = "DAILY_LOSS_LIMIT"
	ViolationMaxLossLimit      ViolationCode = "MAX_LOSS_LIMIT"
	ViolationInactivityLimit   ViolationCode = "INACTIVITY_LIMIT"
	ViolationInternalDrawdown  ViolationCode = "INTERNAL_DRAWDOWN_LIMIT"
	ViolationProlongedDrawdown ViolationCode = "PROLONGED_DRAWDOWN"
)

// Violation is one breach of the frozen RuleSpec by the current RuleState.
type Violation struct {
	Code    ViolationCode
	Message string
}

// PreTradeResult is the engine's opaque, non-exceptional verdict on whether
// an intent may proceed to the governor's buffer-margin checks.
type PreTradeResult struct {
	Allow  bool
	Reason string
}

// OrderIntent is the opaque order a strategy wants to place, as handed to
// the governor and execution engine.
type OrderIntent struct {
	Symbol string
	Side   string // "buy" | "sell"
	Volume float64
	Time   time.Time
	// ClientOrderID, when set by the caller, is the journal's primary key
	// and the idempotency key: replaying an intent with the same
	// ClientOrderID returns the previously placed broker order instead of
	// submitting again. Left empty, the engine mints one.
	ClientOrderID string
	EstimatedRisk float64
	ReduceOnly    bool
}

// RemainingDailyLoss is the money still available to lose today before the
// daily-loss hard limit triggers.
func RemainingDailyLoss(equity, dayStartEquity, maxDailyLoss float64) float64 {
	dailyLoss := maxf(0, dayStartEquity-equity)
	return maxDailyLoss - dailyLoss
}

// RemainingMaxLoss is the money still available to lose overall before the
// max-loss hard limit triggers.
func RemainingMaxLoss(equity, initialBalance, maxTotalLoss float64) float64 {
	totalLoss := maxf(0, initialBalance-equity)
	return maxTotalLoss - totalLoss
}

// RuleEngine evaluates compliance for one frozen RuleSpec. It holds no
// mutable state of its own and may be shared across goroutines.
type RuleEngine struct {
	Spec RuleSpec
}

// NewRuleEngine wraps spec in a RuleEngine. spec must already be validated.
func NewRuleEngine(spec RuleSpec) *RuleEngine {
	return &RuleEngine{Spec: spec}
}

func (e *RuleEngine) zone() (*time.Location, error) {
	return LoadZone(e.Spec.Timezone)
}

// TradingDaysRemaining is how many more distinct trading days are needed to
// satisfy MinTradingDays.
func (e *RuleEngine) TradingDaysRemaining(state *RuleState) (int, error) {
	zone, err := e.zone()
	if err != nil {
		return 0, err
	}
	days := state.TradingDays(zone)
	remaining := e.Spec.MinTradingDays - days
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}

// ProfitTargetReached reports whether a non-funded account's effective
// profit has reached the stage's profit target. Funded accounts never
// "reach" a target (there is none to progress toward).
func (e *RuleEngine) ProfitTargetReached(state *RuleState) bool {
	if e.Spec.Stage == StageFunded {
		return false
	}
	profit := state.EffectiveEquity() - state.InitialBalance
	return profit >= e.Spec.ProfitTarget()
}

// CheckViolation returns every hard-rule breach in the deterministic order
// spec.md §4.2 lists them. It mutates state.DrawdownStartTime via
// UpdateDrawdownStart as a side effect, matching the source's
// check_violation, which callers must account for (spec.md §4.2: "callers
// that wish to reflect drawdown timing must call update_drawdown_start
// first" — this implementation does it for them, atomically with the
// check, so there is exactly one timing authority).
func (e *RuleEngine) CheckViolation(state *RuleState) ([]Violation, error) {
	var violations []Violation

	if !e.Spec.StrategyIsLegit {
		violations = append(violations, Violation{
			Code:    ViolationStrategyForbidden,
			Message: "Strategy flagged as not legitimate or forbidden.",
		})
	}

	state.UpdateDrawdownStart(e.Spec.DrawdownLimitPct)

	equity := state.EffectiveEquity()
	remainingDaily := RemainingDailyLoss(equity, state.DayStartEquity, e.Spec.MaxDailyLoss)
	if remainingDaily <= 0 {
		violations = append(violations, Violation{
			Code:    ViolationDailyLossLimit,
			Message: "Max daily loss breached.",
		})
	}

	remainingMax := RemainingMaxLoss(equity, state.InitialBalance, e.Spec.MaxTotalLoss)
	if remainingMax <= 0 {
		violations = append(violations, Violation{
			Code:    ViolationMaxLossLimit,
			Message: "Max loss breached.",
		})
	}

	zone, err := e.zone()
	if err != nil {
		return nil, err
	}

	if e.Spec.MaxDaysWithoutTrade > 0 {
		if days, ok := state.DaysSinceLastTrade(zone); ok && days >= e.Spec.MaxDaysWithoutTrade {
			violations = append(violations, Violation{
				Code:    ViolationInactivityLimit,
				Message: "Inactivity limit exceeded.",
			})
		}
	}

	if e.Spec.DrawdownLimitPct > 0 && state.DrawdownPct() >= e.Spec.DrawdownLimitPct {
		violations = append(violations, Violation{
			Code:    ViolationInternalDrawdown,
			Message: "Internal drawdown limit breached.",
		})
	}

	if e.Spec.DrawdownDaysLimit > 0 {
		if days, ok := state.DrawdownDays(zone); ok && days >= e.Spec.DrawdownDaysLimit {
			violations = append(violations, Violation{
				Code:    ViolationProlongedDrawdown,
				Message: "Drawdown duration exceeded limit.",
			})
		}
	}

	return violations, nil
}

// PreTradeCheck evaluates a single intent against hard limits and the news
// blackout, independent of the governor's buffer-margin overlay.
func (e *RuleEngine) PreTradeCheck(intent OrderIntent, state *RuleState) PreTradeResult {
	if !e.Spec.StrategyIsLegit {
		return PreTradeResult{false, "Strategy flagged as forbidden"}
	}
	if e.Spec.NewsPolicyFor() == NewsApply && state.IsNewsBlackout {
		return PreTradeResult{false, "News restriction window active"}
	}

	equity := state.EffectiveEquity()
	remainingDaily := RemainingDailyLoss(equity, state.DayStartEquity, e.Spec.MaxDailyLoss)
	if remainingDaily <= 0 {
		return PreTradeResult{false, "Daily loss limit reached"}
	}

	remainingMax := RemainingMaxLoss(equity, state.InitialBalance, e.Spec.MaxTotalLoss)
	if remainingMax <= 0 {
		return PreTradeResult{false, "Max loss limit reached"}
	}

	if intent.EstimatedRisk >= remainingDaily {
		return PreTradeResult{false, "Order risk exceeds remaining daily loss"}
	}
	if intent.EstimatedRisk >= remainingMax {
		return PreTradeResult{false, "Order risk exceeds remaining max loss"}
	}

	return PreTradeResult{true, "Allowed"}
}
