// Package domain holds the pure data model and rule-evaluation logic for the
// prop-firm risk supervisor: specifications, account state, and the
// deterministic functions that turn one into compliance decisions. Nothing in
// this package performs I/O.
package domain

import "fmt"

// AccountStage is the phase of the funded-trader program an account is in.
type AccountStage string

const (
	StageChallenge    AccountStage = "challenge"
	StageVerification AccountStage = "verification"
	StageFunded       AccountStage = "funded"
)

// IsEvaluation reports whether the stage still counts toward a profit target.
func (s AccountStage) IsEvaluation() bool {
	return s == StageChallenge || s == StageVerification
}

func (s AccountStage) valid() bool {
	switch s {
	case StageChallenge, StageVerification, StageFunded:
		return true
	}
	return false
}

// FundedMode distinguishes standard (news-restricted) funded accounts from
// swing accounts that may hold positions over news and weekends.
type FundedMode string

const (
	FundedStandard FundedMode = "standard"
	FundedSwing    FundedMode = "swing"
)

func (m FundedMode) valid() bool {
	return m == FundedStandard || m == FundedSwing
}

// MidnightPolicy selects the defensive behavior applied during the
// configurable window before local midnight.
type MidnightPolicy string

const (
	MidnightNone    MidnightPolicy = "none"
	MidnightBuffer  MidnightPolicy = "buffer"
	MidnightReduce  MidnightPolicy = "reduce"
	MidnightFlatten MidnightPolicy = "flatten"
)

func (p MidnightPolicy) valid() bool {
	switch p {
	case MidnightNone, MidnightBuffer, MidnightReduce, MidnightFlatten:
		return true
	}
	return false
}

// MTMMode selects how open positions are marked to market in the simulator.
type MTMMode string

const (
	MTMWorstOHLC MTMMode = "worst_ohlc"
	MTMMid       MTMMode = "mid"
)

func (m MTMMode) valid() bool {
	return m == MTMWorstOHLC || m == MTMMid
}

// NewsPolicy is the derived decision of whether the news blackout flag
// should be honored for the account's current stage.
type NewsPolicy string

const (
	NewsIgnore NewsPolicy = "ignore"
	NewsApply  NewsPolicy = "apply"
)

// FeeSchedule is the per-symbol commission/swap structure used by the
// simulator's bar-level mark-to-market path.
type FeeSchedule struct {
	CommissionPerLotRoundTrip float64
	SwapPerLotPerDay          float64
}

// RuleSpec is the immutable, frozen specification of one evaluation or
// funded account. It is created once per run and never mutated; every
// method on it is a pure function of its fields.
type RuleSpec struct {
	AccountSize        float64
	MaxDailyLoss       float64
	MaxTotalLoss       float64
	ChallengeTarget    float64
	VerificationTarget float64
	MinTradingDays      int
	Timezone            string

	DailyLossStopPct float64 // (0,1]
	MaxLossStopPct   float64 // (0,1]

	MidnightPolicy           MidnightPolicy
	MidnightWindowMinutes    int
	MidnightBufferMultiplier float64

	MaxDaysWithoutTrade  int
	InactivityWarningDays int
	DrawdownLimitPct     float64
	DrawdownDaysLimit    int
	DrawdownWarningDays  int

	Stage           AccountStage
	FundedMode      FundedMode
	StrategyIsLegit bool

	MTMMode MTMMode
	Fees    map[string]FeeSchedule

	// MoneyFloorDailyBuffer and MoneyFloorMaxBuffer are the absolute-money
	// floors under which the percentage-derived buffers never fall, per
	// effective_daily_buffer() = max(money_floor_buffer, ...).
	MoneyFloorDailyBuffer float64
	MoneyFloorMaxBuffer   float64
}

// Validate checks the enum fields and the basic positivity constraints
// spec.md §3 requires; it is the only place a malformed spec is rejected,
// matching the "only ConfigurationError aborts the process" policy in §7.
func (s RuleSpec) Validate() error {
	if s.AccountSize <= 0 || s.MaxDailyLoss <= 0 || s.MaxTotalLoss <= 0 {
		return fmt.Errorf("domain.RuleSpec.Validate: account_size, max_daily_loss and max_total_loss must be positive")
	}
	if s.MinTradingDays <= 0 {
		return fmt.Errorf("domain.RuleSpec.Validate: min_trading_days must be positive")
	}
	if s.Timezone == "" {
		return fmt.Errorf("domain.RuleSpec.Validate: timezone is required")
	}
	if s.DailyLossStopPct <= 0 || s.DailyLossStopPct > 1 {
		return fmt.Errorf("domain.RuleSpec.Validate: daily_loss_stop_pct must be in (0,1]")
	}
	if s.MaxLossStopPct <= 0 || s.MaxLossStopPct > 1 {
		return fmt.Errorf("domain.RuleSpec.Validate: max_loss_stop_pct must be in (0,1]")
	}
	if s.MidnightBufferMultiplier < 1 {
		return fmt.Errorf("domain.RuleSpec.Validate: midnight_buffer_multiplier must be >= 1")
	}
	if !s.MidnightPolicy.valid() {
		return fmt.Errorf("domain.RuleSpec.Validate: unknown midnight_policy %q", s.MidnightPolicy)
	}
	if !s.Stage.valid() {
		return fmt.Errorf("domain.RuleSpec.Validate: unknown stage %q", s.Stage)
	}
	if !s.FundedMode.valid() {
		return fmt.Errorf("domain.RuleSpec.Validate: unknown funded_mode %q", s.FundedMode)
	}
	if s.MTMMode != "" && !s.MTMMode.valid() {
		return fmt.Errorf("domain.RuleSpec.Validate: unknown mtm_mode %q", s.MTMMode)
	}
	return nil
}

// ProfitTarget maps the account stage to its profit target.
func (s RuleSpec) ProfitTarget() float64 {
	switch s.Stage {
	case StageVerification:
		return s.VerificationTarget
	case StageChallenge:
		return s.ChallengeTarget
	default:
		return 0
	}
}

// NewsPolicyFor reports whether the news blackout flag should gate trading:
// only standard-mode funded accounts honor it.
func (s RuleSpec) NewsPolicyFor() NewsPolicy {
	if s.Stage != StageFunded {
		return NewsIgnore
	}
	if s.FundedMode == FundedSwing {
		return NewsIgnore
	}
	return NewsApply
}

// EffectiveDailyBuffer is the internal margin against the daily-loss
// headroom that triggers defensive behavior before the hard limit.
func (s RuleSpec) EffectiveDailyBuffer() float64 {
	pctBuffer := 0.0
	if s.DailyLossStopPct > 0 {
		pctBuffer = maxf(0, s.MaxDailyLoss*(1-s.DailyLossStopPct))
	}
	return maxf(s.MoneyFloorDailyBuffer, pctBuffer)
}

// EffectiveMaxBuffer is the analogous margin against the overall-loss
// headroom.
func (s RuleSpec) EffectiveMaxBuffer() float64 {
	pctBuffer := 0.0
	if s.MaxLossStopPct > 0 {
		pctBuffer = maxf(0, s.MaxTotalLoss*(1-s.MaxLossStopPct))
	}
	return maxf(s.MoneyFloorMaxBuffer, pctBuffer)
}

// MidnightBuffers returns the daily and max buffers widened by the
// midnight multiplier, used only while in_midnight_window(policy=buffer).
func (s RuleSpec) MidnightBuffers() (daily, max float64) {
	multiplier := maxf(1, s.MidnightBufferMultiplier)
	return s.EffectiveDailyBuffer() * multiplier, s.EffectiveMaxBuffer() * multiplier
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
