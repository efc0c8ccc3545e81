package governor_test

import (
	"context"
	"testing"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/alejandrodnm/ftmorisk/internal/governor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSpec() domain.RuleSpec {
	return domain.RuleSpec{
		AccountSize:         100000,
		MaxDailyLoss:        5000,
		MaxTotalLoss:        10000,
		ChallengeTarget:     10000,
		MinTradingDays:      4,
		Timezone:            "UTC",
		DailyLossStopPct:    0.8,
		MaxLossStopPct:      0.8,
		MidnightPolicy:      domain.MidnightNone,
		Stage:               domain.StageChallenge,
		FundedMode:          domain.FundedStandard,
		StrategyIsLegit:       true,
		MaxDaysWithoutTrade:   25,
		InactivityWarningDays: 5,
		DrawdownLimitPct:      0.07,
		DrawdownDaysLimit:     30,
		DrawdownWarningDays:   5,
	}
}

func TestGovernor_EvaluateState_Healthy(t *testing.T) {
	g := governor.New(domain.NewRuleEngine(testSpec()), nil, nil)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{Now: now, Equity: 100500, Balance: 100500, DayStartEquity: 100000, InitialBalance: 100000, LastTradeTime: now}

	decision, err := g.EvaluateState(context.Background(), state)
	require.NoError(t, err)
	assert.True(t, decision.Allow)

	disabled, _ := g.Disabled()
	assert.False(t, disabled)
}

func TestGovernor_EvaluateState_LatchesOnHardViolation(t *testing.T) {
	g := governor.New(domain.NewRuleEngine(testSpec()), nil, nil)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{Now: now, Equity: 94000, Balance: 94000, DayStartEquity: 100000, InitialBalance: 100000, LastTradeTime: now}

	decision, err := g.EvaluateState(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.True(t, decision.Flatten)

	disabled, reason := g.Disabled()
	assert.True(t, disabled)
	assert.NotEmpty(t, reason)

	// Once latched, every subsequent evaluation stays disabled even if the
	// account recovers, until an explicit ResetDisable.
	state.Equity = 100500
	state.Balance = 100500
	decision, err = g.EvaluateState(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, decision.Allow)

	g.ResetDisable()
	disabled, _ = g.Disabled()
	assert.False(t, disabled)
}

func TestGovernor_EvaluateState_BufferBreachDoesNotLatch(t *testing.T) {
	spec := testSpec()
	// daily buffer = max_daily_loss * (1 - 0.8) = 1000
	g := governor.New(domain.NewRuleEngine(spec), nil, nil)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	// remaining daily loss = 5000 - 4500 = 500, under the 1000 buffer but
	// still positive, so no hard violation.
	state := &domain.RuleState{Now: now, Equity: 95500, Balance: 95500, DayStartEquity: 100000, InitialBalance: 100000, LastTradeTime: now}

	decision, err := g.EvaluateState(context.Background(), state)
	require.NoError(t, err)
	assert.False(t, decision.Allow)
	assert.False(t, decision.Flatten)

	disabled, _ := g.Disabled()
	assert.False(t, disabled)
}

func TestGovernor_PreTrade_ReduceOnlyAllowedWhileFlattenLatched(t *testing.T) {
	g := governor.New(domain.NewRuleEngine(testSpec()), nil, nil)
	g.Disable("manual test latch")

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{Now: now, Equity: 100000, Balance: 100000, DayStartEquity: 100000, InitialBalance: 100000, LastTradeTime: now}
	intent := domain.OrderIntent{Symbol: "EURUSD", Side: "sell", Volume: 1, Time: now, ReduceOnly: true}

	decision, err := g.PreTrade(context.Background(), intent, state)
	require.NoError(t, err)
	assert.True(t, decision.Allow)
	assert.True(t, decision.ReduceOnly)
}

func TestGovernor_PreTrade_DeniesNonReduceWhileLatched(t *testing.T) {
	g := governor.New(domain.NewRuleEngine(testSpec()), nil, nil)
	g.Disable("manual test latch")

	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{Now: now, Equity: 100000, Balance: 100000, DayStartEquity: 100000, InitialBalance: 100000, LastTradeTime: now}
	intent := domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now}

	decision, err := g.PreTrade(context.Background(), intent, state)
	require.NoError(t, err)
	assert.False(t, decision.Allow)
}

func TestGovernor_RuleHeadroom(t *testing.T) {
	g := governor.New(domain.NewRuleEngine(testSpec()), nil, nil)
	state := &domain.RuleState{Equity: 98000, Balance: 98000, DayStartEquity: 100000, InitialBalance: 100000}

	daily, max := g.RuleHeadroom(state)
	assert.Equal(t, 3000.0, daily)
	assert.Equal(t, 8000.0, max)
}

func TestGovernor_CheckInactivity_WarnsApproachingLimit(t *testing.T) {
	g := governor.New(domain.NewRuleEngine(testSpec()), nil, nil)
	now := time.Date(2026, 1, 25, 10, 0, 0, 0, time.UTC)
	lastTrade := now.AddDate(0, 0, -22)
	state := &domain.RuleState{Now: now, Equity: 100000, Balance: 100000, DayStartEquity: 100000, InitialBalance: 100000, LastTradeTime: lastTrade}

	warnings, err := g.CheckInactivity(context.Background(), state)
	require.NoError(t, err)
	assert.NotEmpty(t, warnings)
}

func TestGovernor_CheckInactivity_NoWarningWellWithinLimit(t *testing.T) {
	g := governor.New(domain.NewRuleEngine(testSpec()), nil, nil)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{Now: now, Equity: 100000, Balance: 100000, DayStartEquity: 100000, InitialBalance: 100000, LastTradeTime: now}

	warnings, err := g.CheckInactivity(context.Background(), state)
	require.NoError(t, err)
	assert.Empty(t, warnings)
}
