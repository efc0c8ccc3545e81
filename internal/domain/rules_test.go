package domain_test

import (
	"testing"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseSpec() domain.RuleSpec {
	return domain.RuleSpec{
		AccountSize:        100000,
		MaxDailyLoss:       5000,
		MaxTotalLoss:       10000,
		ChallengeTarget:    10000,
		VerificationTarget: 5000,
		MinTradingDays:     4,
		Timezone:           "UTC",
		DailyLossStopPct:   0.9,
		MaxLossStopPct:     0.9,
		MidnightPolicy:     domain.MidnightNone,
		Stage:              domain.StageChallenge,
		FundedMode:         domain.FundedStandard,
		StrategyIsLegit:    true,
		MaxDaysWithoutTrade: 25,
		DrawdownLimitPct:    0.07,
		DrawdownDaysLimit:   30,
	}
}

func TestCheckViolation_StrategyForbidden(t *testing.T) {
	spec := baseSpec()
	spec.StrategyIsLegit = false
	engine := domain.NewRuleEngine(spec)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{Now: now, Equity: 100000, Balance: 100000, DayStartEquity: 100000, InitialBalance: 100000}

	violations, err := engine.CheckViolation(state)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.Equal(t, domain.ViolationStrategyForbidden, violations[0].Code)
}

func TestCheckViolation_DailyLossLimit(t *testing.T) {
	spec := baseSpec()
	engine := domain.NewRuleEngine(spec)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{
		Now: now, Equity: 94000, Balance: 94000,
		DayStartEquity: 100000, InitialBalance: 100000,
	}

	violations, err := engine.CheckViolation(state)
	require.NoError(t, err)
	require.NotEmpty(t, violations)
	assert.Equal(t, domain.ViolationDailyLossLimit, violations[0].Code)
}

func TestCheckViolation_MaxLossLimit(t *testing.T) {
	spec := baseSpec()
	engine := domain.NewRuleEngine(spec)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{
		Now: now, Equity: 89000, Balance: 89000,
		DayStartEquity: 89000, InitialBalance: 100000,
	}

	violations, err := engine.CheckViolation(state)
	require.NoError(t, err)
	var codes []domain.ViolationCode
	for _, v := range violations {
		codes = append(codes, v.Code)
	}
	assert.Contains(t, codes, domain.ViolationMaxLossLimit)
}

func TestCheckViolation_Clean(t *testing.T) {
	spec := baseSpec()
	engine := domain.NewRuleEngine(spec)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{
		Now: now, Equity: 100500, Balance: 100500,
		DayStartEquity: 100000, InitialBalance: 100000, LastTradeTime: now,
	}

	violations, err := engine.CheckViolation(state)
	require.NoError(t, err)
	assert.Empty(t, violations)
}

func TestCheckViolation_InactivityLimit(t *testing.T) {
	spec := baseSpec()
	engine := domain.NewRuleEngine(spec)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	lastTrade := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{
		Now: now, Equity: 100000, Balance: 100000,
		DayStartEquity: 100000, InitialBalance: 100000, LastTradeTime: lastTrade,
	}

	violations, err := engine.CheckViolation(state)
	require.NoError(t, err)
	var codes []domain.ViolationCode
	for _, v := range violations {
		codes = append(codes, v.Code)
	}
	assert.Contains(t, codes, domain.ViolationInactivityLimit)
}

func TestPreTradeCheck_NewsBlackoutAppliesOnlyToFundedStandard(t *testing.T) {
	spec := baseSpec()
	spec.Stage = domain.StageFunded
	spec.FundedMode = domain.FundedStandard
	engine := domain.NewRuleEngine(spec)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{
		Now: now, Equity: 100000, Balance: 100000,
		DayStartEquity: 100000, InitialBalance: 100000, IsNewsBlackout: true,
	}
	intent := domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now}

	result := engine.PreTradeCheck(intent, state)
	assert.False(t, result.Allow)
	assert.Contains(t, result.Reason, "News")
}

func TestPreTradeCheck_NewsBlackoutIgnoredForSwing(t *testing.T) {
	spec := baseSpec()
	spec.Stage = domain.StageFunded
	spec.FundedMode = domain.FundedSwing
	engine := domain.NewRuleEngine(spec)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{
		Now: now, Equity: 100000, Balance: 100000,
		DayStartEquity: 100000, InitialBalance: 100000, IsNewsBlackout: true,
	}
	intent := domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now}

	result := engine.PreTradeCheck(intent, state)
	assert.True(t, result.Allow)
}

func TestPreTradeCheck_RiskExceedsRemainingDaily(t *testing.T) {
	spec := baseSpec()
	engine := domain.NewRuleEngine(spec)
	now := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	state := &domain.RuleState{
		Now: now, Equity: 97000, Balance: 97000,
		DayStartEquity: 100000, InitialBalance: 100000,
	}
	intent := domain.OrderIntent{Symbol: "EURUSD", Side: "buy", Volume: 1, Time: now, EstimatedRisk: 2500}

	result := engine.PreTradeCheck(intent, state)
	assert.False(t, result.Allow)
}

func TestProfitTargetReached(t *testing.T) {
	spec := baseSpec()
	engine := domain.NewRuleEngine(spec)
	state := &domain.RuleState{Equity: 111000, Balance: 111000, InitialBalance: 100000}
	assert.True(t, engine.ProfitTargetReached(state))

	fundedSpec := spec
	fundedSpec.Stage = domain.StageFunded
	fundedEngine := domain.NewRuleEngine(fundedSpec)
	assert.False(t, fundedEngine.ProfitTargetReached(state))
}

func TestRemainingDailyAndMaxLoss(t *testing.T) {
	assert.Equal(t, 4000.0, domain.RemainingDailyLoss(99000, 100000, 5000))
	assert.Equal(t, 5000.0, domain.RemainingDailyLoss(100000, 100000, 5000))
	assert.Equal(t, 9000.0, domain.RemainingMaxLoss(99000, 100000, 10000))
}
