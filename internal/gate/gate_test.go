package gate_test

import (
	"testing"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/alejandrodnm/ftmorisk/internal/gate"
	"github.com/stretchr/testify/assert"
)

func TestAssess_EmptyNeverMeetsThreshold(t *testing.T) {
	result := gate.Assess(nil, 0, 1000)
	assert.False(t, result.MeetsThreshold)
	assert.Equal(t, 0.0, result.PassRate)
}

func TestAssess_PassRateAndBufferBreaches(t *testing.T) {
	results := []domain.SimulationResult{
		{Passed: true, TradingDays: 10, TargetProgress: 1.0, MinDailyHeadroom: 500, MinMaxHeadroom: 2000},
		{Passed: true, TradingDays: 12, TargetProgress: 1.1, MinDailyHeadroom: 300, MinMaxHeadroom: 1800, BufferBreaches: 1},
		{Passed: false, FailureReason: "DAILY_LOSS_LIMIT", TradingDays: 3, TargetProgress: 0.2, MinDailyHeadroom: -100, MinMaxHeadroom: 1000},
	}

	result := gate.Assess(results, 0.5, 1)
	assert.InDelta(t, 2.0/3.0, result.PassRate, 1e-9)
	assert.Equal(t, 1, result.BufferBreachRuns)
	assert.Equal(t, -100.0, result.MinDailyHeadroom)
	assert.Equal(t, 1000.0, result.MinMaxHeadroom)
	assert.Equal(t, 1, result.Failures["DAILY_LOSS_LIMIT"])
	assert.True(t, result.MeetsThreshold)
}

func TestAssess_FailsBelowPassRateThreshold(t *testing.T) {
	results := []domain.SimulationResult{
		{Passed: false, FailureReason: "MAX_LOSS_LIMIT"},
		{Passed: false, FailureReason: "MAX_LOSS_LIMIT"},
	}

	result := gate.Assess(results, 0.5, 10)
	assert.False(t, result.MeetsThreshold)
	assert.Equal(t, 2, result.Failures["MAX_LOSS_LIMIT"])
}

func TestAssess_FailsAboveBufferBreachThreshold(t *testing.T) {
	results := []domain.SimulationResult{
		{Passed: true, BufferBreaches: 1},
		{Passed: true, BufferBreaches: 2},
	}

	result := gate.Assess(results, 0.5, 0)
	assert.Equal(t, 1.0, result.PassRate)
	assert.False(t, result.MeetsThreshold)
}

func TestAssess_UnknownFailureReasonBucketed(t *testing.T) {
	results := []domain.SimulationResult{
		{Passed: false},
	}

	result := gate.Assess(results, 0, 10)
	assert.Equal(t, 1, result.Failures["unknown"])
}
