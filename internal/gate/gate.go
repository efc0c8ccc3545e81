// Package gate aggregates a batch of simulation results into a single
// deployment-readiness verdict.
package gate

import "github.com/alejandrodnm/ftmorisk/internal/domain"

// Assess aggregates results into a GateResult. minPassRate and
// maxBufferBreachRuns are the thresholds meets_threshold is judged
// against; an empty results set never meets the threshold, regardless of
// how low the thresholds are set.
func Assess(results []domain.SimulationResult, minPassRate float64, maxBufferBreachRuns int) domain.GateResult {
	total := len(results)
	if total == 0 {
		return domain.GateResult{Failures: map[string]int{}}
	}

	passed := 0
	failures := map[string]int{}
	var sumTradingDays, sumTargetProgress float64
	bufferBreachRuns := 0
	minDailyHeadroom := results[0].MinDailyHeadroom
	minMaxHeadroom := results[0].MinMaxHeadroom

	for _, r := range results {
		if r.Passed {
			passed++
		} else {
			key := r.FailureReason
			if key == "" {
				key = "unknown"
			}
			failures[key]++
		}
		sumTradingDays += float64(r.TradingDays)
		sumTargetProgress += r.TargetProgress
		if r.BufferBreaches > 0 {
			bufferBreachRuns++
		}
		if r.MinDailyHeadroom < minDailyHeadroom {
			minDailyHeadroom = r.MinDailyHeadroom
		}
		if r.MinMaxHeadroom < minMaxHeadroom {
			minMaxHeadroom = r.MinMaxHeadroom
		}
	}

	passRate := float64(passed) / float64(total)
	return domain.GateResult{
		PassRate:              passRate,
		AverageTradingDays:    sumTradingDays / float64(total),
		AverageTargetProgress: sumTargetProgress / float64(total),
		BufferBreachRuns:      bufferBreachRuns,
		MinDailyHeadroom:      minDailyHeadroom,
		MinMaxHeadroom:        minMaxHeadroom,
		Failures:              failures,
		MeetsThreshold:        passRate >= minPassRate && bufferBreachRuns <= maxBufferBreachRuns,
	}
}
