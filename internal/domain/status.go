package domain

import "time"

// RuleHeadroom is the per-rule remaining margin carried in a RuntimeStatus
// and rendered by notify.PrintStatus.
type RuleHeadroom struct {
	RemainingDailyLoss float64
	RemainingMaxLoss   float64
	DrawdownPct        float64
	DaysSinceLastTrade int
	TradingDaysDone    int
	TradingDaysNeeded  int
	ProfitTargetGap    float64
}

// RuntimeStatus is the snapshot cmd/supervisor's bar callback writes to
// disk through a ports.StatusStore.
type RuntimeStatus struct {
	RunID        string
	GeneratedAt  time.Time
	GovernorState string
	SafeMode     SafeModeState
	Headroom     RuleHeadroom
	OpenOrders   int
	OpenPositions int
	LastReconcile time.Time
}

// DailyMetricsEntry is one day's closing compliance snapshot, appended to
// the daily metrics file for audit.
type DailyMetricsEntry struct {
	Date           time.Time
	EndEquity      float64
	EndBalance     float64
	DailyPnL       float64
	TradesOpened   int
	ViolationCodes []ViolationCode
	GovernorState  string
}
