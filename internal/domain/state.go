package domain

import (
	"sort"
	"time"
)

// Trade is an immutable closed-trade record.
type Trade struct {
	Symbol     string
	EntryTime  time.Time
	ExitTime   time.Time // zero if still open
	EntryPrice float64
	ExitPrice  float64
	Profit     float64
}

// RuleState is the mutable, single-writer account snapshot the rule engine
// and governor evaluate against. Callers own a *RuleState and pass it
// through every engine/governor call on the account's behalf.
type RuleState struct {
	Now time.Time

	Equity      float64
	Balance     float64
	FloatingPnL float64
	Commission  float64
	Swap        float64
	OtherFees   float64

	DayStartEquity float64
	DayStartTime   time.Time

	InitialBalance  float64
	OpenPositions   int
	IsNewsBlackout  bool

	Trades          []Trade
	LastTradeTime   time.Time
	StageStartTime  time.Time
	DrawdownStartTime time.Time
}

// EffectiveEquity is balance plus floating P&L minus accumulated costs when
// either is present; otherwise Equity is authoritative (spec.md §3).
func (s *RuleState) EffectiveEquity() float64 {
	costs := s.Commission + s.Swap + s.OtherFees
	if s.FloatingPnL != 0 || costs != 0 {
		return s.Balance + s.FloatingPnL - costs
	}
	return s.Equity
}

// DrawdownPct is the fractional distance of effective equity below the
// account's initial balance, floored at zero.
func (s *RuleState) DrawdownPct() float64 {
	if s.InitialBalance <= 0 {
		return 0
	}
	d := (s.InitialBalance - s.EffectiveEquity()) / s.InitialBalance
	if d < 0 {
		return 0
	}
	return d
}

// UpdateDrawdownStart maintains DrawdownStartTime as the instant the most
// recent continuous drawdown-limit breach began, clearing it once equity
// recovers above the limit. The rule engine calls this before evaluating
// PROLONGED_DRAWDOWN so the clock reflects the current Now.
func (s *RuleState) UpdateDrawdownStart(limitPct float64) {
	if limitPct <= 0 {
		s.DrawdownStartTime = time.Time{}
		return
	}
	if s.DrawdownPct() >= limitPct {
		if s.DrawdownStartTime.IsZero() {
			s.DrawdownStartTime = s.Now
		}
		return
	}
	s.DrawdownStartTime = time.Time{}
}

// RollDayIfNeeded resets the day-start bookkeeping when Now has crossed into
// a new civil day under zone.
func (s *RuleState) RollDayIfNeeded(zone *time.Location) {
	if NeedsDayReset(s.Now, s.DayStartTime, zone) {
		s.DayStartTime = DayStartFor(s.Now, zone)
		s.DayStartEquity = s.EffectiveEquity()
	}
}

// TradingDays returns the number of distinct civil days, under zone, on
// which any trade's entry occurred.
func (s *RuleState) TradingDays(zone *time.Location) int {
	return TradingDayCount(s.Trades, zone)
}

// LastTradeTimestamp returns the explicit LastTradeTime if set, else the
// latest trade entry time, else the zero time.
func (s *RuleState) LastTradeTimestamp() time.Time {
	if !s.LastTradeTime.IsZero() {
		return s.LastTradeTime
	}
	var latest time.Time
	for _, t := range s.Trades {
		if t.EntryTime.After(latest) {
			latest = t.EntryTime
		}
	}
	return latest
}

// DaysSinceLastTrade returns the number of civil days between the last
// trade (or, absent any trade, the stage start) and Now, or (0, false) if
// neither reference point exists.
func (s *RuleState) DaysSinceLastTrade(zone *time.Location) (int, bool) {
	last := s.LastTradeTimestamp()
	if last.IsZero() {
		if s.StageStartTime.IsZero() {
			return 0, false
		}
		last = s.StageStartTime
	}
	days := int(TradingDayFor(s.Now, zone).Sub(TradingDayFor(last, zone)).Hours() / 24)
	return days, true
}

// DrawdownDays returns the number of civil days the current drawdown
// breach has persisted, or (0, false) if there is no active breach.
func (s *RuleState) DrawdownDays(zone *time.Location) (int, bool) {
	if s.DrawdownStartTime.IsZero() {
		return 0, false
	}
	days := int(TradingDayFor(s.Now, zone).Sub(TradingDayFor(s.DrawdownStartTime, zone)).Hours() / 24)
	return days, true
}

// TradingDayCount counts the distinct civil days, under zone, entries in
// trades fall on.
func TradingDayCount(trades []Trade, zone *time.Location) int {
	days := make(map[time.Time]struct{}, len(trades))
	for _, t := range trades {
		days[TradingDayFor(t.EntryTime, zone)] = struct{}{}
	}
	return len(days)
}

// SortedByEntry returns a copy of trades ordered by entry time, ascending.
func SortedByEntry(trades []Trade) []Trade {
	out := make([]Trade, len(trades))
	copy(out, trades)
	sort.Slice(out, func(i, j int) bool { return out[i].EntryTime.Before(out[j].EntryTime) })
	return out
}
