// Package simulator replays historical trades or price/signal series
// through the rule engine to produce a pass/fail verdict for an
// evaluation account, without ever touching a broker.
package simulator

import (
	"math/rand"
	"sort"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
)

// Simulator walks historical data through one frozen RuleSpec.
type Simulator struct {
	Spec   domain.RuleSpec
	Engine *domain.RuleEngine
	Zone   *time.Location
}

// New constructs a Simulator. zone must be spec.Timezone already resolved
// (the simulator runs in tight loops and should not re-resolve it per
// trade).
func New(spec domain.RuleSpec, zone *time.Location) *Simulator {
	return &Simulator{Spec: spec, Engine: domain.NewRuleEngine(spec), Zone: zone}
}

// SimulateTrades walks trades in entry-time order against initialBalance,
// stopping at the first step that trips a rule violation. It mirrors the
// evaluator this is grounded on exactly: day-roll and drawdown-origin
// tracking thread through each step via one mutable RuleState, and the
// walk ends the instant CheckViolation reports anything.
func (s *Simulator) SimulateTrades(trades []domain.Trade, initialBalance float64) (domain.SimulationResult, error) {
	ordered := domain.SortedByEntry(trades)

	var now time.Time
	if len(ordered) > 0 {
		now = ordered[0].EntryTime
	} else {
		now = time.Now().In(s.Zone)
	}
	stageStartTime := now
	dayStartTime := domain.DayStartFor(now, s.Zone)
	dayStartEquity := initialBalance

	equity := initialBalance
	balance := initialBalance
	dailyBuffer := s.Spec.EffectiveDailyBuffer()
	maxBuffer := s.Spec.EffectiveMaxBuffer()

	minDailyHeadroom := domain.RemainingDailyLoss(equity, dayStartEquity, s.Spec.MaxDailyLoss)
	minMaxHeadroom := domain.RemainingMaxLoss(equity, initialBalance, s.Spec.MaxTotalLoss)
	bufferBreaches := 0
	equityCurve := []domain.EquityPoint{{Time: now, Equity: equity}}
	var drawdownStartTime time.Time

	finalize := func(state *domain.RuleState, violations []domain.ViolationCode) (domain.SimulationResult, error) {
		return s.finalizeResult(state, equityCurve, violations, minDailyHeadroom, minMaxHeadroom, bufferBreaches)
	}

	for _, trade := range ordered {
		if domain.NeedsDayReset(trade.EntryTime, dayStartTime, s.Zone) {
			dayStartTime = domain.DayStartFor(trade.EntryTime, s.Zone)
			dayStartEquity = equity
		}

		equity += trade.Profit
		balance = equity
		now = trade.ExitTime
		if now.IsZero() {
			now = trade.EntryTime
		}
		equityCurve = append(equityCurve, domain.EquityPoint{Time: now, Equity: equity})

		dailyHeadroom := domain.RemainingDailyLoss(equity, dayStartEquity, s.Spec.MaxDailyLoss)
		maxHeadroom := domain.RemainingMaxLoss(equity, initialBalance, s.Spec.MaxTotalLoss)
		if dailyHeadroom < minDailyHeadroom {
			minDailyHeadroom = dailyHeadroom
		}
		if maxHeadroom < minMaxHeadroom {
			minMaxHeadroom = maxHeadroom
		}
		if dailyHeadroom <= dailyBuffer || maxHeadroom <= maxBuffer {
			bufferBreaches++
		}

		state := &domain.RuleState{
			Now:               now,
			Equity:            equity,
			Balance:           balance,
			DayStartEquity:    dayStartEquity,
			DayStartTime:      dayStartTime,
			InitialBalance:    initialBalance,
			Trades:            ordered,
			StageStartTime:    stageStartTime,
			DrawdownStartTime: drawdownStartTime,
		}
		state.UpdateDrawdownStart(s.Spec.DrawdownLimitPct)
		drawdownStartTime = state.DrawdownStartTime

		violations, err := s.Engine.CheckViolation(state)
		if err != nil {
			return domain.SimulationResult{}, err
		}
		if len(violations) > 0 {
			codes := make([]domain.ViolationCode, len(violations))
			for i, v := range violations {
				codes[i] = v.Code
			}
			return finalize(state, codes)
		}
	}

	finalState := &domain.RuleState{
		Now:               now,
		Equity:            equity,
		Balance:           balance,
		DayStartEquity:    dayStartEquity,
		DayStartTime:      dayStartTime,
		InitialBalance:    initialBalance,
		Trades:            ordered,
		StageStartTime:    stageStartTime,
		DrawdownStartTime: drawdownStartTime,
	}
	return finalize(finalState, nil)
}

func (s *Simulator) finalizeResult(state *domain.RuleState, equityCurve []domain.EquityPoint, violations []domain.ViolationCode, minDailyHeadroom, minMaxHeadroom float64, bufferBreaches int) (domain.SimulationResult, error) {
	tradingDays := domain.TradingDayCount(state.Trades, s.Zone)
	profit := state.EffectiveEquity() - state.InitialBalance
	target := s.Spec.ProfitTarget()

	var targetProgress float64
	if s.Spec.Stage != domain.StageFunded && target != 0 {
		targetProgress = profit / target
	}

	passed, reason := s.evaluatePass(state, violations, tradingDays)
	return domain.SimulationResult{
		EquityCurve:      equityCurve,
		Violations:       violations,
		TradingDays:      tradingDays,
		TargetProgress:   targetProgress,
		MinDailyHeadroom: minDailyHeadroom,
		MinMaxHeadroom:   minMaxHeadroom,
		BufferBreaches:   bufferBreaches,
		Passed:           passed,
		FailureReason:    reason,
	}, nil
}

func (s *Simulator) evaluatePass(state *domain.RuleState, violations []domain.ViolationCode, tradingDays int) (bool, string) {
	if len(violations) > 0 {
		return false, "Violation: " + string(violations[0])
	}
	if s.Spec.Stage == domain.StageFunded {
		return true, ""
	}

	profit := state.EffectiveEquity() - state.InitialBalance
	target := s.Spec.ProfitTarget()
	if profit < target {
		return false, "Profit target not reached"
	}
	if tradingDays < s.Spec.MinTradingDays {
		return false, "Minimum trading days not reached"
	}
	return true, ""
}

// openLeg is the one position SimulateSignals may hold at a time, tracked
// across bars until a matching close signal realizes it into a Trade.
type openLeg struct {
	symbol     string
	side       string
	entryTime  time.Time
	entryPrice float64
	volume     float64
	commission float64 // half round-trip commission charged at open
}

// SimulateSignals walks bars in time order — not just the bars a signal
// falls on — marking any open position to market every bar per
// spec.Spec.MTMMode (worst-case intrabar excursion, or the bar midpoint),
// charging half the round-trip commission on each of open/close and a
// running swap for every day a position has been held, and running the
// rule engine against the resulting floating-P&L state on every bar. The
// walk ends the instant a violation appears, exactly as SimulateTrades
// does for a precomputed trade list — except here floating P&L on a still
// -open position can itself trip a violation before any trade closes.
func (s *Simulator) SimulateSignals(bars []domain.PriceBar, signals []domain.Signal, initialBalance float64) (domain.SimulationResult, error) {
	if len(bars) == 0 {
		return s.SimulateTrades(nil, initialBalance)
	}

	orderedBars := make([]domain.PriceBar, len(bars))
	copy(orderedBars, bars)
	sort.SliceStable(orderedBars, func(i, j int) bool { return orderedBars[i].Time.Before(orderedBars[j].Time) })

	type signalKey struct {
		symbol string
		time   time.Time
	}
	signalsByKey := make(map[signalKey][]domain.Signal, len(signals))
	for _, sig := range signals {
		key := signalKey{sig.Symbol, sig.Time}
		signalsByKey[key] = append(signalsByKey[key], sig)
	}

	now := orderedBars[0].Time
	stageStartTime := now
	dayStartTime := domain.DayStartFor(now, s.Zone)
	dayStartEquity := initialBalance
	lastEffectiveEquity := initialBalance

	balance := initialBalance
	var open *openLeg
	var closedTrades []domain.Trade
	var commission, swap, floatingPnL float64
	var openPositions int

	dailyBuffer := s.Spec.EffectiveDailyBuffer()
	maxBuffer := s.Spec.EffectiveMaxBuffer()

	minDailyHeadroom := domain.RemainingDailyLoss(balance, dayStartEquity, s.Spec.MaxDailyLoss)
	minMaxHeadroom := domain.RemainingMaxLoss(balance, initialBalance, s.Spec.MaxTotalLoss)
	bufferBreaches := 0
	equityCurve := []domain.EquityPoint{{Time: now, Equity: balance}}
	var drawdownStartTime time.Time
	var lastState *domain.RuleState

	finalize := func(state *domain.RuleState, violations []domain.ViolationCode) (domain.SimulationResult, error) {
		return s.finalizeResult(state, equityCurve, violations, minDailyHeadroom, minMaxHeadroom, bufferBreaches)
	}

	for _, bar := range orderedBars {
		now = bar.Time

		if domain.NeedsDayReset(now, dayStartTime, s.Zone) {
			dayStartTime = domain.DayStartFor(now, s.Zone)
			dayStartEquity = lastEffectiveEquity
		}

		for _, sig := range signalsByKey[signalKey{bar.Symbol, bar.Time}] {
			fees := s.Spec.Fees[sig.Symbol]

			switch sig.Action {
			case "open":
				if open != nil {
					continue
				}
				price := s.markPrice(bar, sig.Side)
				open = &openLeg{
					symbol:     sig.Symbol,
					side:       sig.Side,
					entryTime:  sig.Time,
					entryPrice: price,
					volume:     sig.Volume,
					commission: fees.CommissionPerLotRoundTrip * sig.Volume / 2,
				}
			case "close":
				if open == nil || open.symbol != sig.Symbol {
					continue
				}
				exitPrice := s.markPrice(bar, oppositeSide(open.side))
				direction := 1.0
				if open.side == "sell" {
					direction = -1.0
				}
				grossProfit := (exitPrice - open.entryPrice) * open.volume * direction
				totalCommission := open.commission + fees.CommissionPerLotRoundTrip*open.volume/2
				totalSwap := fees.SwapPerLotPerDay * open.volume * float64(heldDays(open.entryTime, sig.Time, s.Zone))
				profit := grossProfit - totalCommission - totalSwap

				closedTrades = append(closedTrades, domain.Trade{
					Symbol:     sig.Symbol,
					EntryTime:  open.entryTime,
					ExitTime:   sig.Time,
					EntryPrice: open.entryPrice,
					ExitPrice:  exitPrice,
					Profit:     profit,
				})
				balance += profit
				open = nil
				commission, swap, floatingPnL, openPositions = 0, 0, 0, 0
			}
		}

		switch {
		case open != nil && bar.Symbol == open.symbol:
			markPrice := s.markPrice(bar, open.side)
			direction := 1.0
			if open.side == "sell" {
				direction = -1.0
			}
			floatingPnL = (markPrice - open.entryPrice) * open.volume * direction
			fees := s.Spec.Fees[open.symbol]
			swap = fees.SwapPerLotPerDay * open.volume * float64(heldDays(open.entryTime, now, s.Zone))
			commission = open.commission
			openPositions = 1
		case open == nil:
			commission, swap, floatingPnL, openPositions = 0, 0, 0, 0
		}

		effectiveEquity := balance + floatingPnL - commission - swap
		equityCurve = append(equityCurve, domain.EquityPoint{Time: now, Equity: effectiveEquity})

		dailyHeadroom := domain.RemainingDailyLoss(effectiveEquity, dayStartEquity, s.Spec.MaxDailyLoss)
		maxHeadroom := domain.RemainingMaxLoss(effectiveEquity, initialBalance, s.Spec.MaxTotalLoss)
		if dailyHeadroom < minDailyHeadroom {
			minDailyHeadroom = dailyHeadroom
		}
		if maxHeadroom < minMaxHeadroom {
			minMaxHeadroom = maxHeadroom
		}
		if dailyHeadroom <= dailyBuffer || maxHeadroom <= maxBuffer {
			bufferBreaches++
		}

		state := &domain.RuleState{
			Now:               now,
			Equity:            balance,
			Balance:           balance,
			FloatingPnL:       floatingPnL,
			Commission:        commission,
			Swap:              swap,
			DayStartEquity:    dayStartEquity,
			DayStartTime:      dayStartTime,
			InitialBalance:    initialBalance,
			OpenPositions:     openPositions,
			Trades:            closedTrades,
			StageStartTime:    stageStartTime,
			DrawdownStartTime: drawdownStartTime,
		}
		state.UpdateDrawdownStart(s.Spec.DrawdownLimitPct)
		drawdownStartTime = state.DrawdownStartTime
		lastState = state

		violations, err := s.Engine.CheckViolation(state)
		if err != nil {
			return domain.SimulationResult{}, err
		}
		if len(violations) > 0 {
			codes := make([]domain.ViolationCode, len(violations))
			for i, v := range violations {
				codes[i] = v.Code
			}
			return finalize(state, codes)
		}

		lastEffectiveEquity = state.EffectiveEquity()
	}

	return finalize(lastState, nil)
}

func oppositeSide(side string) string {
	if side == "buy" {
		return "sell"
	}
	return "buy"
}

func heldDays(entry, exit time.Time, zone *time.Location) int {
	days := int(domain.TradingDayFor(exit, zone).Sub(domain.TradingDayFor(entry, zone)).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// markPrice marks an open or closing leg against bar according to the
// spec's MTM mode: worst_ohlc takes the most adverse extreme for the
// position's side (a buy marks at the bar low on entry sizing risk, a
// sell at the bar high), mid takes the midpoint of the bar's range.
func (s *Simulator) markPrice(bar domain.PriceBar, side string) float64 {
	if s.Spec.MTMMode == domain.MTMMid {
		return (bar.High + bar.Low) / 2
	}
	if side == "buy" {
		return bar.Low
	}
	return bar.High
}

// RunMonteCarlo re-simulates trades runs times, perturbing each trade's
// profit by an independent uniform draw from config's slippage and spread
// ranges. rng must be seeded by the caller for reproducibility; the
// simulator accepts no wall-clock time or randomness of its own.
func (s *Simulator) RunMonteCarlo(trades []domain.Trade, initialBalance float64, config domain.MonteCarloConfig, rng *rand.Rand) ([]domain.SimulationResult, error) {
	results := make([]domain.SimulationResult, 0, config.Runs)
	for i := 0; i < config.Runs; i++ {
		adjusted := make([]domain.Trade, len(trades))
		for j, trade := range trades {
			slippage := uniform(rng, config.SlippageRange)
			spread := uniform(rng, config.SpreadRange)
			adjusted[j] = trade
			adjusted[j].Profit = trade.Profit - slippage - spread
		}
		result, err := s.SimulateTrades(adjusted, initialBalance)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return results, nil
}

func uniform(rng *rand.Rand, r [2]float64) float64 {
	if r[1] <= r[0] {
		return r[0]
	}
	return r[0] + rng.Float64()*(r[1]-r[0])
}
