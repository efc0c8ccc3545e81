// Package config loads the frozen BotConfig a run is started with: one
// YAML file plus optional .env overrides for the ambient log settings.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/alejandrodnm/ftmorisk/internal/service"
)

// FeeScheduleConfig is one symbol's commission/swap entry under rule_spec.fees.
type FeeScheduleConfig struct {
	CommissionUSDPerLotRoundTrip float64 `yaml:"commission_usd_per_lot_round_trip"`
	SwapUSDPerLotPerDay          float64 `yaml:"swap_usd_per_lot_per_day"`
}

// RuleSpecConfig is the YAML shape of domain.RuleSpec.
type RuleSpecConfig struct {
	AccountSize               float64                      `yaml:"account_size"`
	MaxDailyLoss              float64                      `yaml:"max_daily_loss"`
	MaxTotalLoss              float64                      `yaml:"max_total_loss"`
	ChallengeProfitTarget     float64                      `yaml:"challenge_profit_target"`
	VerificationProfitTarget  float64                      `yaml:"verification_profit_target"`
	MinTradingDays            int                          `yaml:"min_trading_days"`
	Timezone                  string                       `yaml:"timezone"`
	DailyLossStopPct          float64                      `yaml:"daily_loss_stop_pct"`
	MaxLossStopPct            float64                      `yaml:"max_loss_stop_pct"`
	MoneyFloorDailyBuffer     float64                      `yaml:"daily_loss_buffer"`
	MoneyFloorMaxBuffer       float64                      `yaml:"max_loss_buffer"`
	MTMMode                   string                       `yaml:"mtm_mode"`
	Fees                      map[string]FeeScheduleConfig `yaml:"fees"`
	MidnightPolicy            string                       `yaml:"midnight_policy"`
	MidnightWindowMinutes     int                          `yaml:"midnight_window_minutes"`
	MidnightBufferMultiplier  float64                      `yaml:"midnight_buffer_multiplier"`
	MaxDaysWithoutTrade       int                          `yaml:"max_days_without_trade"`
	InactivityWarningDays     int                          `yaml:"inactivity_warning_days"`
	DrawdownLimitPct          float64                      `yaml:"drawdown_limit_pct"`
	DrawdownDaysLimit         int                          `yaml:"drawdown_days_limit"`
	DrawdownWarningDays       int                          `yaml:"drawdown_warning_days"`
	Stage                     string                       `yaml:"stage"`
	FundedMode                string                       `yaml:"funded_mode"`
	StrategyIsLegit            bool                         `yaml:"strategy_is_legit"`
}

// ToDomain converts the parsed YAML shape into the frozen domain.RuleSpec
// the rule engine and simulator run against, applying the same defaults as
// the loader this is grounded on.
func (c RuleSpecConfig) ToDomain() domain.RuleSpec {
	zone := c.Timezone
	if zone == "" {
		zone = "Europe/Prague"
	}
	mtm := domain.MTMMode(c.MTMMode)
	if mtm == "" {
		mtm = domain.MTMWorstOHLC
	}
	midnight := domain.MidnightPolicy(c.MidnightPolicy)
	if midnight == "" {
		midnight = domain.MidnightNone
	}
	stage := domain.AccountStage(c.Stage)
	if stage == "" {
		stage = domain.StageChallenge
	}
	funded := domain.FundedMode(c.FundedMode)
	if funded == "" {
		funded = domain.FundedStandard
	}
	midnightMultiplier := c.MidnightBufferMultiplier
	if midnightMultiplier == 0 {
		midnightMultiplier = 1.0
	}
	midnightWindow := c.MidnightWindowMinutes
	if midnightWindow == 0 {
		midnightWindow = 30
	}
	maxDaysWithoutTrade := c.MaxDaysWithoutTrade
	if maxDaysWithoutTrade == 0 {
		maxDaysWithoutTrade = 25
	}
	inactivityWarningDays := c.InactivityWarningDays
	if inactivityWarningDays == 0 {
		inactivityWarningDays = 5
	}
	drawdownLimitPct := c.DrawdownLimitPct
	if drawdownLimitPct == 0 {
		drawdownLimitPct = 0.07
	}
	drawdownDaysLimit := c.DrawdownDaysLimit
	if drawdownDaysLimit == 0 {
		drawdownDaysLimit = 30
	}
	drawdownWarningDays := c.DrawdownWarningDays
	if drawdownWarningDays == 0 {
		drawdownWarningDays = 5
	}

	fees := make(map[string]domain.FeeSchedule, len(c.Fees))
	for symbol, f := range c.Fees {
		fees[symbol] = domain.FeeSchedule{
			CommissionPerLotRoundTrip: f.CommissionUSDPerLotRoundTrip,
			SwapPerLotPerDay:          f.SwapUSDPerLotPerDay,
		}
	}

	return domain.RuleSpec{
		AccountSize:              c.AccountSize,
		MaxDailyLoss:             c.MaxDailyLoss,
		MaxTotalLoss:             c.MaxTotalLoss,
		ChallengeTarget:          c.ChallengeProfitTarget,
		VerificationTarget:       c.VerificationProfitTarget,
		MinTradingDays:           c.MinTradingDays,
		Timezone:                 zone,
		DailyLossStopPct:         c.DailyLossStopPct,
		MaxLossStopPct:           c.MaxLossStopPct,
		MidnightPolicy:           midnight,
		MidnightWindowMinutes:    midnightWindow,
		MidnightBufferMultiplier: midnightMultiplier,
		MaxDaysWithoutTrade:      maxDaysWithoutTrade,
		InactivityWarningDays:    inactivityWarningDays,
		DrawdownLimitPct:         drawdownLimitPct,
		DrawdownDaysLimit:        drawdownDaysLimit,
		DrawdownWarningDays:      drawdownWarningDays,
		Stage:                    stage,
		FundedMode:               funded,
		StrategyIsLegit:          c.StrategyIsLegit,
		MTMMode:                  mtm,
		Fees:                     fees,
		MoneyFloorDailyBuffer:    c.MoneyFloorDailyBuffer,
		MoneyFloorMaxBuffer:      c.MoneyFloorMaxBuffer,
	}
}

// StrategyConfig names the signal-generating strategy plugged into the
// service loop and its free-form parameters. The supervisor itself never
// interprets Parameters; that belongs to whatever ports.Strategy is wired.
type StrategyConfig struct {
	Name       string                 `yaml:"name"`
	Parameters map[string]interface{} `yaml:"parameters"`
}

// ThrottleConfig is the broker request-pacing budget.
type ThrottleConfig struct {
	MaxRequestsPerDay         int `yaml:"max_requests_per_day"`
	MaxModificationsPerMinute int `yaml:"max_modifications_per_minute"`
	MinSecondsBetweenRequests int `yaml:"min_seconds_between_requests"`
}

// ExecutionConfig selects the broker adapter and its guardrails.
type ExecutionConfig struct {
	Broker                 string         `yaml:"broker"`
	Account                string         `yaml:"account"`
	Throttle               ThrottleConfig `yaml:"throttle"`
	DuplicateWindowSeconds float64        `yaml:"duplicate_window_seconds"`
	// DuplicateBlock defaults to true; a *bool distinguishes "absent from
	// YAML" from an explicit false, which a plain bool cannot.
	DuplicateBlock *bool `yaml:"duplicate_block"`
}

// DuplicateBlockOrDefault reports the effective duplicate-suppression
// setting, defaulting to true when unset.
func (c ExecutionConfig) DuplicateBlockOrDefault() bool {
	if c.DuplicateBlock == nil {
		return true
	}
	return *c.DuplicateBlock
}

// MonitoringConfig points at the append-only audit trail.
type MonitoringConfig struct {
	AuditLogPath string `yaml:"audit_log_path"`
}

// GateConfig is the threshold the evaluation simulator's batch of runs is
// judged against.
type GateConfig struct {
	MinPassRate         float64 `yaml:"min_pass_rate"`
	MaxBufferBreachRuns int     `yaml:"max_buffer_breach_runs"`
}

// RuntimeConfig sets the service loop's task periods and every on-disk
// state path the runtime persists to.
type RuntimeConfig struct {
	FastLoopIntervalSeconds    float64 `yaml:"fast_loop_interval_seconds"`
	BarLoopIntervalSeconds     float64 `yaml:"bar_loop_interval_seconds"`
	ReconcileIntervalSeconds   float64 `yaml:"reconcile_interval_seconds"`
	HealthCheckIntervalSeconds float64 `yaml:"health_check_interval_seconds"`
	StatusIntervalSeconds      float64 `yaml:"status_interval_seconds"`
	StatusPath                 string  `yaml:"status_path"`
	SafeModePath               string  `yaml:"safe_mode_path"`
	DailyMetricsPath           string  `yaml:"daily_metrics_path"`
	DriftStatePath             string  `yaml:"drift_state_path"`
	DriftUnresolvedSeconds     float64 `yaml:"drift_unresolved_seconds"`
}

// ToServiceConfig converts the parsed intervals into the durations
// internal/service.Config expects.
func (c RuntimeConfig) ToServiceConfig() service.Config {
	return service.Config{
		FastLoopInterval:    durationOf(c.FastLoopIntervalSeconds),
		BarLoopInterval:     durationOf(c.BarLoopIntervalSeconds),
		ReconcileInterval:   durationOf(c.ReconcileIntervalSeconds),
		HealthCheckInterval: durationOf(c.HealthCheckIntervalSeconds),
	}
}

func durationOf(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}

// LogConfig controls the ambient structured-logging sink, independent of
// the domain audit trail.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// BotConfig is the full frozen configuration for one supervisor run.
type BotConfig struct {
	Name        string           `yaml:"name"`
	Version     string           `yaml:"version"`
	RunIDPrefix string           `yaml:"run_id_prefix"`
	Instruments []string         `yaml:"instruments"`
	RuleSpec    RuleSpecConfig   `yaml:"rule_spec"`
	Strategy    StrategyConfig   `yaml:"strategy"`
	Execution   ExecutionConfig  `yaml:"execution"`
	Monitoring  MonitoringConfig `yaml:"monitoring"`
	Gate        GateConfig       `yaml:"gate"`
	Runtime     RuntimeConfig    `yaml:"runtime"`
	Log         LogConfig        `yaml:"log"`
}

// Load reads path as YAML and layers .env overrides for the log settings on
// top, the same precedence order the loader this is grounded on uses for
// its own environment overrides. It returns ErrConfiguration-wrapped errors
// for anything malformed, since a bad config is the one failure mode the
// supervisor is allowed to abort the process over.
func Load(path string) (*BotConfig, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: config.Load: read %q: %w", domain.ErrConfiguration, path, err)
	}

	var cfg BotConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: config.Load: parse YAML: %w", domain.ErrConfiguration, err)
	}

	if err := requireNonEmpty(cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

func requireNonEmpty(cfg BotConfig) error {
	switch {
	case cfg.Name == "":
		return fmt.Errorf("config.Load: missing required config key: name")
	case cfg.Version == "":
		return fmt.Errorf("config.Load: missing required config key: version")
	case len(cfg.Instruments) == 0:
		return fmt.Errorf("config.Load: missing required config key: instruments")
	case cfg.RuleSpec.AccountSize == 0:
		return fmt.Errorf("config.Load: missing required config key: rule_spec.account_size")
	case cfg.Strategy.Name == "":
		return fmt.Errorf("config.Load: missing required config key: strategy.name")
	case cfg.Execution.Broker == "":
		return fmt.Errorf("config.Load: missing required config key: execution.broker")
	}
	return nil
}

func applyEnvOverrides(cfg *BotConfig) {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setDefaults(cfg *BotConfig) {
	if cfg.RunIDPrefix == "" {
		cfg.RunIDPrefix = cfg.Name
	}
	if cfg.Execution.DuplicateWindowSeconds <= 0 {
		cfg.Execution.DuplicateWindowSeconds = 10.0
	}
	if cfg.Monitoring.AuditLogPath == "" {
		cfg.Monitoring.AuditLogPath = "runtime/audit.log"
	}
	if cfg.Gate.MinPassRate <= 0 {
		cfg.Gate.MinPassRate = 0.7
	}
	if cfg.Runtime.FastLoopIntervalSeconds <= 0 {
		cfg.Runtime.FastLoopIntervalSeconds = 0.5
	}
	if cfg.Runtime.BarLoopIntervalSeconds <= 0 {
		cfg.Runtime.BarLoopIntervalSeconds = 60.0
	}
	if cfg.Runtime.ReconcileIntervalSeconds <= 0 {
		cfg.Runtime.ReconcileIntervalSeconds = 30.0
	}
	if cfg.Runtime.HealthCheckIntervalSeconds <= 0 {
		cfg.Runtime.HealthCheckIntervalSeconds = 10.0
	}
	if cfg.Runtime.StatusIntervalSeconds <= 0 {
		cfg.Runtime.StatusIntervalSeconds = 5.0
	}
	if cfg.Runtime.StatusPath == "" {
		cfg.Runtime.StatusPath = "runtime/status.json"
	}
	if cfg.Runtime.SafeModePath == "" {
		cfg.Runtime.SafeModePath = "runtime/safe_mode.json"
	}
	if cfg.Runtime.DailyMetricsPath == "" {
		cfg.Runtime.DailyMetricsPath = "runtime/daily_metrics.json"
	}
	if cfg.Runtime.DriftStatePath == "" {
		cfg.Runtime.DriftStatePath = "runtime/drift_state.json"
	}
	if cfg.Runtime.DriftUnresolvedSeconds <= 0 {
		cfg.Runtime.DriftUnresolvedSeconds = 60.0
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
