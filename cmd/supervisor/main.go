package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alejandrodnm/ftmorisk/config"
	"github.com/alejandrodnm/ftmorisk/internal/adapters/audit"
	"github.com/alejandrodnm/ftmorisk/internal/adapters/broker"
	"github.com/alejandrodnm/ftmorisk/internal/adapters/notify"
	"github.com/alejandrodnm/ftmorisk/internal/adapters/storage"
	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/alejandrodnm/ftmorisk/internal/execution"
	"github.com/alejandrodnm/ftmorisk/internal/gate"
	"github.com/alejandrodnm/ftmorisk/internal/governor"
	"github.com/alejandrodnm/ftmorisk/internal/metrics"
	"github.com/alejandrodnm/ftmorisk/internal/ports"
	"github.com/alejandrodnm/ftmorisk/internal/safemode"
	"github.com/alejandrodnm/ftmorisk/internal/service"
	"github.com/alejandrodnm/ftmorisk/internal/simulator"
	"github.com/alejandrodnm/ftmorisk/internal/throttle"
)

var governorStates = []string{"healthy", "buffered_daily", "buffered_max", "reduce", "flatten", "disabled"}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	runID := flag.String("run-id", "", "run identifier (default: <run_id_prefix>-<uuid8>)")
	resume := flag.Bool("resume", false, "resume from the journal and safe-mode state already on disk")
	clearSafe := flag.Bool("clear-safe", false, "clear the safe-mode latch and exit")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	metricsAddr := flag.String("metrics-addr", ":9090", "address to serve Prometheus metrics on (empty disables it)")
	simulatePath := flag.String("simulate", "", "run the evaluation simulator over a JSON trades file instead of going live")
	monteCarloRuns := flag.Int("monte-carlo-runs", 0, "when set with -simulate, re-run the trade file this many times with slippage/spread perturbation")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}
	configHash, err := configFileHash(*configPath)
	if err != nil {
		slog.Error("failed to hash config file", "err", err, "path", *configPath)
		os.Exit(1)
	}
	if *verbose {
		cfg.Log.Level = "debug"
	}
	setupLogger(cfg.Log)

	spec := cfg.RuleSpec.ToDomain()
	if err := spec.Validate(); err != nil {
		slog.Error("invalid rule spec", "err", err)
		os.Exit(1)
	}
	zone, err := time.LoadLocation(spec.Timezone)
	if err != nil {
		slog.Error("invalid timezone", "err", err, "timezone", spec.Timezone)
		os.Exit(1)
	}

	id := *runID
	if id == "" {
		id = fmt.Sprintf("%s-%s", cfg.RunIDPrefix, uuid.NewString()[:8])
	}

	if *simulatePath != "" {
		runSimulation(cfg, spec, zone, *simulatePath, *monteCarloRuns)
		return
	}

	for _, dir := range []string{filepath.Dir(cfg.Runtime.StatusPath), filepath.Dir(cfg.Runtime.SafeModePath), filepath.Dir(cfg.Monitoring.AuditLogPath)} {
		if dir != "" && dir != "." {
			_ = os.MkdirAll(dir, 0o755)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: *metricsAddr, Handler: mux}
		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server stopped", "err", err)
			}
		}()
		go func() {
			<-ctx.Done()
			_ = server.Close()
		}()
	}

	auditLog, err := audit.New(cfg.Monitoring.AuditLogPath, configHash)
	if err != nil {
		slog.Error("failed to open audit log", "err", err, "path", cfg.Monitoring.AuditLogPath)
		os.Exit(1)
	}

	safeModeStore := storage.NewFileSafeModeStore(cfg.Runtime.SafeModePath)
	monitor := notify.NewConsoleMonitor(notify.NewConsole())
	safeCtl, err := safemode.New(ctx, safeModeStore, monitor, auditLog, id)
	if err != nil {
		slog.Error("failed to load safe-mode state", "err", err)
		os.Exit(1)
	}

	if *clearSafe {
		if err := safeCtl.Clear(ctx); err != nil {
			slog.Error("failed to clear safe mode", "err", err)
			os.Exit(1)
		}
		slog.Info("safe-mode latch cleared")
		return
	}

	if safeCtl.State().Active {
		slog.Error("safe mode is latched; refusing to start. Use -clear-safe once the cause is resolved.",
			"reason", safeCtl.State().Reason, "detail", safeCtl.State().Detail, "tripped_at", safeCtl.State().TrippedAt)
		os.Exit(1)
	}

	slog.Info("ftmorisk starting",
		"config", *configPath, "run_id", id, "resume", *resume,
		"instruments", cfg.Instruments, "stage", spec.Stage, "broker", cfg.Execution.Broker,
	)

	journalPath := "runtime/journal.db"
	journal, err := storage.NewSQLiteJournal(journalPath)
	if err != nil {
		slog.Error("failed to open journal", "err", err, "path", journalPath)
		os.Exit(1)
	}
	defer journal.Close()

	var brokerAdapter = selectBroker(cfg.Execution.Broker)

	th := throttle.New(
		cfg.Execution.Throttle.MaxRequestsPerDay,
		cfg.Execution.Throttle.MaxModificationsPerMinute,
		cfg.Execution.Throttle.MinSecondsBetweenRequests,
		zone,
	)

	engine := execution.New(brokerAdapter, journal, th, auditLog, monitor, id, func() string { return uuid.NewString() })
	engine.DuplicateWindow = time.Duration(cfg.Execution.DuplicateWindowSeconds * float64(time.Second))
	engine.DuplicateBlock = cfg.Execution.DuplicateBlockOrDefault()

	ruleEngine := domain.NewRuleEngine(spec)
	gov := governor.New(ruleEngine, auditLog, monitor)

	driftStore := storage.NewFileDriftStore(cfg.Runtime.DriftStatePath)
	driftEntries, err := driftStore.Load(ctx)
	if err != nil {
		slog.Error("failed to load drift state", "err", err)
		os.Exit(1)
	}
	driftTracker := domain.NewDriftTracker(time.Duration(cfg.Runtime.DriftUnresolvedSeconds * float64(time.Second)))
	driftTracker.Entries = driftEntries

	statusStore := storage.NewFileStatusStore(cfg.Runtime.StatusPath)
	dailyMetricsStore := storage.NewFileDailyMetricsStore(cfg.Runtime.DailyMetricsPath)
	var bundleEmitter ports.BundleEmitter = notify.NewConsoleBundleEmitter()

	loop := service.New(engine, cfg.Runtime.ToServiceConfig(), safeCtl, auditLog)

	var lastMetricsDay time.Time

	// fastCallback has no strategy to drive order flow with (left
	// pluggable, see ports.Strategy), but still pulls the live account
	// snapshot through the governor on every tick so buffer breaches and
	// flatten/disable transitions are caught at fast-loop cadence.
	fastCallback := func(ctx context.Context) error {
		state, err := brokerAdapter.GetAccountSnapshot(ctx)
		if err != nil {
			return err
		}
		state.InitialBalance = spec.AccountSize
		metrics.EquityUSD.Set(state.EffectiveEquity())

		decision, err := gov.EvaluateState(ctx, &state)
		if err != nil {
			return err
		}
		if decision.Flatten {
			slog.Warn("governor requested flatten", "reason", decision.Reason)
		}
		label := governorStateLabel(decision)
		if disabled, _ := gov.Disabled(); disabled {
			label = "disabled"
		}
		metrics.SetGovernorState(governorStates, label)
		return nil
	}

	barCallback := func(ctx context.Context) error {
		report, err := engine.Reconcile(ctx, time.Now())
		if err != nil {
			return err
		}
		obs := driftTracker.Observe(report)
		for _, e := range obs.Detected {
			slog.Info("drift detected", "kind", e.Kind, "key", e.Key)
			_ = auditLog.Log(ctx, domain.AuditEvent{Name: domain.EventDriftDetected, RunID: id, Payload: domain.DriftEventPayload{Entries: []domain.DriftEntry{e}}})
		}
		for _, e := range obs.Resolved {
			slog.Info("drift resolved", "kind", e.Kind, "key", e.Key)
			_ = auditLog.Log(ctx, domain.AuditEvent{Name: domain.EventDriftResolved, RunID: id, Payload: domain.DriftEventPayload{Entries: []domain.DriftEntry{e}}})
		}
		if len(obs.Unresolved) > 0 {
			reasons := make([]string, len(obs.Unresolved))
			for i, e := range obs.Unresolved {
				slog.Warn("drift unresolved, escalating to safe mode", "kind", e.Kind, "key", e.Key)
				metrics.DriftEscalations.WithLabelValues(e.Kind).Inc()
				reasons[i] = fmt.Sprintf("%s %s", e.Kind, e.Key)
			}
			_ = auditLog.Log(ctx, domain.AuditEvent{Name: domain.EventDriftUnresolved, RunID: id, Payload: domain.DriftEventPayload{Entries: obs.Unresolved}})
			if err := safeCtl.Enable(ctx, "Drift unresolved: "+strings.Join(reasons, ", ")); err != nil {
				return err
			}
		}
		if err := driftStore.Save(ctx, driftTracker.Entries); err != nil {
			return err
		}

		state, err := brokerAdapter.GetAccountSnapshot(ctx)
		if err != nil {
			return err
		}
		today := domain.DayStartFor(report.At, zone)
		if lastMetricsDay.IsZero() {
			lastMetricsDay = today
		} else if today.After(lastMetricsDay) {
			if _, err := gov.CheckInactivity(ctx, &state); err != nil {
				return err
			}
			if err := dailyMetricsStore.Append(ctx, domain.DailyMetricsEntry{
				Date:       lastMetricsDay,
				EndEquity:  state.EffectiveEquity(),
				EndBalance: state.Balance,
			}); err != nil {
				return err
			}
			if err := bundleEmitter.EmitDailyBundle(ctx, lastMetricsDay); err != nil {
				slog.Warn("daily bundle emission failed", "err", err, "day", lastMetricsDay)
			}
			lastMetricsDay = today
		}

		status := domain.RuntimeStatus{RunID: id, GeneratedAt: time.Now().UTC(), SafeMode: safeCtl.State(), LastReconcile: report.At}
		if status.SafeMode.Active {
			metrics.SafeModeActive.Set(1)
		} else {
			metrics.SafeModeActive.Set(0)
		}
		return statusStore.Save(ctx, status)
	}

	if err := loop.RunForever(ctx, fastCallback, barCallback); err != nil && ctx.Err() == nil {
		slog.Error("service loop exited with error", "err", err)
		os.Exit(1)
	}
	slog.Info("ftmorisk stopped cleanly")
}

// governorStateLabel maps a governor decision onto the coarse state label
// the metrics gauge tracks. It does not attempt to distinguish
// buffered_daily from buffered_max (the governor does not return which
// buffer triggered a non-latching refusal), so every refusal that carries
// neither the flatten nor the reduce-only flag is reported as
// "buffered_daily".
func governorStateLabel(decision governor.Decision) string {
	switch {
	case !decision.Allow && decision.Flatten:
		return "flatten"
	case !decision.Allow && decision.ReduceOnly:
		return "reduce"
	case !decision.Allow:
		return "buffered_daily"
	default:
		return "healthy"
	}
}

// configFileHash returns the SHA-256 hex digest of the config file's raw
// bytes, stamped into every audit record so a run's audit trail can be
// tied back to the exact config it started from. It is intentionally
// nothing more than that: no lock file, no comparison, no abort-on-mismatch
// path.
func configFileHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func selectBroker(name string) *broker.Paper {
	switch name {
	case "", "paper":
		return broker.NewPaper(true, nil)
	default:
		slog.Warn("no live broker adapter wired for this configuration; falling back to the paper broker", "broker", name)
		return broker.NewPaper(true, nil)
	}
}

// runSimulation replays a JSON trade file (an array of domain.Trade-shaped
// records) through the evaluation simulator and prints a gate verdict,
// never touching a broker or the runtime state files.
func runSimulation(cfg *config.BotConfig, spec domain.RuleSpec, zone *time.Location, path string, monteCarloRuns int) {
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("failed to read trades file", "err", err, "path", path)
		os.Exit(1)
	}
	var trades []domain.Trade
	if err := json.Unmarshal(data, &trades); err != nil {
		slog.Error("failed to parse trades file", "err", err, "path", path)
		os.Exit(1)
	}

	sim := simulator.New(spec, zone)
	var results []domain.SimulationResult

	if monteCarloRuns > 0 {
		rng := rand.New(rand.NewSource(1))
		mcConfig := domain.MonteCarloConfig{Runs: monteCarloRuns, SlippageRange: [2]float64{0, 2}, SpreadRange: [2]float64{0, 1}}
		results, err = sim.RunMonteCarlo(trades, spec.AccountSize, mcConfig, rng)
		if err != nil {
			slog.Error("monte carlo simulation failed", "err", err)
			os.Exit(1)
		}
	} else {
		result, err := sim.SimulateTrades(trades, spec.AccountSize)
		if err != nil {
			slog.Error("simulation failed", "err", err)
			os.Exit(1)
		}
		results = []domain.SimulationResult{result}
	}

	verdict := gate.Assess(results, cfg.Gate.MinPassRate, cfg.Gate.MaxBufferBreachRuns)
	slog.Info("evaluation gate verdict",
		"runs", len(results), "pass_rate", verdict.PassRate, "meets_threshold", verdict.MeetsThreshold,
		"avg_trading_days", verdict.AverageTradingDays, "avg_target_progress", verdict.AverageTargetProgress,
		"buffer_breach_runs", verdict.BufferBreachRuns, "min_daily_headroom", verdict.MinDailyHeadroom,
		"min_max_headroom", verdict.MinMaxHeadroom, "failures", verdict.Failures,
	)
	if !verdict.MeetsThreshold {
		os.Exit(1)
	}
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
