// Package notify implements ports.Notifier and ports.Monitor against
// process stdout: alerts as plain lines, and a tabular RuntimeStatus
// report (PrintStatus).
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alejandrodnm/ftmorisk/internal/domain"
	"github.com/olekukonko/tablewriter"
)

// Console implements ports.Notifier by writing one timestamped line per
// alert to out.
type Console struct {
	out io.Writer
}

// NewConsole creates a notifier that writes to stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter creates a notifier for tests.
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Notify implements ports.Notifier.
func (c *Console) Notify(kind, message string) error {
	_, err := fmt.Fprintf(c.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), kind, message)
	return err
}

// ConsoleMonitor implements ports.Monitor on top of a ports.Notifier,
// translating governor/service events into Notify calls the way the
// source's Monitor dataclass wraps a Notifier.
type ConsoleMonitor struct {
	Notifier interface {
		Notify(kind, message string) error
	}
}

// NewConsoleMonitor wraps notifier in a Monitor.
func NewConsoleMonitor(notifier interface {
	Notify(kind, message string) error
}) *ConsoleMonitor {
	return &ConsoleMonitor{Notifier: notifier}
}

func (m *ConsoleMonitor) RuleBufferBreach(which string, remaining float64) {
	_ = m.Notifier.Notify("RULE_BUFFER", fmt.Sprintf("%s buffer reached, remaining %.2f", which, remaining))
}

func (m *ConsoleMonitor) FlattenTrigger(reason string) {
	_ = m.Notifier.Notify("FLATTEN", reason)
}

func (m *ConsoleMonitor) Disconnect(reason string) {
	_ = m.Notifier.Notify("DISCONNECT", reason)
}

func (m *ConsoleMonitor) InactivityWarning(message string) {
	_ = m.Notifier.Notify("INACTIVITY", message)
}

func (m *ConsoleMonitor) SafeMode(reason string) {
	_ = m.Notifier.Notify("SAFE_MODE", reason)
}

// PrintStatus renders a RuntimeStatus as a tabular report.
func PrintStatus(w io.Writer, status domain.RuntimeStatus) {
	fmt.Fprintf(w, "\nrun %s — generated %s\n\n", status.RunID, status.GeneratedAt.Format(time.RFC3339))

	table := tablewriter.NewWriter(w)
	table.Header("Field", "Value")
	table.Append("Governor state", status.GovernorState)
	table.Append("Safe mode", safeModeLabel(status.SafeMode))
	table.Append("Open orders", fmt.Sprintf("%d", status.OpenOrders))
	table.Append("Open positions", fmt.Sprintf("%d", status.OpenPositions))
	table.Append("Remaining daily loss", fmt.Sprintf("$%.2f", status.Headroom.RemainingDailyLoss))
	table.Append("Remaining max loss", fmt.Sprintf("$%.2f", status.Headroom.RemainingMaxLoss))
	table.Append("Drawdown", fmt.Sprintf("%.2f%%", status.Headroom.DrawdownPct*100))
	table.Append("Days since last trade", fmt.Sprintf("%d", status.Headroom.DaysSinceLastTrade))
	table.Append("Trading days", fmt.Sprintf("%d/%d", status.Headroom.TradingDaysDone, status.Headroom.TradingDaysNeeded))
	table.Append("Profit target gap", fmt.Sprintf("$%.2f", status.Headroom.ProfitTargetGap))
	table.Append("Last reconcile", status.LastReconcile.Format(time.RFC3339))
	table.Render()
}

// ConsoleBundleEmitter implements ports.BundleEmitter by logging a line to
// the console rather than assembling any report artifact; packaging and
// delivery are out of scope, this exists only so the service loop's daily
// hook has somewhere to call.
type ConsoleBundleEmitter struct {
	out io.Writer
}

// NewConsoleBundleEmitter creates a bundle emitter writing to stdout.
func NewConsoleBundleEmitter() *ConsoleBundleEmitter {
	return &ConsoleBundleEmitter{out: os.Stdout}
}

// NewConsoleBundleEmitterWriter creates a bundle emitter for tests.
func NewConsoleBundleEmitterWriter(w io.Writer) *ConsoleBundleEmitter {
	return &ConsoleBundleEmitter{out: w}
}

// EmitDailyBundle implements ports.BundleEmitter.
func (c *ConsoleBundleEmitter) EmitDailyBundle(ctx context.Context, day time.Time) error {
	_, err := fmt.Fprintf(c.out, "[%s] daily bundle ready for %s\n", time.Now().Format("15:04:05"), day.Format("2006-01-02"))
	return err
}

func safeModeLabel(s domain.SafeModeState) string {
	if !s.Active {
		return "clear"
	}
	return fmt.Sprintf("ACTIVE (%s since %s)", s.Reason, s.TrippedAt.Format(time.RFC3339))
}
