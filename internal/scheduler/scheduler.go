// Package scheduler runs the periodic budget check and the monthly savings
// rollover report.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/savings"
)

// Default schedules, in six-field cron syntax with seconds.
const (
	DefaultBudgetCron   = "0 0 9 * * *"
	DefaultRolloverCron = "0 5 0 1 * *"
)

// WarnRatio is the share of a budget at which a category is reported as
// approaching its limit.
const WarnRatio = 0.8

// InsightsSource reports this month's spending.
type InsightsSource interface {
	Insights(ctx context.Context) (model.SpendingInsights, error)
}

// SavingsSource reports the savings read model.
type SavingsSource interface {
	Summary(ctx context.Context) model.SavingsSummary
}

// Scheduler manages the cron jobs.
type Scheduler struct {
	ctx      context.Context
	cron     *cron.Cron
	insights InsightsSource
	savings  SavingsSource
	notify   func(string)
	now      func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNotifier sends each alert to fn instead of the log.
func WithNotifier(fn func(string)) Option {
	return func(s *Scheduler) {
		s.notify = fn
	}
}

// WithClock overrides the time source used for report labels.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		s.now = now
	}
}

// New creates a Scheduler. Jobs run with ctx.
func New(ctx context.Context, insights InsightsSource, summary SavingsSource, opts ...Option) *Scheduler {
	s := &Scheduler{
		ctx:      ctx,
		cron:     cron.New(cron.WithSeconds()),
		insights: insights,
		savings:  summary,
		now:      time.Now,
		notify: func(msg string) {
			slog.Info("Spending alert", "message", msg)
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RegisterAll registers the budget check and the monthly rollover.
func (s *Scheduler) RegisterAll(budgetCron, rolloverCron string) error {
	if budgetCron == "" {
		budgetCron = DefaultBudgetCron
	}
	if rolloverCron == "" {
		rolloverCron = DefaultRolloverCron
	}
	if _, err := s.cron.AddFunc(budgetCron, s.RunBudgetCheckNow); err != nil {
		return fmt.Errorf("register budget check: %w", err)
	}
	if _, err := s.cron.AddFunc(rolloverCron, s.RunRolloverNow); err != nil {
		return fmt.Errorf("register monthly rollover: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("Scheduler started", "jobs", len(s.cron.Entries()))
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	slog.Info("Scheduler stopped")
}

// RunBudgetCheckNow compares this month's spending against the budgets.
func (s *Scheduler) RunBudgetCheckNow() {
	insights, err := s.insights.Insights(s.ctx)
	if err != nil {
		slog.Warn("Budget check skipped", "error", err)
		return
	}
	alerts := BudgetAlerts(insights, WarnRatio)
	slog.Debug("Budget check complete", "alerts", len(alerts))
	for _, alert := range alerts {
		s.notify(alert)
	}
}

// RunRolloverNow reports how much was saved in the month that just ended.
func (s *Scheduler) RunRolloverNow() {
	summary := s.savings.Summary(s.ctx)
	msg := RolloverReport(summary, s.now())
	slog.Info("Monthly rollover", "month", previousMonth(s.now()), "total_saved", summary.TotalSaved)
	s.notify(msg)
}

// BudgetAlerts lists categories over budget, then categories at or above
// warnRatio of their budget, each group in name order.
func BudgetAlerts(insights model.SpendingInsights, warnRatio float64) []string {
	var over, near []model.CategorySpend
	for _, c := range insights.Categories {
		if !c.HasBudget || c.Budget <= 0 {
			continue
		}
		switch {
		case c.OverBudget || c.Spent > c.Budget:
			over = append(over, c)
		case c.Spent >= c.Budget*warnRatio:
			near = append(near, c)
		}
	}
	byName := func(cs []model.CategorySpend) {
		sort.Slice(cs, func(i, j int) bool { return cs[i].Category < cs[j].Category })
	}
	byName(over)
	byName(near)

	alerts := make([]string, 0, len(over)+len(near))
	for _, c := range over {
		alerts = append(alerts, fmt.Sprintf("%s is over budget: %s spent of %s.",
			c.Category, savings.FormatAmount(c.Spent, ""), savings.FormatAmount(c.Budget, "")))
	}
	for _, c := range near {
		alerts = append(alerts, fmt.Sprintf("%s is at %.0f%% of its budget: %s left.",
			c.Category, c.Spent/c.Budget*100, savings.FormatAmount(c.Budget-c.Spent, "")))
	}
	return alerts
}

// RolloverReport describes the savings of the month before now.
func RolloverReport(summary model.SavingsSummary, now time.Time) string {
	month := previousMonth(now)
	var saved float64
	for _, m := range summary.Monthly {
		if m.Month == month {
			saved = m.Amount
		}
	}
	if saved == 0 {
		return fmt.Sprintf("No savings recorded in %s. Total saved so far: %s.",
			month, savings.FormatAmount(summary.TotalSaved, ""))
	}
	return fmt.Sprintf("You saved %s in %s by walking away. Total saved so far: %s.",
		savings.FormatAmount(saved, ""), month, savings.FormatAmount(summary.TotalSaved, ""))
}

func previousMonth(now time.Time) string {
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return first.AddDate(0, -1, 0).Format(model.MonthKeyLayout)
}
