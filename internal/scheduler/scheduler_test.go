package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/Veraticus/spendguard/internal/model"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type stubInsights struct {
	err      error
	insights model.SpendingInsights
}

func (s stubInsights) Insights(context.Context) (model.SpendingInsights, error) {
	return s.insights, s.err
}

type stubSavings struct {
	summary model.SavingsSummary
}

func (s stubSavings) Summary(context.Context) model.SavingsSummary {
	return s.summary
}

func TestBudgetAlerts(t *testing.T) {
	tests := []struct {
		name       string
		categories []model.CategorySpend
		want       []string
	}{
		{
			name: "no budgets",
			categories: []model.CategorySpend{
				{Category: "Books", Spent: 500},
			},
			want: []string{},
		},
		{
			name: "over and near",
			categories: []model.CategorySpend{
				{Category: "Home", Spent: 90, Budget: 100, HasBudget: true},
				{Category: "Books", Spent: 60, Budget: 50, HasBudget: true, OverBudget: true},
				{Category: "Food", Spent: 10, Budget: 100, HasBudget: true},
			},
			want: []string{
				"Books is over budget: $60.00 spent of $50.00.",
				"Home is at 90% of its budget: $10.00 left.",
			},
		},
		{
			name: "exactly at warn ratio",
			categories: []model.CategorySpend{
				{Category: "Clothing", Spent: 80, Budget: 100, HasBudget: true},
			},
			want: []string{"Clothing is at 80% of its budget: $20.00 left."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BudgetAlerts(model.SpendingInsights{Categories: tt.categories}, WarnRatio)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRolloverReport(t *testing.T) {
	now := time.Date(2026, 5, 1, 0, 5, 0, 0, time.UTC)
	summary := model.SavingsSummary{
		TotalSaved: 140,
		Monthly: []model.MonthlyAmount{
			{Month: "2026-03", Amount: 100},
			{Month: "2026-04", Amount: 40},
		},
	}
	assert.Equal(t, "You saved $40.00 in 2026-04 by walking away. Total saved so far: $140.00.",
		RolloverReport(summary, now))

	january := time.Date(2027, 1, 1, 0, 5, 0, 0, time.UTC)
	assert.Equal(t, "No savings recorded in 2026-12. Total saved so far: $140.00.",
		RolloverReport(summary, january))
}

func TestScheduler_RunNow(t *testing.T) {
	var alerts []string
	insights := stubInsights{insights: model.SpendingInsights{Categories: []model.CategorySpend{
		{Category: "Books", Spent: 60, Budget: 50, HasBudget: true, OverBudget: true},
	}}}
	s := New(context.Background(), insights, stubSavings{},
		WithNotifier(func(msg string) { alerts = append(alerts, msg) }),
		WithClock(func() time.Time { return time.Date(2026, 5, 1, 0, 5, 0, 0, time.UTC) }))

	s.RunBudgetCheckNow()
	s.RunRolloverNow()

	require.Len(t, alerts, 2)
	assert.Contains(t, alerts[0], "Books is over budget")
	assert.Contains(t, alerts[1], "2026-04")
}

func TestScheduler_BudgetCheckSkipsOnError(t *testing.T) {
	called := false
	s := New(context.Background(), stubInsights{err: errors.New("store down")}, stubSavings{},
		WithNotifier(func(string) { called = true }))

	s.RunBudgetCheckNow()
	assert.False(t, called)
}

func TestScheduler_RegisterAll(t *testing.T) {
	s := New(context.Background(), stubInsights{}, stubSavings{})

	require.Error(t, s.RegisterAll("not a cron", ""))

	s = New(context.Background(), stubInsights{}, stubSavings{})
	require.NoError(t, s.RegisterAll("", ""))
	s.Start()
	s.Stop()
}
