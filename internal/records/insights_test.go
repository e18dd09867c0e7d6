package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/service"
	"github.com/Veraticus/spendguard/internal/testutil"
	"github.com/Veraticus/spendguard/internal/testutil/purchases"
)

func TestBuildInsights(t *testing.T) {
	march := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	february := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	purchases := []model.PurchaseEntry{
		{Intercepted: true, Proceeded: true, Amount: model.Float(60), Category: "Books", Timestamp: march},
		{Intercepted: true, Amount: model.Float(60), Category: "Books", Timestamp: march},
		{Intercepted: true, Amount: model.Float(25), Category: "Food", Timestamp: march},
		{Intercepted: true, Proceeded: true, Amount: model.Float(500), Category: "Travel", Timestamp: february},
		{Intercepted: true, Amount: model.Float(500), Category: "Travel", Timestamp: february},
		{Intercepted: true, Timestamp: march},
	}
	settings := model.DefaultSettings()
	settings.CategoryBudgets = map[string]float64{"books": 50, "Clothing": 100}

	insights := BuildInsights(purchases, 7, settings, "2026-03")

	assert.Equal(t, 7, insights.TotalIntercepts)
	assert.Equal(t, 4, insights.Intercepted)
	assert.Equal(t, 2, insights.Proceeded)
	assert.Equal(t, 2, insights.Abandoned)
	assert.InDelta(t, 0.5, insights.AbandonRate, 0.0001)
	assert.InDelta(t, 585, insights.AmountReconsidered, 0.001)
	assert.InDelta(t, 560, insights.AmountProceeded, 0.001)
	assert.Equal(t, "Books", insights.TopCategory)
	assert.Equal(t, []string{"Books"}, insights.OverBudget)

	byName := make(map[string]model.CategorySpend)
	for _, c := range insights.Categories {
		byName[c.Category] = c
	}
	assert.True(t, byName["Books"].HasBudget)
	assert.InDelta(t, -10, byName["Books"].Remaining, 0.001)
	assert.Contains(t, byName, "Clothing")
	assert.False(t, byName["Clothing"].OverBudget)
	assert.NotContains(t, byName, "Travel", "last month's spend is not part of this month's budget view")
}

func TestBuildInsightsEmpty(t *testing.T) {
	insights := BuildInsights(nil, 0, model.DefaultSettings(), "2026-03")
	assert.Zero(t, insights.Intercepted)
	assert.Zero(t, insights.AbandonRate)
	assert.Empty(t, insights.Categories)
	assert.NotNil(t, insights.OverBudget)
	assert.Empty(t, insights.TopCategory)
}

func TestStore_InsightsFromSQLite(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)

	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	history := purchases.NewBuilder(start).
		Abandoned("Headphones", "Electronics", 349).
		Proceeded("Dune", "Books", 30).
		Skipped("Desk Lamp", "Home", 45).
		Build()

	settings := model.DefaultSettings()
	settings.CategoryBudgets = map[string]float64{"Books": 20}

	db.Seed(service.KeyPurchases, history)
	db.Seed(service.KeyTotalIntercepts, 3)
	db.Seed(service.KeySettings, settings)

	store := New(db.Storage, fixedClock(time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)))
	insights, err := store.Insights(ctx)
	require.NoError(t, err)

	assert.Equal(t, 3, insights.TotalIntercepts)
	assert.Equal(t, 3, insights.Intercepted)
	assert.Equal(t, 2, insights.Proceeded)
	assert.Equal(t, 1, insights.Abandoned)
	assert.InDelta(t, 424, insights.AmountReconsidered, 0.001)
	assert.InDelta(t, 75, insights.AmountProceeded, 0.001)
	assert.Equal(t, "Home", insights.TopCategory)
	assert.Equal(t, []string{"Books"}, insights.OverBudget)
}
