package savings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/service"
	"github.com/Veraticus/spendguard/internal/storage"
	"github.com/Veraticus/spendguard/internal/testutil"
)

func TestLedger_RecordAbandonFold(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 14, 10, 0, 0, 0, time.UTC)
	ledger := NewLedger(storage.NewMemoryStorage(), func() time.Time { return now })

	_, err := ledger.RecordAbandon(ctx, 30, "Books", "Dune")
	require.NoError(t, err)
	got, err := ledger.RecordAbandon(ctx, 10, "Books", "Bookmark")
	require.NoError(t, err)

	assert.InDelta(t, 40, got.TotalSaved, 0.0001)
	assert.Equal(t, 2, got.InterceptsCount)
	assert.InDelta(t, 40, got.CategorySavings["Books"], 0.0001)
	assert.InDelta(t, 40, got.MonthlySavings["2026-04"], 0.0001)
	assert.InDelta(t, 30, got.BiggestSave.Amount, 0.0001)
	assert.Equal(t, "Dune", got.BiggestSave.ProductName)
	assert.Equal(t, now, got.LastInterceptDate)

	stored, err := ledger.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, stored)
}

func TestLedger_SummaryOnEmptyStore(t *testing.T) {
	ledger := NewLedger(storage.NewMemoryStorage(), nil)

	summary := ledger.Summary(context.Background())
	assert.Zero(t, summary.TotalSaved)
	assert.Zero(t, summary.InterceptsCount)
	assert.Zero(t, summary.AverageSave)
	assert.NotNil(t, summary.CategorySavings)
	assert.Empty(t, summary.CategorySavings)
	assert.Empty(t, summary.Monthly)
	assert.Zero(t, summary.BiggestSave.Amount)
}

func TestLedger_RejectsNegativeAmount(t *testing.T) {
	ledger := NewLedger(storage.NewMemoryStorage(), nil)
	_, err := ledger.RecordAbandon(context.Background(), -1, "Books", "")
	require.Error(t, err)
}

func TestLedger_RecoversFromCorruptLedger(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStorage()
	require.NoError(t, kv.Set(ctx, service.KeySavings, []byte(`"not a ledger"`)))
	ledger := NewLedger(kv, nil)

	got, err := ledger.RecordAbandon(ctx, 12.5, "", "")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, got.TotalSaved, 0.0001)
	assert.InDelta(t, 12.5, got.CategorySavings["Other"], 0.0001)
}

// failingGetKV fails reads while failGet is set and counts writes.
type failingGetKV struct {
	*storage.MemoryStorage
	failGet bool
	sets    int
}

func (f *failingGetKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if f.failGet {
		return nil, false, errors.New("database is locked")
	}
	return f.MemoryStorage.Get(ctx, key)
}

func (f *failingGetKV) Set(ctx context.Context, key string, value []byte) error {
	f.sets++
	return f.MemoryStorage.Set(ctx, key, value)
}

func TestLedger_KeepsTotalsWhenStoreReadFails(t *testing.T) {
	ctx := context.Background()
	kv := &failingGetKV{MemoryStorage: storage.NewMemoryStorage()}
	ledger := NewLedger(kv, nil)

	for range 3 {
		_, err := ledger.RecordAbandon(ctx, 100, "Electronics", "Headphones")
		require.NoError(t, err)
	}
	require.Equal(t, 3, kv.sets)

	kv.failGet = true
	_, err := ledger.RecordAbandon(ctx, 5, "Books", "Paperback")
	require.ErrorIs(t, err, common.ErrStoreUnavailable)
	assert.Equal(t, 3, kv.sets, "a failed read must not be followed by a write")

	kv.failGet = false
	stored, err := ledger.Load(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 300, stored.TotalSaved, 0.0001)
	assert.Equal(t, 3, stored.InterceptsCount)
}

func TestFoldDoesNotMutateInput(t *testing.T) {
	base := model.NewSavingsLedger()
	base.CategorySavings["Food"] = 5

	at := time.Date(2026, 1, 31, 23, 0, 0, 0, time.UTC)
	next := Fold(base, Event{At: at, Category: "Food", Amount: 5})

	assert.InDelta(t, 5, base.CategorySavings["Food"], 0.0001)
	assert.InDelta(t, 10, next.CategorySavings["Food"], 0.0001)
}

func TestFoldBiggestSaveKeepsFirstOnTie(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := Fold(model.NewSavingsLedger(), Event{At: at, Amount: 20, ProductName: "first"})
	l = Fold(l, Event{At: at.Add(time.Hour), Amount: 20, ProductName: "second"})

	assert.Equal(t, "first", l.BiggestSave.ProductName)
}

func TestSummarizeMonthlySeries(t *testing.T) {
	l := model.NewSavingsLedger()
	l = Fold(l, Event{At: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), Amount: 10})
	l = Fold(l, Event{At: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC), Amount: 20})
	l = Fold(l, Event{At: time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), Amount: 5})

	summary := Summarize(l, time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC))
	require.Len(t, summary.Monthly, 2)
	assert.Equal(t, "2026-01", summary.Monthly[0].Month)
	assert.Equal(t, "2026-03", summary.Monthly[1].Month)
	assert.InDelta(t, 15, summary.ThisMonth, 0.0001)
	assert.InDelta(t, 35.0/3.0, summary.AverageSave, 0.0001)
}

func TestFeedback(t *testing.T) {
	ledger := model.NewSavingsLedger()
	ledger = Fold(ledger, Event{At: time.Now(), Amount: 10})
	ledger = Fold(ledger, Event{At: time.Now(), Amount: 49})

	fb := NewFeedback(49, model.PurchaseContext{Price: model.Float(49), Currency: "EUR"}, ledger)
	assert.Equal(t, "You kept €49.00", fb.Title)
	assert.Contains(t, fb.Message, "€59.00")
	assert.Contains(t, fb.Message, "biggest save")

	estimate := NewFeedback(50, model.PurchaseContext{}, ledger)
	assert.Equal(t, "You kept about $50.00", estimate.Title)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "$1299.00", FormatAmount(1299, "USD"))
	assert.Equal(t, "¥1200", FormatAmount(1200, "JPY"))
	assert.Equal(t, "12.50 CHF", FormatAmount(12.5, "CHF"))
}

func TestLedger_PersistsInSQLite(t *testing.T) {
	ctx := context.Background()
	db := testutil.SetupTestDB(t)
	now := time.Date(2026, 4, 14, 10, 0, 0, 0, time.UTC)

	_, err := NewLedger(db.Storage, func() time.Time { return now }).RecordAbandon(ctx, 349, "Electronics", "Headphones")
	require.NoError(t, err)

	assert.Contains(t, string(db.Raw(service.KeySavings)), `"totalSaved":349`)

	reopened := NewLedger(db.Storage, func() time.Time { return now })
	summary := reopened.Summary(ctx)
	assert.InDelta(t, 349, summary.TotalSaved, 0.0001)
	assert.InDelta(t, 349, summary.ThisMonth, 0.0001)
	assert.Equal(t, "Headphones", summary.BiggestSave.ProductName)
}
