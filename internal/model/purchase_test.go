package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInterceptionEntry(t *testing.T) {
	at := time.Date(2026, 5, 2, 8, 0, 0, 0, time.UTC)

	entry := NewInterceptionEntry("https://shop.test/cart", PurchaseContext{
		ProductName: "Headphones",
		Price:       Float(199),
		Category:    "Electronics",
	}, at, false, ReasonIntercepted)

	assert.Empty(t, entry.ID, "the recorder assigns IDs")
	assert.True(t, entry.Intercepted)
	assert.False(t, entry.Proceeded)
	assert.Equal(t, ReasonIntercepted, entry.Reason)
	assert.Equal(t, "https://shop.test/cart", entry.URL)
	require.NotNil(t, entry.Amount)
	assert.InDelta(t, 199, *entry.Amount, 0.001)
	assert.Equal(t, "Headphones", entry.ProductName)
	assert.Equal(t, "Electronics", entry.Category)
	assert.Equal(t, at, entry.Timestamp)

	noPrice := NewInterceptionEntry("https://shop.test/cart", PurchaseContext{Price: Float(0)}, at, true, ReasonProceeded)
	assert.Nil(t, noPrice.Amount, "a zero price is not recorded as an amount")
	assert.True(t, noPrice.Proceeded)
}
