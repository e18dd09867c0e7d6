package intercept

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/dom"
	"github.com/Veraticus/spendguard/internal/dom/htmldoc"
)

const page = `<body>
	<form id="checkout"><button id="place">Place Order</button></form>
	<a id="buy" href="/buy">Buy now</a>
</body>`

func setup(t *testing.T) (*htmldoc.Document, *Registry) {
	t.Helper()
	doc, err := htmldoc.ParseString(page, "https://shop.example.com/checkout")
	require.NoError(t, err)
	return doc, NewRegistry(doc)
}

func el(t *testing.T, doc dom.Document, selector string) dom.Element {
	t.Helper()
	e, ok := dom.First(doc, selector)
	require.True(t, ok)
	return e
}

func TestGuard_Idempotent(t *testing.T) {
	doc, reg := setup(t)
	place := el(t, doc, "#place")

	calls := 0
	handler := func(dom.Element) { calls++ }

	added, err := reg.Guard(place, handler)
	require.NoError(t, err)
	assert.True(t, added)

	added, err = reg.Guard(el(t, doc, "#place"), handler)
	require.NoError(t, err)
	assert.False(t, added)

	assert.True(t, reg.HasGuard(place))
	assert.Equal(t, 1, reg.Guarded())

	require.NoError(t, doc.Click(place))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, doc.Activations(place))
}

func TestRelease_MarksDecided(t *testing.T) {
	doc, reg := setup(t)
	place := el(t, doc, "#place")

	_, err := reg.Guard(place, func(dom.Element) {})
	require.NoError(t, err)

	reg.Release(place)
	assert.False(t, reg.HasGuard(place))
	assert.True(t, reg.IsDecided(place))
	assert.False(t, doc.Intercepted(place))

	added, err := reg.Guard(place, func(dom.Element) {})
	require.NoError(t, err)
	assert.False(t, added, "decided elements are never guarded again")
}

func TestReplay_ClickRunsOnce(t *testing.T) {
	doc, reg := setup(t)
	place := el(t, doc, "#place")
	form := el(t, doc, "#checkout")

	intercepted := 0
	_, err := reg.Guard(place, func(dom.Element) { intercepted++ })
	require.NoError(t, err)

	res := reg.Replay(context.Background(), place)
	require.NoError(t, res.Err)
	assert.Equal(t, StrategyClick, res.Strategy)

	assert.Equal(t, 0, intercepted)
	assert.Equal(t, 1, doc.Activations(place))
	assert.Equal(t, 1, doc.Submissions(form))
	assert.True(t, reg.IsDecided(place))
}

func TestReplay_FormSubmitFallback(t *testing.T) {
	doc, reg := setup(t)
	doc.IgnoreSynthetic = true
	place := el(t, doc, "#place")
	form := el(t, doc, "#checkout")

	_, err := reg.Guard(place, func(dom.Element) {})
	require.NoError(t, err)

	res := reg.Replay(context.Background(), place)
	require.NoError(t, res.Err)
	assert.Equal(t, StrategyFormSubmit, res.Strategy)
	assert.Equal(t, 0, doc.Activations(place))
	assert.Equal(t, 1, doc.Submissions(form))
}

func TestReplay_FailsWithoutForm(t *testing.T) {
	doc, reg := setup(t)
	doc.IgnoreSynthetic = true
	buy := el(t, doc, "#buy")

	res := reg.Replay(context.Background(), buy)
	assert.Equal(t, StrategyFailed, res.Strategy)
	assert.ErrorIs(t, res.Err, common.ErrReplayRejected)
}

func TestReplay_DetachedElement(t *testing.T) {
	doc, reg := setup(t)
	buy := el(t, doc, "#buy")
	require.NoError(t, doc.Remove(buy))

	res := reg.Replay(context.Background(), buy)
	assert.Equal(t, StrategyFailed, res.Strategy)
	assert.ErrorIs(t, res.Err, common.ErrElementDetached)
}

func TestReset(t *testing.T) {
	doc, reg := setup(t)
	place := el(t, doc, "#place")
	buy := el(t, doc, "#buy")

	_, err := reg.Guard(place, func(dom.Element) {})
	require.NoError(t, err)
	reg.Release(buy)

	reg.Reset()
	assert.Equal(t, 0, reg.Guarded())
	assert.False(t, reg.IsDecided(buy))
	assert.False(t, doc.Intercepted(place))
}

func TestGuard_DetachedElement(t *testing.T) {
	doc, reg := setup(t)
	buy := el(t, doc, "#buy")
	require.NoError(t, doc.Remove(buy))

	_, err := reg.Guard(buy, func(dom.Element) {})
	require.ErrorIs(t, err, common.ErrElementDetached)
	assert.False(t, reg.HasGuard(buy))
}
