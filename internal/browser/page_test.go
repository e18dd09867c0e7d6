package browser

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ysmood/gson"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/cooldown"
	"github.com/Veraticus/spendguard/internal/detect"
	"github.com/Veraticus/spendguard/internal/dom"
)

func TestRuntimeScript(t *testing.T) {
	script := runtimeScript(detect.CandidateSelector)

	assert.Contains(t, script, `const CANDIDATES = "button, a, input[type=submit]`)
	for _, name := range []string{bindingActivate, bindingMutations, bindingAction, keyAttr} {
		assert.Contains(t, script, name)
	}
	assert.NotContains(t, script, "%!", "format verbs must all be consumed")
	assert.True(t, strings.HasPrefix(script, "(() => {"))
}

func TestElement(t *testing.T) {
	el := newElement(descriptor{
		Key:   "sg-1",
		Tag:   "button",
		Text:  "Place your order",
		Attrs: map[string]string{"aria-label": "Place order", "type": "submit"},
		Form:  "sg-form",
	})

	assert.Equal(t, "sg-1", el.Key())
	assert.Equal(t, "button", el.TagName())
	assert.Equal(t, "Place order", el.Attr("aria-label"))
	assert.Empty(t, el.Attr("missing"))

	form, ok := el.Form()
	require.True(t, ok)
	assert.Equal(t, "sg-form", form.Key())
	assert.Equal(t, "form", form.TagName())

	_, ok = newElement(descriptor{Key: "sg-2"}).Form()
	assert.False(t, ok)
}

func TestPage_OnActivate(t *testing.T) {
	p := newPage(nil, 0)
	p.remember([]descriptor{{Key: "sg-1", Tag: "button", Text: "Buy now"}})

	var got []dom.Element
	p.intercepts["sg-1"] = func(el dom.Element) { got = append(got, el) }

	_, err := p.onActivate(gson.New(map[string]any{"key": "sg-1"}))
	require.NoError(t, err)
	_, err = p.onActivate(gson.New(map[string]any{"key": "sg-unknown"}))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "Buy now", got[0].Text())
}

func TestPage_OnMutations(t *testing.T) {
	p := newPage(nil, 0)

	var first, second []dom.MutationBatch
	p.Observe(func(b dom.MutationBatch) { first = append(first, b) })
	stop := p.Observe(func(b dom.MutationBatch) { second = append(second, b) })

	_, err := p.onMutations(gson.New(map[string]any{
		"url": "https://shop.example.com/cart",
		"added": []any{
			map[string]any{"key": "sg-9", "tag": "button", "text": "Checkout", "attrs": map[string]any{}},
		},
	}))
	require.NoError(t, err)

	stop()
	p.navigated("https://shop.example.com/checkout")

	require.Len(t, first, 2)
	require.Len(t, first[0].Added, 1)
	assert.Equal(t, "sg-9", first[0].Added[0].Key())
	assert.Equal(t, "https://shop.example.com/cart", first[0].URL)
	assert.True(t, first[1].Navigated)
	assert.Equal(t, "https://shop.example.com/checkout", first[1].URL)
	assert.Len(t, second, 1, "stopped observers receive nothing")
}

func TestPage_NavigationDropsIntercepts(t *testing.T) {
	p := newPage(nil, 0)
	called := false
	p.intercepts["sg-1"] = func(dom.Element) { called = true }

	p.navigated("https://example.com/")
	_, err := p.onActivate(gson.New(map[string]any{"key": "sg-1"}))
	require.NoError(t, err)
	assert.False(t, called)
}

func TestPage_ClosedPageErrors(t *testing.T) {
	p := newPage(nil, 0)
	el := newElement(descriptor{Key: "sg-1", Tag: "button"})

	_, err := p.Intercept(el, func(dom.Element) {})
	require.ErrorIs(t, err, common.ErrElementDetached)

	_, err = p.Activate(context.Background(), el)
	require.Error(t, err)
	assert.Empty(t, p.QueryAll("button"))
	assert.Empty(t, p.URL())
}

func TestOverlay_Actions(t *testing.T) {
	p := newPage(nil, 0)
	o := p.Overlay()

	var proceeded, abandoned int
	// Show fails without a page but still records the actions.
	_ = o.Show(cooldown.View{Headline: "Before you buy"}, cooldown.Actions{
		Proceed: func() { proceeded++ },
		Abandon: func() { abandoned++ },
	})

	for _, action := range []string{"proceed", "abandon", "abandon", "launch"} {
		_, err := o.onAction(gson.New(map[string]any{"action": action}))
		require.NoError(t, err)
	}
	assert.Equal(t, 1, proceeded)
	assert.Equal(t, 2, abandoned)

	o.Hide()
	_, err := o.onAction(gson.New(map[string]any{"action": "proceed"}))
	require.NoError(t, err)
	assert.Equal(t, 1, proceeded, "actions are dropped once hidden")
}

func TestToOverlayView(t *testing.T) {
	v := toOverlayView(cooldown.View{
		Headline:      "Before you buy Standing Desk",
		Price:         "$349.00",
		Warnings:      []string{"http page"},
		Total:         30,
		Remaining:     18,
		SkipAvailable: true,
	})
	assert.Equal(t, overlayView{
		Headline:      "Before you buy Standing Desk",
		Price:         "$349.00",
		Warnings:      []string{"http page"},
		Total:         30,
		Remaining:     18,
		SkipAvailable: true,
	}, v)
}
