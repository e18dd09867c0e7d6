package htmldoc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendguard/internal/dom"
)

const checkoutPage = `<!doctype html>
<html>
<head><title>Checkout - Example Shop</title><script>var x = "Buy now";</script></head>
<body>
  <h1 class="product-title">  Noise  Cancelling   Headphones </h1>
  <span class="price">$199.00</span>
  <div hidden>secret text</div>
  <form id="checkout" action="/pay">
    <input type="text" name="email">
    <button id="place" class="btn primary">Place Order</button>
    <button id="coupon" type="button">Apply coupon</button>
  </form>
  <input type="submit" form="checkout" id="outside" value="Pay now">
  <div id="recs"></div>
</body>
</html>`

func mustParse(t *testing.T) *Document {
	t.Helper()
	doc, err := ParseString(checkoutPage, "https://shop.example.com/checkout")
	require.NoError(t, err)
	return doc
}

func mustFirst(t *testing.T, doc dom.Document, selector string) dom.Element {
	t.Helper()
	el, ok := dom.First(doc, selector)
	require.True(t, ok, "no element for %s", selector)
	return el
}

func TestDocument_Reads(t *testing.T) {
	doc := mustParse(t)

	assert.Equal(t, "Checkout - Example Shop", doc.Title())
	assert.Equal(t, "https://shop.example.com/checkout", doc.URL())

	text := doc.Text()
	assert.Contains(t, text, "Noise Cancelling Headphones")
	assert.NotContains(t, text, "secret text")
	assert.NotContains(t, text, "var x")

	title := mustFirst(t, doc, ".product-title")
	assert.Equal(t, "h1", title.TagName())
	assert.Equal(t, "Noise Cancelling Headphones", title.Text())

	place := mustFirst(t, doc, "#place")
	assert.Equal(t, "btn primary", place.Attr("class"))
	assert.Equal(t, "", place.Attr("missing"))
}

func TestDocument_KeysAreStable(t *testing.T) {
	doc := mustParse(t)

	a := mustFirst(t, doc, "#place")
	b := mustFirst(t, doc, "form button")
	assert.Equal(t, a.Key(), b.Key())

	found, ok := doc.Lookup(a.Key())
	require.True(t, ok)
	assert.Equal(t, "place", found.Attr("id"))
}

func TestDocument_InvalidSelectorMatchesNothing(t *testing.T) {
	doc := mustParse(t)
	assert.Empty(t, doc.QueryAll("div[[["))
}

func TestDocument_Form(t *testing.T) {
	doc := mustParse(t)

	form, ok := mustFirst(t, doc, "#place").Form()
	require.True(t, ok)
	assert.Equal(t, "checkout", form.Attr("id"))

	form, ok = mustFirst(t, doc, "#outside").Form()
	require.True(t, ok, "form attribute should associate the control")
	assert.Equal(t, "checkout", form.Attr("id"))

	_, ok = mustFirst(t, doc, "h1").Form()
	assert.False(t, ok)
}

func TestDocument_ClickDefaultAction(t *testing.T) {
	doc := mustParse(t)
	place := mustFirst(t, doc, "#place")
	coupon := mustFirst(t, doc, "#coupon")
	form := mustFirst(t, doc, "form")

	require.NoError(t, doc.Click(place))
	require.NoError(t, doc.Click(coupon))

	assert.Equal(t, 1, doc.Activations(place))
	assert.Equal(t, 1, doc.Activations(coupon))
	assert.Equal(t, 1, doc.Submissions(form), "type=button must not submit")
}

func TestDocument_InterceptSuppressesDefault(t *testing.T) {
	doc := mustParse(t)
	place := mustFirst(t, doc, "#place")

	var caught []string
	release, err := doc.Intercept(place, func(el dom.Element) {
		caught = append(caught, el.Key())
	})
	require.NoError(t, err)
	assert.True(t, doc.Intercepted(place))

	require.NoError(t, doc.Click(place))
	assert.Equal(t, []string{place.Key()}, caught)
	assert.Zero(t, doc.Activations(place))

	release()
	accepted, err := doc.Activate(context.Background(), place)
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, 1, doc.Activations(place))
	assert.Len(t, caught, 1)
}

func TestDocument_IgnoreSynthetic(t *testing.T) {
	doc := mustParse(t)
	doc.IgnoreSynthetic = true
	place := mustFirst(t, doc, "#place")

	accepted, err := doc.Activate(context.Background(), place)
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Zero(t, doc.Activations(place))

	form, _ := place.Form()
	require.NoError(t, doc.SubmitForm(context.Background(), form))
	assert.Equal(t, 1, doc.Submissions(form))

	require.Error(t, doc.SubmitForm(context.Background(), place))
}

func TestDocument_AppendNotifiesObservers(t *testing.T) {
	doc := mustParse(t)

	var batches []dom.MutationBatch
	stop := doc.Observe(func(b dom.MutationBatch) {
		batches = append(batches, b)
	})

	added, err := doc.Append("#recs", `<div class="card"><button>Add to cart</button></div>`)
	require.NoError(t, err)
	require.Len(t, added, 2)
	require.Len(t, batches, 1)
	assert.Len(t, batches[0].Added, 2)
	assert.Equal(t, "button", batches[0].Added[1].TagName())

	stop()
	_, err = doc.Append("#recs", `<p>more</p>`)
	require.NoError(t, err)
	assert.Len(t, batches, 1)

	_, err = doc.Append("#missing", `<p>x</p>`)
	require.Error(t, err)
}

func TestDocument_RemoveAndNavigate(t *testing.T) {
	doc := mustParse(t)
	place := mustFirst(t, doc, "#place")
	_, err := doc.Intercept(place, func(dom.Element) {})
	require.NoError(t, err)

	require.NoError(t, doc.Remove(place))
	require.Error(t, doc.Click(place))
	_, ok := doc.Lookup(place.Key())
	assert.False(t, ok)

	var navigated bool
	doc.Observe(func(b dom.MutationBatch) { navigated = b.Navigated })
	require.NoError(t, doc.SetInteractionLocked(true))
	require.NoError(t, doc.Navigate(`<html><body><button>Buy</button></body></html>`, "https://shop.example.com/p/2"))

	assert.True(t, navigated)
	assert.False(t, doc.InteractionLocked())
	assert.Equal(t, "https://shop.example.com/p/2", doc.URL())
	assert.Len(t, doc.QueryAll("button"), 1)
}
