package extract

import (
	"regexp"
	"strings"

	"github.com/Veraticus/spendguard/internal/dom"
)

// CategoryOther is used when no category wins the vote.
const CategoryOther = "Other"

// maxVoteText bounds how much visible text takes part in the vote.
const maxVoteText = 20000

type categoryRule struct {
	name    string
	pattern *regexp.Regexp
}

var categoryKeywords = []struct {
	name     string
	keywords []string
}{
	{"Electronics", []string{"electronics", "laptop", "laptops", "phone", "smartphone", "headphones", "earbuds", "camera", "tablet", "computer", "tv", "television", "monitor", "console", "charger", "speaker", "gadget"}},
	{"Clothing", []string{"clothing", "shirt", "t-shirt", "dress", "shoes", "jacket", "jeans", "pants", "sweater", "fashion", "apparel", "sneakers", "hoodie"}},
	{"Home", []string{"furniture", "sofa", "kitchen", "bedding", "decor", "lamp", "mattress", "garden", "homeware", "home goods", "appliance", "cookware"}},
	{"Health", []string{"health", "vitamin", "vitamins", "supplement", "supplements", "pharmacy", "skincare", "beauty", "fitness", "medicine", "wellness", "cosmetics"}},
	{"Books", []string{"book", "books", "novel", "paperback", "hardcover", "ebook", "kindle", "author", "isbn"}},
	{"Food", []string{"food", "grocery", "groceries", "snack", "snacks", "coffee", "tea", "restaurant", "meal", "pizza", "organic"}},
	{"Entertainment", []string{"game", "games", "movie", "movies", "music", "concert", "tickets", "streaming", "toy", "toys", "vinyl"}},
	{"Travel", []string{"flight", "flights", "hotel", "hotels", "travel", "vacation", "airline", "trip", "luggage", "cruise"}},
}

var (
	categoryRules []categoryRule

	breadcrumbSelectors = []string{
		"nav[aria-label*=breadcrumb]",
		"nav[aria-label*=Breadcrumb]",
		".breadcrumb",
		".breadcrumbs",
		"[itemtype*=BreadcrumbList]",
	}
)

func init() {
	for _, c := range categoryKeywords {
		quoted := make([]string, len(c.keywords))
		for i, k := range c.keywords {
			quoted[i] = regexp.QuoteMeta(k)
		}
		categoryRules = append(categoryRules, categoryRule{
			name:    c.name,
			pattern: regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`),
		})
	}
}

// Category derives the product category from breadcrumb navigation, falling
// back to a keyword vote over the URL, title and visible text.
func Category(doc dom.Document) string {
	for _, sel := range breadcrumbSelectors {
		for _, el := range doc.QueryAll(sel) {
			if name := Vote(el.Text()); name != CategoryOther {
				return name
			}
		}
	}

	text := doc.Text()
	if len(text) > maxVoteText {
		text = text[:maxVoteText]
	}
	return Vote(doc.URL() + " " + doc.Title() + " " + text)
}

// Vote returns the category with the most keyword hits in text. Ties and
// zero hits resolve to CategoryOther.
func Vote(text string) string {
	text = strings.ToLower(text)
	best, bestCount, tied := CategoryOther, 0, false
	for _, rule := range categoryRules {
		n := len(rule.pattern.FindAllStringIndex(text, -1))
		switch {
		case n > bestCount:
			best, bestCount, tied = rule.name, n, false
		case n == bestCount && n > 0:
			tied = true
		}
	}
	if bestCount == 0 || tied {
		return CategoryOther
	}
	return best
}
