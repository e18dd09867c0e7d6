package detect

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Veraticus/spendguard/internal/dom"
	"github.com/Veraticus/spendguard/internal/extract"
)

// CandidateSelector matches every element the classifier considers.
const CandidateSelector = "button, a, input[type=submit], input[type=button], input[type=image], [role=button]"

// maxLabelLength bounds the visible text considered per element. Long
// anchors are content links rather than controls.
const maxLabelLength = 200

// Match explains a classification.
type Match struct {
	Keyword    string
	Exclusion  string
	GateReason string
	Candidate  bool
	PageOK     bool
	Purchase   bool
}

// String implements fmt.Stringer.
func (m Match) String() string {
	switch {
	case !m.Candidate:
		return "not a control"
	case m.Keyword == "":
		return "no intent keyword"
	case m.Exclusion != "":
		return fmt.Sprintf("%q vetoed by %q", m.Keyword, m.Exclusion)
	case !m.PageOK:
		return fmt.Sprintf("%q on non-commerce page (%s)", m.Keyword, m.GateReason)
	default:
		return fmt.Sprintf("%q purchase control (%s)", m.Keyword, m.GateReason)
	}
}

// Classifier is a pure predicate over page elements.
type Classifier struct {
	intent  *PatternSet
	exclude *PatternSet
	gate    *Gate
	hosts   []string
	ceiling float64
	strict  bool
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithStrict adds the version-control exclusion vocabulary.
func WithStrict(strict bool) Option {
	return func(c *Classifier) { c.strict = strict }
}

// WithExcludedHosts replaces the non-commerce host list.
func WithExcludedHosts(hosts ...string) Option {
	return func(c *Classifier) { c.hosts = hosts }
}

// WithPriceCeiling sets the ceiling used when looking for price text.
func WithPriceCeiling(ceiling float64) Option {
	return func(c *Classifier) { c.ceiling = ceiling }
}

// New builds a Classifier with the default vocabularies.
func New(opts ...Option) (*Classifier, error) {
	c := &Classifier{
		hosts:   DefaultExcludedHosts,
		ceiling: extract.DefaultPriceCeiling,
	}
	for _, opt := range opts {
		opt(c)
	}

	intent, err := NewPatternSet(IntentPatterns())
	if err != nil {
		return nil, err
	}
	exclusions := ExclusionPatterns()
	if c.strict {
		exclusions = append(exclusions, StrictExclusionPatterns()...)
	}
	exclude, err := NewPatternSet(exclusions)
	if err != nil {
		return nil, err
	}

	c.intent = intent
	c.exclude = exclude
	c.gate = NewGate(c.hosts, c.ceiling)
	return c, nil
}

// Classify reports whether el is a purchase-intent control on doc.
func (c *Classifier) Classify(doc dom.Document, el dom.Element) bool {
	return c.Explain(doc, el).Purchase
}

// Explain classifies el and reports each decision.
func (c *Classifier) Explain(doc dom.Document, el dom.Element) Match {
	m := c.MatchElement(el)
	if m.Keyword == "" || m.Exclusion != "" {
		return m
	}
	m.PageOK, m.GateReason = c.gate.Check(doc)
	m.Purchase = m.PageOK
	return m
}

// Gate runs only the page-level check. Callers scanning many elements on
// one page evaluate it once and combine it with MatchElement.
func (c *Classifier) Gate(doc dom.Document) (bool, string) {
	return c.gate.Check(doc)
}

// MatchElement runs only the element-level vocabulary checks. Purchase is
// left false because the page has not been consulted.
func (c *Classifier) MatchElement(el dom.Element) Match {
	var m Match
	if !IsCandidate(el) {
		return m
	}
	m.Candidate = true

	label := Label(el)
	if label == "" {
		return m
	}
	m.Keyword, _ = c.intent.Match(label)
	if m.Keyword == "" {
		return m
	}
	m.Exclusion, _ = c.exclude.Match(label)
	return m
}

// IsCandidate reports whether el is a clickable control.
func IsCandidate(el dom.Element) bool {
	if strings.EqualFold(el.Attr("role"), "button") {
		return true
	}
	switch el.TagName() {
	case "button", "a":
		return true
	case "input":
		switch strings.ToLower(el.Attr("type")) {
		case "submit", "button", "image":
			return true
		}
	}
	return false
}

var camelBoundary = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// Label is the text the vocabularies run against: visible text, accessible
// names and class/id tokens split into words.
func Label(el dom.Element) string {
	text := dom.NormalizeSpace(el.Text())
	if r := []rune(text); len(r) > maxLabelLength {
		text = string(r[:maxLabelLength])
	}

	parts := []string{text}
	for _, name := range []string{"aria-label", "value", "title", "alt"} {
		parts = append(parts, el.Attr(name))
	}
	for _, name := range []string{"class", "id", "name", "data-testid"} {
		parts = append(parts, tokens(el.Attr(name)))
	}
	return strings.ToLower(dom.NormalizeSpace(strings.Join(parts, " ")))
}

func tokens(s string) string {
	s = camelBoundary.ReplaceAllString(s, "$1 $2")
	return strings.Map(func(r rune) rune {
		switch r {
		case '-', '_', '.', ':':
			return ' '
		}
		return r
	}, s)
}
