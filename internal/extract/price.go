package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// DefaultPriceCeiling is the largest amount accepted as a price.
const DefaultPriceCeiling = 100000.0

// Price is a parsed monetary amount.
type Price struct {
	Text     string
	Currency string
	Amount   float64
}

// symbolCurrencies maps currency markers to ISO codes. Multi-character
// symbols are listed before their single-character suffixes so the regex
// alternation prefers them.
var symbolCurrencies = []struct {
	symbol   string
	currency string
}{
	{"US$", "USD"},
	{"CA$", "CAD"},
	{"C$", "CAD"},
	{"AU$", "AUD"},
	{"A$", "AUD"},
	{"R$", "BRL"},
	{"$", "USD"},
	{"€", "EUR"},
	{"£", "GBP"},
	{"¥", "JPY"},
	{"₹", "INR"},
	{"₩", "KRW"},
	{"zł", "PLN"},
	{"kr", "SEK"},
}

var isoCurrencies = []string{
	"USD", "EUR", "GBP", "JPY", "INR", "CAD", "AUD", "CHF", "SEK", "NOK",
	"DKK", "PLN", "BRL", "MXN", "KRW", "CNY", "NZD", "SGD", "HKD",
}

var (
	leadingPrice  *regexp.Regexp
	trailingPrice *regexp.Regexp
)

func init() {
	symbols := make([]string, 0, len(symbolCurrencies))
	for _, s := range symbolCurrencies {
		if s.symbol == "kr" || s.symbol == "zł" {
			continue // only ever written after the amount
		}
		symbols = append(symbols, regexp.QuoteMeta(s.symbol))
	}
	iso := `\b(?:` + strings.Join(isoCurrencies, "|") + `)\b`
	// Grouped thousands need exactly three digits after each separator, so a
	// following count ("$25 10% off") never joins the amount.
	number := `(\d{1,3}(?:[.,' \x{00A0}]\d{3})+(?:[.,]\d{1,2})?|\d+(?:[.,]\d{1,2})?)`

	leadingPrice = regexp.MustCompile(`(?i)(` + strings.Join(symbols, "|") + `|` + iso + `)\s?` + number)

	trailing := make([]string, 0, len(symbolCurrencies))
	for _, s := range symbolCurrencies {
		if strings.HasSuffix(s.symbol, "$") && s.symbol != "$" {
			continue
		}
		marker := regexp.QuoteMeta(s.symbol)
		if last := s.symbol[len(s.symbol)-1]; last >= 'a' && last <= 'z' {
			marker += `\b`
		}
		trailing = append(trailing, marker)
	}
	trailingPrice = regexp.MustCompile(`(?i)` + number + `\s?(` + strings.Join(trailing, "|") + `|` + iso + `)`)
}

// ParsePrice reads the first acceptable currency-marked amount in text.
// Text without a currency symbol or code is never treated as a price.
// Amounts that are not positive or exceed ceiling are skipped in favor of
// later ones. A ceiling of zero uses DefaultPriceCeiling.
func ParsePrice(text string, ceiling float64) (Price, bool) {
	if ceiling <= 0 {
		ceiling = DefaultPriceCeiling
	}
	text = strings.ReplaceAll(text, "\u00a0", " ")

	for _, c := range priceCandidates(text) {
		amount, ok := ParseAmount(c.number)
		if !ok || amount <= 0 || amount > ceiling {
			continue
		}
		return Price{
			Text:     strings.TrimSpace(c.match),
			Currency: currencyFor(c.marker),
			Amount:   amount,
		}, true
	}
	return Price{}, false
}

type priceCandidate struct {
	match, marker, number string
	at                    int
}

// priceCandidates lists every leading- and trailing-marker match in text
// ordered by position. A marker that opens a leading match ("2 $10") is
// never read as trailing the number before it.
func priceCandidates(text string) []priceCandidate {
	var found []priceCandidate
	leadingMarkers := make(map[int]bool)
	for _, m := range leadingPrice.FindAllStringSubmatchIndex(text, -1) {
		leadingMarkers[m[2]] = true
		found = append(found, priceCandidate{match: text[m[0]:m[1]], marker: text[m[2]:m[3]], number: text[m[4]:m[5]], at: m[0]})
	}
	for _, m := range trailingPrice.FindAllStringSubmatchIndex(text, -1) {
		if leadingMarkers[m[4]] {
			continue
		}
		found = append(found, priceCandidate{match: text[m[0]:m[1]], number: text[m[2]:m[3]], marker: text[m[4]:m[5]], at: m[0]})
	}
	sort.SliceStable(found, func(i, j int) bool { return found[i].at < found[j].at })
	return found
}

func currencyFor(marker string) string {
	upper := strings.ToUpper(strings.TrimSpace(marker))
	for _, code := range isoCurrencies {
		if upper == code {
			return code
		}
	}
	for _, s := range symbolCurrencies {
		if strings.EqualFold(s.symbol, marker) {
			return s.currency
		}
	}
	return ""
}

// ParseAmount parses a number written with thousands separators. When both
// '.' and ',' appear the last one is the decimal separator. A lone ',' or '.'
// followed by exactly three digits is a thousands separator; otherwise it is
// the decimal separator.
func ParseAmount(raw string) (float64, bool) {
	s := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\'', ' ':
			return -1
		}
		return r
	}, strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	lastDot := strings.LastIndexByte(s, '.')
	lastComma := strings.LastIndexByte(s, ',')

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case lastComma >= 0:
		s = normalizeSingleSeparator(s, ",")
	case lastDot >= 0:
		s = normalizeSingleSeparator(s, ".")
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func normalizeSingleSeparator(s, sep string) string {
	parts := strings.Split(s, sep)
	if len(parts) > 2 {
		return strings.Join(parts, "")
	}
	if len(parts[1]) == 3 {
		return parts[0] + parts[1]
	}
	return parts[0] + "." + parts[1]
}
