// Package scam flags pages that show common signs of high-pressure or
// fraudulent selling.
package scam

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/Veraticus/spendguard/internal/dom"
)

// Kind classifies a signal.
type Kind string

// Signal kinds.
const (
	KindUrgency       Kind = "urgency"
	KindDiscount      Kind = "extreme-discount"
	KindInsecure      Kind = "insecure-page"
	KindSuspiciousTLD Kind = "suspicious-domain"
	KindPayment       Kind = "unusual-payment"
)

// extremeDiscount is the smallest advertised discount that is flagged.
const extremeDiscount = 80

// maxScanText bounds how much page text is scanned.
const maxScanText = 50000

// Signal is one warning sign found on a page.
type Signal struct {
	Kind     Kind
	Message  string
	Evidence string
}

var (
	urgencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bonly \d+ (left|remaining)\b`),
		regexp.MustCompile(`(?i)\boffer ends in\b`),
		regexp.MustCompile(`(?i)\bhurry\b`),
		regexp.MustCompile(`(?i)\blast chance\b`),
		regexp.MustCompile(`(?i)\bselling fast\b`),
		regexp.MustCompile(`(?i)\b\d+ (people|others) are (viewing|looking at) this\b`),
		regexp.MustCompile(`(?i)\bends (tonight|today|in \d+ (minutes|hours))\b`),
	}
	discountPattern = regexp.MustCompile(`(?i)\b(\d{2})\s?% off\b`)
	paymentPattern  = regexp.MustCompile(`(?i)\b(wire transfer|gift cards?|western union|moneygram|crypto(currency)? only|bitcoin only)\b`)

	suspiciousTLDs = []string{
		"xyz", "top", "click", "buzz", "rest", "cfd", "sbs", "icu", "tk", "ml", "ga", "cf", "gq", "cam", "bond",
	}
)

// Detector finds scam signals.
type Detector struct{}

// NewDetector returns a Detector.
func NewDetector() *Detector {
	return &Detector{}
}

// Check returns at most one signal per kind, in a stable order.
func (d *Detector) Check(doc dom.Document) []Signal {
	var signals []Signal

	pageURL := doc.URL()
	if u, err := url.Parse(pageURL); err == nil {
		host := strings.ToLower(u.Hostname())
		if u.Scheme == "http" && host != "localhost" && host != "127.0.0.1" {
			signals = append(signals, Signal{
				Kind:     KindInsecure,
				Message:  "This page is not using a secure connection. Don't enter card details here.",
				Evidence: u.Scheme + "://" + host,
			})
		}
		if tld := host[strings.LastIndexByte(host, '.')+1:]; host != "" && containsString(suspiciousTLDs, tld) {
			signals = append(signals, Signal{
				Kind:     KindSuspiciousTLD,
				Message:  "This shop uses a domain often associated with short-lived scam stores.",
				Evidence: host,
			})
		}
	}

	text := doc.Text()
	if len(text) > maxScanText {
		text = text[:maxScanText]
	}

	for _, p := range urgencyPatterns {
		if m := p.FindString(text); m != "" {
			signals = append(signals, Signal{
				Kind:     KindUrgency,
				Message:  "The page is pushing you to hurry. Real deals rarely disappear in minutes.",
				Evidence: m,
			})
			break
		}
	}

	for _, m := range discountPattern.FindAllStringSubmatch(text, -1) {
		pct, err := strconv.Atoi(m[1])
		if err == nil && pct >= extremeDiscount {
			signals = append(signals, Signal{
				Kind:     KindDiscount,
				Message:  "A discount this large is a common sign of counterfeit goods or fake stores.",
				Evidence: m[0],
			})
			break
		}
	}

	if m := paymentPattern.FindString(text); m != "" {
		signals = append(signals, Signal{
			Kind:     KindPayment,
			Message:  "Legitimate shops rarely ask for this kind of payment.",
			Evidence: m,
		})
	}

	return signals
}

// Warnings returns the messages of every signal on doc.
func (d *Detector) Warnings(doc dom.Document) []string {
	signals := d.Check(doc)
	out := make([]string, 0, len(signals))
	for _, s := range signals {
		out = append(out, s.Message)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
