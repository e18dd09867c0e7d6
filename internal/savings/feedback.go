package savings

import (
	"fmt"
	"strings"

	"github.com/Veraticus/spendguard/internal/model"
)

// Feedback is the short-lived message shown after a save.
type Feedback struct {
	Title   string
	Message string
}

var currencySymbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"JPY": "¥",
	"INR": "₹",
	"KRW": "₩",
	"CAD": "C$",
	"AUD": "A$",
	"BRL": "R$",
}

// FormatAmount renders an amount with the currency's symbol when known.
func FormatAmount(amount float64, currency string) string {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if symbol, ok := currencySymbols[currency]; ok {
		if currency == "JPY" || currency == "KRW" {
			return fmt.Sprintf("%s%.0f", symbol, amount)
		}
		return fmt.Sprintf("%s%.2f", symbol, amount)
	}
	if currency == "" {
		return fmt.Sprintf("$%.2f", amount)
	}
	return fmt.Sprintf("%.2f %s", amount, currency)
}

// NewFeedback builds the message for an abandon that saved amount and moved
// the ledger to ledger.
func NewFeedback(amount float64, pc model.PurchaseContext, ledger model.SavingsLedger) Feedback {
	saved := FormatAmount(amount, pc.Currency)
	total := FormatAmount(ledger.TotalSaved, pc.Currency)

	fb := Feedback{
		Title:   fmt.Sprintf("You kept %s", saved),
		Message: fmt.Sprintf("That brings your total to %s across %d decisions.", total, ledger.InterceptsCount),
	}
	if !pc.HasPrice() {
		fb.Title = fmt.Sprintf("You kept about %s", saved)
	}
	if ledger.BiggestSave.Amount == amount && ledger.InterceptsCount > 1 {
		fb.Message += " That's your biggest save yet."
	}
	return fb
}
