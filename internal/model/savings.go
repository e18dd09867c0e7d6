package model

import (
	"sort"
	"time"
)

// MonthKeyLayout formats monthly savings buckets.
const MonthKeyLayout = "2006-01"

// BiggestSave is the largest single abandoned purchase.
type BiggestSave struct {
	Date        time.Time `json:"date"`
	ProductName string    `json:"productName,omitempty"`
	Amount      float64   `json:"amount"`
}

// SavingsLedger accumulates money not spent because the user walked away
// during a cooldown.
type SavingsLedger struct {
	LastInterceptDate time.Time          `json:"lastInterceptDate"`
	CategorySavings   map[string]float64 `json:"categorySavings"`
	MonthlySavings    map[string]float64 `json:"monthlySavings"`
	BiggestSave       BiggestSave        `json:"biggestSave"`
	TotalSaved        float64            `json:"totalSaved"`
	InterceptsCount   int                `json:"interceptsCount"`
}

// NewSavingsLedger returns an empty ledger with initialized maps.
func NewSavingsLedger() SavingsLedger {
	return SavingsLedger{
		CategorySavings: make(map[string]float64),
		MonthlySavings:  make(map[string]float64),
	}
}

// MonthlyAmount is one bucket of the monthly series.
type MonthlyAmount struct {
	Month  string  `json:"month"`
	Amount float64 `json:"amount"`
}

// SavingsSummary is the read model of the ledger.
type SavingsSummary struct {
	LastInterceptDate time.Time          `json:"lastInterceptDate"`
	CategorySavings   map[string]float64 `json:"categorySavings"`
	Monthly           []MonthlyAmount    `json:"monthly"`
	BiggestSave       BiggestSave        `json:"biggestSave"`
	TotalSaved        float64            `json:"totalSaved"`
	ThisMonth         float64            `json:"thisMonth"`
	AverageSave       float64            `json:"averageSave"`
	InterceptsCount   int                `json:"interceptsCount"`
}

// MonthlySeries returns the monthly buckets sorted oldest first.
func (l SavingsLedger) MonthlySeries() []MonthlyAmount {
	series := make([]MonthlyAmount, 0, len(l.MonthlySavings))
	for month, amount := range l.MonthlySavings {
		series = append(series, MonthlyAmount{Month: month, Amount: amount})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Month < series[j].Month
	})
	return series
}
