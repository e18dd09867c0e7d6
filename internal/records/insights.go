package records

import (
	"context"
	"sort"
	"strings"

	"github.com/Veraticus/spendguard/internal/model"
)

// Insights summarizes the stored history against the current settings.
// Category spend only counts purchases the user went ahead with this month.
func (s *Store) Insights(ctx context.Context) (model.SpendingInsights, error) {
	purchases, err := s.RecentPurchases(ctx)
	if err != nil {
		return model.SpendingInsights{}, err
	}
	total, err := s.TotalIntercepts(ctx)
	if err != nil {
		return model.SpendingInsights{}, err
	}

	return BuildInsights(purchases, total, s.Settings(ctx), s.now().Format(model.MonthKeyLayout)), nil
}

// BuildInsights derives insights from a purchase history. month selects the
// yyyy-mm bucket used for budget comparison.
func BuildInsights(purchases []model.PurchaseEntry, totalIntercepts int, settings model.Settings, month string) model.SpendingInsights {
	insights := model.SpendingInsights{
		TotalIntercepts: totalIntercepts,
		Categories:      []model.CategorySpend{},
		OverBudget:      []string{},
	}

	spent := make(map[string]float64)
	for _, p := range purchases {
		amount := 0.0
		if p.Amount != nil {
			amount = *p.Amount
		}

		if !p.Proceeded {
			insights.Intercepted++
			insights.AmountReconsidered += amount
			continue
		}

		insights.Proceeded++
		insights.AmountProceeded += amount
		if p.Timestamp.Format(model.MonthKeyLayout) == month {
			spent[categoryOrOther(p.Category)] += amount
		}
	}

	insights.Abandoned = insights.Intercepted - insights.Proceeded
	if insights.Abandoned < 0 {
		insights.Abandoned = 0
	}
	if insights.Intercepted > 0 {
		insights.AbandonRate = float64(insights.Abandoned) / float64(insights.Intercepted)
	}

	for budgetCategory := range settings.CategoryBudgets {
		if _, ok := lookupFold(spent, budgetCategory); !ok {
			spent[budgetCategory] = 0
		}
	}

	var topAmount float64
	for category, amount := range spent {
		entry := model.CategorySpend{Category: category, Spent: amount}
		if limit, ok := settings.Budget(category); ok {
			entry.HasBudget = true
			entry.Budget = limit
			entry.Remaining = limit - amount
			entry.OverBudget = amount > limit
			if entry.OverBudget {
				insights.OverBudget = append(insights.OverBudget, category)
			}
		}
		insights.Categories = append(insights.Categories, entry)

		if amount > topAmount || (amount == topAmount && amount > 0 && category < insights.TopCategory) {
			topAmount = amount
			insights.TopCategory = category
		}
	}

	sort.Slice(insights.Categories, func(i, j int) bool {
		if insights.Categories[i].Spent != insights.Categories[j].Spent {
			return insights.Categories[i].Spent > insights.Categories[j].Spent
		}
		return insights.Categories[i].Category < insights.Categories[j].Category
	})
	sort.Strings(insights.OverBudget)

	return insights
}

func categoryOrOther(category string) string {
	if strings.TrimSpace(category) == "" {
		return "Other"
	}
	return category
}

func lookupFold(m map[string]float64, key string) (float64, bool) {
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return 0, false
}
