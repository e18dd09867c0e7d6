package model

// CategorySpend compares what the user went ahead and spent in a category
// this month against the configured budget.
type CategorySpend struct {
	Category   string  `json:"category"`
	Spent      float64 `json:"spent"`
	Budget     float64 `json:"budget,omitempty"`
	Remaining  float64 `json:"remaining,omitempty"`
	HasBudget  bool    `json:"hasBudget"`
	OverBudget bool    `json:"overBudget"`
}

// SpendingInsights summarizes recent interception history.
type SpendingInsights struct {
	Categories         []CategorySpend `json:"categories"`
	OverBudget         []string        `json:"overBudget"`
	TopCategory        string          `json:"topCategory,omitempty"`
	TotalIntercepts    int             `json:"totalIntercepts"`
	Intercepted        int             `json:"intercepted"`
	Proceeded          int             `json:"proceeded"`
	Abandoned          int             `json:"abandoned"`
	AbandonRate        float64         `json:"abandonRate"`
	AmountReconsidered float64         `json:"amountReconsidered"`
	AmountProceeded    float64         `json:"amountProceeded"`
}
