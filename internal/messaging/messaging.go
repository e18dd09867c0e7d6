// Package messaging exposes the persisted records to other processes through
// named actions. The same Router serves the in-process Client and the HTTP
// bridge.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/metrics"
	"github.com/Veraticus/spendguard/internal/model"
)

// Action names.
const (
	ActionIncrementIntercepts = "incrementIntercepts"
	ActionAddPurchase         = "addPurchase"
	ActionGetSettings         = "getSettings"
	ActionUpdateSettings      = "updateSettings"
	ActionGetRecentPurchases  = "getRecentPurchases"
	ActionGetSpendingInsights = "getSpendingInsights"
	ActionGetSavingsSummary   = "getSavingsSummary"
)

// Request is one message. Only the field matching Action is read.
type Request struct {
	Purchase *model.PurchaseEntry `json:"purchase,omitempty"`
	Action   string               `json:"action"`
	Settings json.RawMessage      `json:"settings,omitempty"`
}

// Response is the reply to a Request. Success is false exactly when Error is
// set; the payload field depends on the action.
type Response struct {
	Settings        *model.Settings         `json:"settings,omitempty"`
	Purchase        *model.PurchaseEntry    `json:"purchase,omitempty"`
	Insights        *model.SpendingInsights `json:"insights,omitempty"`
	Summary         *model.SavingsSummary   `json:"summary,omitempty"`
	TotalIntercepts *int                    `json:"totalIntercepts,omitempty"`
	Error           string                  `json:"error,omitempty"`
	Purchases       []model.PurchaseEntry   `json:"purchases"`
	Success         bool                    `json:"success"`
}

// Store is the records API the router serves.
type Store interface {
	IncrementIntercepts(ctx context.Context) (int, error)
	AddPurchase(ctx context.Context, entry model.PurchaseEntry) error
	Settings(ctx context.Context) model.Settings
	MergeSettings(ctx context.Context, patch json.RawMessage) (model.Settings, error)
	RecentPurchases(ctx context.Context) ([]model.PurchaseEntry, error)
	Insights(ctx context.Context) (model.SpendingInsights, error)
}

// SavingsReader reports the savings read model.
type SavingsReader interface {
	Summary(ctx context.Context) model.SavingsSummary
}

type handlerFunc func(ctx context.Context, req Request) (Response, error)

// Router dispatches requests to the store.
type Router struct {
	store    Store
	savings  SavingsReader
	metrics  *metrics.Metrics
	handlers map[string]handlerFunc
}

// NewRouter creates a router. m may be nil.
func NewRouter(store Store, savings SavingsReader, m *metrics.Metrics) *Router {
	r := &Router{
		store:   store,
		savings: savings,
		metrics: m,
	}
	r.handlers = map[string]handlerFunc{
		ActionIncrementIntercepts: r.incrementIntercepts,
		ActionAddPurchase:         r.addPurchase,
		ActionGetSettings:         r.getSettings,
		ActionUpdateSettings:      r.updateSettings,
		ActionGetRecentPurchases:  r.getRecentPurchases,
		ActionGetSpendingInsights: r.getSpendingInsights,
		ActionGetSavingsSummary:   r.getSavingsSummary,
	}
	return r
}

// Send implements Transport. Failures are reported in the response, never
// as an error.
func (r *Router) Send(ctx context.Context, req Request) (Response, error) {
	resp, _ := r.dispatch(ctx, req)
	return resp, nil
}

func (r *Router) dispatch(ctx context.Context, req Request) (Response, error) {
	start := time.Now()

	h, ok := r.handlers[req.Action]
	if !ok {
		err := fmt.Errorf("%w: %q", common.ErrUnknownAction, req.Action)
		r.metrics.RecordMessage("unknown", "error", time.Since(start))
		return failure(err), err
	}

	resp, err := h(ctx, req)
	if err != nil {
		slog.Warn("Message failed", "action", req.Action, "error", err)
		r.metrics.RecordMessage(req.Action, "error", time.Since(start))
		return failure(err), err
	}

	resp.Success = true
	r.metrics.RecordMessage(req.Action, "ok", time.Since(start))
	return resp, nil
}

func failure(err error) Response {
	return Response{Error: err.Error()}
}

func (r *Router) incrementIntercepts(ctx context.Context, _ Request) (Response, error) {
	total, err := r.store.IncrementIntercepts(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{TotalIntercepts: &total}, nil
}

func (r *Router) addPurchase(ctx context.Context, req Request) (Response, error) {
	if req.Purchase == nil {
		return Response{}, fmt.Errorf("%w: purchase is required", common.ErrInvalidRequest)
	}
	if req.Purchase.URL == "" {
		return Response{}, fmt.Errorf("%w: purchase url is required", common.ErrInvalidRequest)
	}
	if err := r.store.AddPurchase(ctx, *req.Purchase); err != nil {
		return Response{}, err
	}

	// AddPurchase fills id and timestamp on its own copy; read back the
	// stored entry so callers see them.
	purchases, err := r.store.RecentPurchases(ctx)
	if err != nil || len(purchases) == 0 {
		return Response{Purchase: req.Purchase}, nil //nolint:nilerr // the write succeeded
	}
	return Response{Purchase: &purchases[0]}, nil
}

func (r *Router) getSettings(ctx context.Context, _ Request) (Response, error) {
	settings := r.store.Settings(ctx)
	return Response{Settings: &settings}, nil
}

func (r *Router) updateSettings(ctx context.Context, req Request) (Response, error) {
	if len(req.Settings) == 0 {
		return Response{}, fmt.Errorf("%w: settings are required", common.ErrInvalidRequest)
	}
	settings, err := r.store.MergeSettings(ctx, req.Settings)
	if err != nil {
		return Response{}, err
	}
	return Response{Settings: &settings}, nil
}

func (r *Router) getRecentPurchases(ctx context.Context, _ Request) (Response, error) {
	purchases, err := r.store.RecentPurchases(ctx)
	if err != nil {
		return Response{}, err
	}
	if purchases == nil {
		purchases = []model.PurchaseEntry{}
	}
	return Response{Purchases: purchases}, nil
}

func (r *Router) getSpendingInsights(ctx context.Context, _ Request) (Response, error) {
	insights, err := r.store.Insights(ctx)
	if err != nil {
		return Response{}, err
	}
	return Response{Insights: &insights}, nil
}

func (r *Router) getSavingsSummary(ctx context.Context, _ Request) (Response, error) {
	summary := r.savings.Summary(ctx)
	return Response{Summary: &summary}, nil
}
