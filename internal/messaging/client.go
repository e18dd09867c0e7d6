package messaging

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veraticus/spendguard/internal/model"
)

// ErrActionFailed wraps the error text of an unsuccessful response.
var ErrActionFailed = errors.New("action failed")

// ErrEmptyPayload is returned when a successful response lacks the payload
// its action promises.
var ErrEmptyPayload = errors.New("response has no payload")

// Transport carries a request to a Router. It returns an error only when the
// request could not be delivered.
type Transport interface {
	Send(ctx context.Context, req Request) (Response, error)
}

// Client is a typed wrapper over a Transport.
type Client struct {
	transport Transport
}

// NewClient creates a client. Pass a *Router for in-process use or an
// *HTTPTransport to talk to a running server.
func NewClient(t Transport) *Client {
	return &Client{transport: t}
}

func (c *Client) call(ctx context.Context, req Request) (Response, error) {
	resp, err := c.transport.Send(ctx, req)
	if err != nil {
		return Response{}, fmt.Errorf("failed to send %s: %w", req.Action, err)
	}
	if !resp.Success {
		return resp, fmt.Errorf("%w: %s: %s", ErrActionFailed, req.Action, resp.Error)
	}
	return resp, nil
}

// IncrementIntercepts bumps the lifetime counter and returns its new value.
func (c *Client) IncrementIntercepts(ctx context.Context) (int, error) {
	resp, err := c.call(ctx, Request{Action: ActionIncrementIntercepts})
	if err != nil {
		return 0, err
	}
	if resp.TotalIntercepts == nil {
		return 0, nil
	}
	return *resp.TotalIntercepts, nil
}

// AddPurchase stores entry and returns it with id and timestamp filled.
func (c *Client) AddPurchase(ctx context.Context, entry model.PurchaseEntry) (model.PurchaseEntry, error) {
	resp, err := c.call(ctx, Request{Action: ActionAddPurchase, Purchase: &entry})
	if err != nil {
		return model.PurchaseEntry{}, err
	}
	if resp.Purchase == nil {
		return entry, nil
	}
	return *resp.Purchase, nil
}

// Settings returns the current settings.
func (c *Client) Settings(ctx context.Context) (model.Settings, error) {
	resp, err := c.call(ctx, Request{Action: ActionGetSettings})
	if err != nil {
		return model.Settings{}, err
	}
	if resp.Settings == nil {
		return model.DefaultSettings(), nil
	}
	return *resp.Settings, nil
}

// UpdateSettings merges patch, a JSON object with any subset of the settings
// fields, into the stored settings.
func (c *Client) UpdateSettings(ctx context.Context, patch []byte) (model.Settings, error) {
	resp, err := c.call(ctx, Request{Action: ActionUpdateSettings, Settings: patch})
	if err != nil {
		return model.Settings{}, err
	}
	if resp.Settings == nil {
		return model.Settings{}, fmt.Errorf("%w: %s", ErrEmptyPayload, ActionUpdateSettings)
	}
	return *resp.Settings, nil
}

// RecentPurchases returns the stored history, newest first.
func (c *Client) RecentPurchases(ctx context.Context) ([]model.PurchaseEntry, error) {
	resp, err := c.call(ctx, Request{Action: ActionGetRecentPurchases})
	if err != nil {
		return nil, err
	}
	if resp.Purchases == nil {
		return []model.PurchaseEntry{}, nil
	}
	return resp.Purchases, nil
}

// SpendingInsights returns this month's spending summary.
func (c *Client) SpendingInsights(ctx context.Context) (model.SpendingInsights, error) {
	resp, err := c.call(ctx, Request{Action: ActionGetSpendingInsights})
	if err != nil {
		return model.SpendingInsights{}, err
	}
	if resp.Insights == nil {
		return model.SpendingInsights{}, fmt.Errorf("%w: %s", ErrEmptyPayload, ActionGetSpendingInsights)
	}
	return *resp.Insights, nil
}

// SavingsSummary returns the savings read model.
func (c *Client) SavingsSummary(ctx context.Context) (model.SavingsSummary, error) {
	resp, err := c.call(ctx, Request{Action: ActionGetSavingsSummary})
	if err != nil {
		return model.SavingsSummary{}, err
	}
	if resp.Summary == nil {
		return model.SavingsSummary{}, fmt.Errorf("%w: %s", ErrEmptyPayload, ActionGetSavingsSummary)
	}
	return *resp.Summary, nil
}
