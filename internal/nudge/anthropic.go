package nudge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/service"
)

const (
	defaultAnthropicURL   = "https://api.anthropic.com/v1/messages"
	defaultAnthropicModel = "claude-3-5-haiku-latest"
	maxNudgeLength        = 200
)

const systemPrompt = "You help people pause before impulse purchases. Reply with one short, kind, " +
	"non-judgmental question (under 25 words) that helps the reader reflect on whether they need " +
	"this purchase. No preamble, no quotes."

// anthropicProvider generates nudges with the Anthropic Messages API.
type anthropicProvider struct {
	httpClient  *http.Client
	breaker     *gobreaker.CircuitBreaker
	budget      *requestBudget
	cache       *nudgeCache
	apiKey      string
	model       string
	baseURL     string
	retry       service.RetryOptions
	temperature float64
	maxTokens   int
}

func newAnthropicProvider(cfg Config) (*anthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: anthropic API key is required", common.ErrMissingConfig)
	}

	model := cfg.Model
	if model == "" {
		model = defaultAnthropicModel
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicURL
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 80
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &anthropicProvider{
		apiKey:      cfg.APIKey,
		model:       model,
		baseURL:     baseURL,
		temperature: temperature,
		maxTokens:   maxTokens,
		breaker:     newBreaker("anthropic-nudge"),
		budget:      newRequestBudget(cfg.RequestsPerMinute, time.Now),
		cache:       newNudgeCache(cfg.CacheTTL),
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 200 * time.Millisecond,
			MaxDelay:     2 * time.Second,
			Multiplier:   2,
		},
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// newBreaker trips after a majority of recent requests failed so a dead
// API stops costing the user a timeout on every cooldown.
func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
	})
}

// Nudge implements Provider.
func (p *anthropicProvider) Nudge(ctx context.Context, pc model.PurchaseContext) (string, error) {
	key := cacheKey(pc)
	if text, ok := p.cache.get(key); ok {
		return text, nil
	}

	if err := p.budget.wait(ctx); err != nil {
		return "", err
	}

	result, err := p.breaker.Execute(func() (any, error) {
		var text string
		err := common.WithRetry(ctx, func() error {
			var reqErr error
			text, reqErr = p.request(ctx, buildPrompt(pc))
			return reqErr
		}, p.retry)
		return text, err
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %w", common.ErrNudgeUnavailable, err)
		}
		return "", err
	}

	text, _ := result.(string)
	p.cache.set(key, text)
	return text, nil
}

func (p *anthropicProvider) request(ctx context.Context, prompt string) (string, error) {
	requestBody := map[string]any{
		"model":       p.model,
		"max_tokens":  p.maxTokens,
		"temperature": p.temperature,
		"system":      systemPrompt,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": prompt,
			},
		},
	}

	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL, strings.NewReader(string(jsonBody)))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", &common.RetryableError{Err: fmt.Errorf("request failed: %w", err), Retryable: ctx.Err() == nil}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &common.RetryableError{
			Err:       fmt.Errorf("%w: anthropic status %d", common.ErrRateLimit, resp.StatusCode),
			After:     retryAfter(resp.Header.Get("Retry-After")),
			Retryable: true,
		}
	case resp.StatusCode >= http.StatusInternalServerError:
		return "", &common.RetryableError{Err: fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body)), Retryable: true}
	case resp.StatusCode != http.StatusOK:
		return "", fmt.Errorf("anthropic API error (status %d): %s", resp.StatusCode, string(body))
	}

	var response anthropicResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	for _, c := range response.Content {
		if c.Type == "text" {
			if text := cleanNudge(c.Text); text != "" {
				return text, nil
			}
		}
	}
	return "", fmt.Errorf("%w: no text in response", common.ErrNudgeUnavailable)
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Role       string `json:"role"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Content    []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Close stops the cache's cleanup goroutine.
func (p *anthropicProvider) Close() error {
	p.cache.Close()
	return nil
}

func buildPrompt(pc model.PurchaseContext) string {
	var b strings.Builder
	b.WriteString("I am about to buy")
	if pc.ProductName != "" {
		fmt.Fprintf(&b, " %q", pc.ProductName)
	} else {
		b.WriteString(" something")
	}
	if pc.PriceText != "" {
		fmt.Fprintf(&b, " for %s", pc.PriceText)
	}
	if pc.Platform != "" {
		fmt.Fprintf(&b, " on %s", pc.Platform)
	}
	if pc.Category != "" && pc.Category != "Other" {
		fmt.Fprintf(&b, " (category: %s)", pc.Category)
	}
	b.WriteString(". Ask me one question before I do.")
	return b.String()
}

func cleanNudge(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	text = strings.Trim(strings.TrimSpace(text), `"'`)
	if r := []rune(text); len(r) > maxNudgeLength {
		text = string(r[:maxNudgeLength])
	}
	return text
}

// retryAfter reads a Retry-After header given in seconds.
func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
