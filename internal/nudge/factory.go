package nudge

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/spendguard/internal/common"
)

// Config selects and configures a provider.
type Config struct {
	Provider          string
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	RequestsPerMinute int
	CacheTTL          time.Duration
	MaxTokens         int
	Temperature       float64
}

// NewProvider creates the configured provider.
func NewProvider(cfg Config) (Provider, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "static":
		return NewStatic(), nil
	case "anthropic":
		p, err := newAnthropicProvider(cfg)
		if err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, fmt.Errorf("%w: unsupported nudge provider %q", common.ErrInvalidConfig, cfg.Provider)
	}
}
