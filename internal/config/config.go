package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/extract"
	"github.com/Veraticus/spendguard/internal/scheduler"
)

// EnvPrefix prefixes every environment override, e.g. SPENDGUARD_SERVER_ADDR.
const EnvPrefix = "SPENDGUARD"

// Config is the typed view of the viper configuration.
type Config struct {
	Logging   LoggingConfig
	Database  DatabaseConfig
	Nudge     NudgeConfig
	Browser   BrowserConfig
	Server    ServerConfig
	Scheduler SchedulerConfig
	Engine    EngineConfig
}

// LoggingConfig selects the slog handler.
type LoggingConfig struct {
	Level  string
	Format string
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	Path string
}

// EngineConfig tunes detection and the cooldown.
type EngineConfig struct {
	Debounce         time.Duration
	PriceCeiling     float64
	DefaultEstimate  float64
	ExcludedHosts    []string
	StrictClassifier bool
}

// BrowserConfig controls the live browser used by watch.
type BrowserConfig struct {
	Bin         string
	DebuggerURL string
	Width       int
	Height      int
	Headless    bool
}

// ServerConfig controls the HTTP bridge.
type ServerConfig struct {
	Addr    string
	CertDir string
	TLS     bool
}

// NudgeConfig selects the reflection text provider.
type NudgeConfig struct {
	Provider          string
	APIKey            string
	Model             string
	BaseURL           string
	Timeout           time.Duration
	CacheTTL          time.Duration
	RequestsPerMinute int
}

// SchedulerConfig holds the cron schedules used by serve.
type SchedulerConfig struct {
	BudgetCron   string
	RolloverCron string
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.path", filepath.Join(DefaultDataDir(), "spendguard.db"))

	v.SetDefault("engine.debounce", "150ms")
	v.SetDefault("engine.price_ceiling", extract.DefaultPriceCeiling)
	v.SetDefault("engine.default_estimate", 50.0)
	v.SetDefault("engine.strict_classifier", false)
	v.SetDefault("engine.excluded_hosts", []string{})

	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.width", 1280)
	v.SetDefault("browser.height", 800)

	v.SetDefault("server.addr", "127.0.0.1:8417")
	v.SetDefault("server.tls", false)
	v.SetDefault("server.cert_dir", filepath.Join(DefaultDataDir(), "certs"))

	v.SetDefault("nudge.provider", "static")
	v.SetDefault("nudge.model", "")
	v.SetDefault("nudge.timeout", "3s")
	v.SetDefault("nudge.cache_ttl", "30m")
	v.SetDefault("nudge.requests_per_minute", 20)

	v.SetDefault("scheduler.budget_cron", scheduler.DefaultBudgetCron)
	v.SetDefault("scheduler.rollover_cron", scheduler.DefaultRolloverCron)
}

// Bind configures environment lookup on v.
func Bind(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the typed configuration from v. Defaults are applied first.
func Load(v *viper.Viper) (Config, error) {
	SetDefaults(v)

	cfg := Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Database: DatabaseConfig{
			Path: ExpandPath(v.GetString("database.path")),
		},
		Engine: EngineConfig{
			Debounce:         v.GetDuration("engine.debounce"),
			PriceCeiling:     v.GetFloat64("engine.price_ceiling"),
			DefaultEstimate:  v.GetFloat64("engine.default_estimate"),
			StrictClassifier: v.GetBool("engine.strict_classifier"),
			ExcludedHosts:    v.GetStringSlice("engine.excluded_hosts"),
		},
		Browser: BrowserConfig{
			Bin:         ExpandPath(v.GetString("browser.bin")),
			DebuggerURL: v.GetString("browser.debugger_url"),
			Headless:    v.GetBool("browser.headless"),
			Width:       v.GetInt("browser.width"),
			Height:      v.GetInt("browser.height"),
		},
		Server: ServerConfig{
			Addr:    v.GetString("server.addr"),
			TLS:     v.GetBool("server.tls"),
			CertDir: ExpandPath(v.GetString("server.cert_dir")),
		},
		Nudge: NudgeConfig{
			Provider:          strings.ToLower(v.GetString("nudge.provider")),
			APIKey:            v.GetString("nudge.api_key"),
			Model:             v.GetString("nudge.model"),
			BaseURL:           v.GetString("nudge.base_url"),
			Timeout:           v.GetDuration("nudge.timeout"),
			CacheTTL:          v.GetDuration("nudge.cache_ttl"),
			RequestsPerMinute: v.GetInt("nudge.requests_per_minute"),
		},
		Scheduler: SchedulerConfig{
			BudgetCron:   v.GetString("scheduler.budget_cron"),
			RolloverCron: v.GetString("scheduler.rollover_cron"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values viper cannot type-check.
func (c Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is empty", common.ErrInvalidConfig)
	}
	if c.Engine.Debounce <= 0 {
		return fmt.Errorf("%w: engine.debounce must be positive", common.ErrInvalidConfig)
	}
	if c.Engine.PriceCeiling <= 0 {
		return fmt.Errorf("%w: engine.price_ceiling must be positive", common.ErrInvalidConfig)
	}
	if c.Engine.DefaultEstimate <= 0 {
		return fmt.Errorf("%w: engine.default_estimate must be positive", common.ErrInvalidConfig)
	}
	switch c.Nudge.Provider {
	case "", "static":
	case "anthropic":
		if c.Nudge.APIKey == "" {
			return fmt.Errorf("%w: nudge.api_key is required for the anthropic provider", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unknown nudge.provider %q", common.ErrInvalidConfig, c.Nudge.Provider)
	}
	return nil
}
