package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Veraticus/spendguard/internal/certs"
	"github.com/Veraticus/spendguard/internal/clock"
	"github.com/Veraticus/spendguard/internal/config"
	"github.com/Veraticus/spendguard/internal/cooldown"
	"github.com/Veraticus/spendguard/internal/detect"
	"github.com/Veraticus/spendguard/internal/dom"
	"github.com/Veraticus/spendguard/internal/engine"
	"github.com/Veraticus/spendguard/internal/extract"
	"github.com/Veraticus/spendguard/internal/messaging"
	"github.com/Veraticus/spendguard/internal/metrics"
	"github.com/Veraticus/spendguard/internal/nudge"
	"github.com/Veraticus/spendguard/internal/records"
	"github.com/Veraticus/spendguard/internal/savings"
	"github.com/Veraticus/spendguard/internal/scam"
	"github.com/Veraticus/spendguard/internal/storage"
)

const shutdownTimeout = 10 * time.Second

// app holds the long-lived collaborators shared by every command.
type app struct {
	cfg     config.Config
	store   *storage.SQLiteStorage
	records *records.Store
	ledger  *savings.Ledger
	metrics *metrics.Metrics
	router  *messaging.Router
	closers []io.Closer
}

// openApp opens and migrates the database and builds the record stores.
func openApp(ctx context.Context, cfg config.Config) (*app, error) {
	store, err := storage.NewSQLiteStorage(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	m := metrics.New()
	recs := records.New(store)
	ledger := savings.NewLedger(store, time.Now)

	return &app{
		cfg:     cfg,
		store:   store,
		records: recs,
		ledger:  ledger,
		metrics: m,
		router:  messaging.NewRouter(recs, ledger, m),
		closers: []io.Closer{store},
	}, nil
}

// Close releases everything opened by the app, newest first.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// client returns an in-process messaging client for the local database.
func (a *app) client() *messaging.Client {
	return messaging.NewClient(a.router)
}

func (a *app) classifier() (*detect.Classifier, error) {
	opts := []detect.Option{
		detect.WithStrict(a.cfg.Engine.StrictClassifier),
		detect.WithPriceCeiling(a.cfg.Engine.PriceCeiling),
	}
	if len(a.cfg.Engine.ExcludedHosts) > 0 {
		opts = append(opts, detect.WithExcludedHosts(a.cfg.Engine.ExcludedHosts...))
	}
	return detect.New(opts...)
}

func (a *app) nudges() (*nudge.Safe, error) {
	provider, err := nudge.NewProvider(nudge.Config{
		Provider:          a.cfg.Nudge.Provider,
		APIKey:            a.cfg.Nudge.APIKey,
		Model:             a.cfg.Nudge.Model,
		BaseURL:           a.cfg.Nudge.BaseURL,
		Timeout:           a.cfg.Nudge.Timeout,
		CacheTTL:          a.cfg.Nudge.CacheTTL,
		RequestsPerMinute: a.cfg.Nudge.RequestsPerMinute,
	})
	if err != nil {
		return nil, err
	}
	if c, ok := provider.(io.Closer); ok {
		a.closers = append(a.closers, c)
	}
	return nudge.NewSafe(provider, a.cfg.Nudge.Timeout), nil
}

// engineHooks lets a command observe cooldowns without replacing the
// engine's own handling.
type engineHooks struct {
	OnStart   func(s *cooldown.Session)
	OnResolve func(s *cooldown.Session, outcome cooldown.State)
}

// newEngine wires an engine for page that renders cooldowns on overlay.
func (a *app) newEngine(page dom.Page, overlay cooldown.Overlay, clk clock.Clock, hooks engineHooks) (*engine.Engine, error) {
	classifier, err := a.classifier()
	if err != nil {
		return nil, fmt.Errorf("failed to build classifier: %w", err)
	}
	nudges, err := a.nudges()
	if err != nil {
		return nil, fmt.Errorf("failed to build nudge provider: %w", err)
	}

	return engine.New(page, engine.Deps{
		Classifier: classifier,
		Extractor:  extract.New(extract.WithPriceCeiling(a.cfg.Engine.PriceCeiling)),
		Clock:      clk,
		Metrics:    a.metrics,
		Cooldown: cooldown.Config{
			Records:         a.records,
			Settings:        a.records,
			Savings:         a.ledger,
			Insights:        a.records,
			Nudges:          nudges,
			Scam:            scam.NewDetector(),
			Overlay:         overlay,
			OnStart:         hooks.OnStart,
			OnResolve:       hooks.OnResolve,
			DefaultEstimate: a.cfg.Engine.DefaultEstimate,
		},
	}, engine.Config{
		Debounce: a.cfg.Engine.Debounce,
	})
}

// serveHTTP runs handler on addr until ctx is done. A non-nil tlsCfg serves
// HTTPS.
func serveHTTP(ctx context.Context, addr string, handler http.Handler, tlsCfg *tls.Config) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		TLSConfig:         tlsCfg,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP bridge listening", "addr", addr, "tls", tlsCfg != nil)
		var err error
		if tlsCfg != nil {
			err = server.ListenAndServeTLS("", "")
		} else {
			err = server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	slog.Info("HTTP bridge stopped")
	return nil
}

// bridgeTLS returns the TLS config for the bridge, or nil when it is served
// over plain HTTP.
func bridgeTLS(cfg config.ServerConfig) (*tls.Config, error) {
	if !cfg.TLS {
		return nil, nil
	}
	m := certs.NewFileManager(cfg.CertDir)
	tlsCfg, err := m.TLSConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to prepare bridge certificate: %w", err)
	}
	slog.Info("Serving bridge over HTTPS", "certificate", m.CertFile())
	return tlsCfg, nil
}
