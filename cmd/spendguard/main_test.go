package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/config"
	"github.com/Veraticus/spendguard/internal/cooldown"
	"github.com/Veraticus/spendguard/internal/extract"
	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/storage"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	cfg, err := config.Load(viper.New())
	require.NoError(t, err)
	cfg.Database.Path = filepath.Join(t.TempDir(), "spendguard.db")

	a, err := openApp(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestApplyAssignments(t *testing.T) {
	base := model.DefaultSettings()
	base.CategoryBudgets = map[string]float64{"Books": 50, "Electronics": 200}

	tests := []struct {
		check   func(t *testing.T, s model.Settings)
		name    string
		args    []string
		wantErr bool
	}{
		{
			name: "cooldown and toggles",
			args: []string{"cooldown=60", "nudges=false", "scam-detection=false"},
			check: func(t *testing.T, s model.Settings) {
				assert.Equal(t, 60, s.CooldownSeconds)
				assert.False(t, s.EnableNudges)
				assert.False(t, s.EnableScamDetection)
			},
		},
		{
			name: "budget replaced case-insensitively",
			args: []string{"budget.books=$75"},
			check: func(t *testing.T, s model.Settings) {
				assert.Equal(t, map[string]float64{"books": 75, "Electronics": 200}, s.CategoryBudgets)
			},
		},
		{
			name: "empty budget removes it",
			args: []string{"budget.Electronics="},
			check: func(t *testing.T, s model.Settings) {
				assert.Equal(t, map[string]float64{"Books": 50}, s.CategoryBudgets)
			},
		},
		{name: "missing equals", args: []string{"cooldown"}, wantErr: true},
		{name: "unknown key", args: []string{"color=blue"}, wantErr: true},
		{name: "cooldown not a number", args: []string{"cooldown=soon"}, wantErr: true},
		{name: "cooldown out of range", args: []string{"cooldown=0"}, wantErr: true},
		{name: "negative budget", args: []string{"budget.Books=-1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := applyAssignments(base, tt.args)
			if tt.wantErr {
				require.Error(t, err)
				var userErr *common.UserError
				assert.True(t, errors.As(err, &userErr))
				return
			}
			require.NoError(t, err)
			tt.check(t, got)
		})
	}

	// The input is never modified.
	assert.Equal(t, map[string]float64{"Books": 50, "Electronics": 200}, base.CategoryBudgets)
}

func TestReplaceSettings(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	c := a.client()

	current, err := c.Settings(ctx)
	require.NoError(t, err)

	withBudgets, err := applyAssignments(current, []string{"budget.Books=50", "budget.Games=30", "cooldown=45"})
	require.NoError(t, err)
	saved, err := replaceSettings(ctx, c, current, withBudgets)
	require.NoError(t, err)
	assert.Equal(t, 45, saved.CooldownSeconds)
	assert.Len(t, saved.CategoryBudgets, 2)

	withoutGames, err := applyAssignments(saved, []string{"budget.Games="})
	require.NoError(t, err)
	saved, err = replaceSettings(ctx, c, saved, withoutGames)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"Books": 50}, saved.CategoryBudgets)

	stored := a.records.Settings(ctx)
	assert.Equal(t, saved, stored)
}

func TestSettingsYAMLRoundTrip(t *testing.T) {
	s := model.DefaultSettings()
	s.CooldownSeconds = 90
	s.CategoryBudgets = map[string]float64{"Electronics": 300}

	var buf bytes.Buffer
	require.NoError(t, writeSettingsYAML(&buf, s))
	assert.Contains(t, buf.String(), "cooldownSeconds: 90")

	got, err := parseSettingsYAML(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestParseSettingsYAML(t *testing.T) {
	t.Run("missing fields take defaults", func(t *testing.T) {
		got, err := parseSettingsYAML([]byte("cooldownSeconds: 10\n"))
		require.NoError(t, err)
		assert.Equal(t, 10, got.CooldownSeconds)
		assert.True(t, got.EnableNudges)
	})

	t.Run("invalid values rejected", func(t *testing.T) {
		_, err := parseSettingsYAML([]byte("cooldownSeconds: -5\n"))
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrInvalidSettings)
	})

	t.Run("malformed yaml rejected", func(t *testing.T) {
		_, err := parseSettingsYAML([]byte("cooldownSeconds: [1,"))
		require.Error(t, err)
	})
}

const checkoutPage = `<html><head><title>Checkout</title></head><body>
<h1>Noise Cancelling Headphones</h1>
<span class="price">$349.00</span>
<form action="/order"><button type="submit" id="place">Place Order</button></form>
<a href="/help" id="help">Help</a>
</body></html>`

func writePage(t *testing.T, markup string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	require.NoError(t, os.WriteFile(path, []byte(markup), 0o600))
	return path
}

func TestScanFile(t *testing.T) {
	a := newTestApp(t)
	classifier, err := a.classifier()
	require.NoError(t, err)

	res := scanFile(classifier, extract.New(), writePage(t, checkoutPage), "https://shop.example.com/checkout")
	require.NoError(t, res.Err)
	assert.True(t, res.PageOK)
	assert.Equal(t, "Noise Cancelling Headphones", res.Product)
	assert.Equal(t, "$349.00", res.Price)

	var guarded []string
	for _, c := range res.Controls {
		if c.Match.Purchase {
			guarded = append(guarded, c.Label)
		}
	}
	assert.Equal(t, []string{"<button> Place Order"}, guarded)

	var out bytes.Buffer
	writeScanReport(&out, []scanResult{res, {File: "missing.html", Err: os.ErrNotExist}}, false)
	assert.Contains(t, out.String(), "Place Order")
	assert.NotContains(t, out.String(), "Help")
	assert.Contains(t, out.String(), "1 control guarded across 1 page")
}

func TestWritePurchases(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	entries := []model.PurchaseEntry{
		{Timestamp: now, URL: "https://shop.example.com", ProductName: "Headphones", Amount: model.Float(349), Proceeded: true, Reason: model.ReasonProceeded},
		{Timestamp: now, URL: "https://shop.example.com", ProductName: "Headphones", Amount: model.Float(349), Reason: model.ReasonIntercepted},
		{Timestamp: now, URL: "https://books.example.com", Reason: model.ReasonIntercepted},
	}

	var out bytes.Buffer
	writePurchases(&out, entries, 2)
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[1], "waited, bought")
	assert.Contains(t, lines[1], "$349.00")
	assert.Contains(t, lines[2], "paused")

	out.Reset()
	writePurchases(&out, nil, 0)
	assert.Contains(t, out.String(), "No purchases recorded yet.")
}

type fixedSummary model.SavingsSummary

func (f fixedSummary) Summary(context.Context) model.SavingsSummary {
	return model.SavingsSummary(f)
}

func TestResolutionSummary(t *testing.T) {
	ctx := context.Background()
	ledger := fixedSummary{TotalSaved: 389}

	priced := &cooldown.Session{Context: model.PurchaseContext{Price: model.Float(349)}}
	unpriced := &cooldown.Session{}

	assert.Contains(t, resolutionSummary(ctx, ledger, priced, cooldown.Abandoned, 50), "Saved $349.00. Total saved: $389.00.")
	assert.Contains(t, resolutionSummary(ctx, ledger, unpriced, cooldown.Abandoned, 50), "Saved $50.00.")
	assert.Contains(t, resolutionSummary(ctx, ledger, priced, cooldown.Proceeded, 50), "The purchase went through.")
	assert.Contains(t, resolutionSummary(ctx, ledger, priced, cooldown.Dismissed, 50), "dismissed")
}

func TestThemeByName(t *testing.T) {
	_, err := themeByName("catppuccin")
	require.NoError(t, err)
	_, err = themeByName("")
	require.NoError(t, err)
	_, err = themeByName("neon")
	assert.ErrorIs(t, err, common.ErrInvalidConfig)
}

func TestServeHTTPStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- serveHTTP(ctx, addr, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}), nil)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/") //nolint:noctx // Test probe
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusNoContent
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestMigrateStatus(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "spendguard.db")
	viper.Set("database.path", dbPath)
	t.Cleanup(viper.Reset)

	cmd := migrateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())

	require.NoError(t, runMigrate(cmd, nil))
	assert.Contains(t, out.String(), "Database migrations completed")

	out.Reset()
	require.NoError(t, cmd.Flags().Set("status", "true"))
	require.NoError(t, runMigrate(cmd, nil))
	assert.Contains(t, out.String(), "Latest version")

	store, err := storage.NewSQLiteStorage(dbPath)
	require.NoError(t, err)
	defer func() { _ = store.Close() }()
	v, err := store.SchemaVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, storage.ExpectedSchemaVersion, v)
}

func TestBridgeTLS(t *testing.T) {
	tlsCfg, err := bridgeTLS(config.ServerConfig{Addr: "127.0.0.1:0"})
	require.NoError(t, err)
	assert.Nil(t, tlsCfg)

	dir := t.TempDir()
	tlsCfg, err = bridgeTLS(config.ServerConfig{Addr: "127.0.0.1:0", TLS: true, CertDir: dir})
	require.NoError(t, err)
	require.NotNil(t, tlsCfg)
	assert.Len(t, tlsCfg.Certificates, 1)
	assert.FileExists(t, filepath.Join(dir, "bridge.crt"))
}
