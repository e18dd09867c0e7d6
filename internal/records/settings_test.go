package records

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/service"
	"github.com/Veraticus/spendguard/internal/storage"
)

func TestStore_SettingsDefaultsOnFirstRun(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStorage()
	store := New(kv)

	settings, err := store.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.DefaultSettings(), settings)

	_, found, err := kv.Get(ctx, service.KeySettings)
	require.NoError(t, err)
	assert.True(t, found, "defaults should be written on first read")
}

func TestStore_SettingsReflectLatestWrite(t *testing.T) {
	ctx := context.Background()
	store := New(storage.NewMemoryStorage())

	assert.Equal(t, model.DefaultCooldownSeconds, store.Settings(ctx).CooldownSeconds)

	updated := model.DefaultSettings()
	updated.CooldownSeconds = 10
	_, err := store.UpdateSettings(ctx, updated)
	require.NoError(t, err)

	assert.Equal(t, 10, store.Settings(ctx).CooldownSeconds)
}

func TestStore_UpdateSettingsValidates(t *testing.T) {
	ctx := context.Background()
	store := New(storage.NewMemoryStorage())

	bad := model.DefaultSettings()
	bad.CooldownSeconds = 0
	_, err := store.UpdateSettings(ctx, bad)
	require.ErrorIs(t, err, model.ErrInvalidSettings)
}

func TestStore_PartialSettingsKeepDefaults(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStorage()
	require.NoError(t, kv.Set(ctx, service.KeySettings, []byte(`{"cooldownSeconds":12}`)))
	store := New(kv)

	settings, err := store.LoadSettings(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12, settings.CooldownSeconds)
	assert.True(t, settings.EnableNudges)
	assert.True(t, settings.EnableScamDetection)
}

func TestStore_SettingsDegradeOnStoreFailure(t *testing.T) {
	kv := &mockKV{}
	kv.On("Get", mock.Anything, service.KeySettings).Return(nil, false, errors.New("locked"))
	store := New(kv)

	assert.Equal(t, model.DefaultSettings(), store.Settings(context.Background()))
}

func TestStore_MergeSettings(t *testing.T) {
	ctx := context.Background()
	store := New(storage.NewMemoryStorage())

	merged, err := store.MergeSettings(ctx, json.RawMessage(`{"enableNudges":false,"categoryBudgets":{"Books":40}}`))
	require.NoError(t, err)
	assert.False(t, merged.EnableNudges)
	assert.Equal(t, model.DefaultCooldownSeconds, merged.CooldownSeconds)
	assert.InDelta(t, 40, merged.CategoryBudgets["Books"], 0.001)

	_, err = store.MergeSettings(ctx, json.RawMessage(`{"cooldownSeconds":-4}`))
	require.ErrorIs(t, err, model.ErrInvalidSettings)
}
