package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spendguard/internal/common"
	"github.com/Veraticus/spendguard/internal/model"
	"github.com/Veraticus/spendguard/internal/service"
)

// LoadSettings reads the persisted settings. A missing document yields the
// defaults and writes them so later reads see a stable value. Fields absent
// from the stored document keep their default values.
func (s *Store) LoadSettings(ctx context.Context) (model.Settings, error) {
	raw, found, err := s.kv.Get(ctx, service.KeySettings)
	if err != nil {
		return model.DefaultSettings(), fmt.Errorf("%w: get settings: %w", common.ErrStoreUnavailable, err)
	}
	if !found {
		defaults := model.DefaultSettings()
		if err := s.putJSON(ctx, service.KeySettings, defaults); err != nil {
			return defaults, err
		}
		return defaults, nil
	}

	settings := model.DefaultSettings()
	if err := json.Unmarshal(raw, &settings); err != nil {
		return model.DefaultSettings(), fmt.Errorf("%w: settings: %w", common.ErrCorruptValue, err)
	}
	if err := settings.Validate(); err != nil {
		return model.DefaultSettings(), err
	}
	return settings, nil
}

// Settings implements service.SettingsSource. Storage failures degrade to the
// default settings so an interception never blocks on the store.
func (s *Store) Settings(ctx context.Context) model.Settings {
	settings, err := s.LoadSettings(ctx)
	if err != nil {
		slog.Warn("Using default settings", "error", err)
	}
	return settings
}

// UpdateSettings validates and persists settings, returning what was stored.
func (s *Store) UpdateSettings(ctx context.Context, settings model.Settings) (model.Settings, error) {
	if err := settings.Validate(); err != nil {
		return model.Settings{}, err
	}
	if err := s.putJSON(ctx, service.KeySettings, settings); err != nil {
		return model.Settings{}, err
	}
	return settings, nil
}

// MergeSettings applies a partial JSON document over the current settings.
func (s *Store) MergeSettings(ctx context.Context, patch json.RawMessage) (model.Settings, error) {
	current, err := s.LoadSettings(ctx)
	if err != nil && !errors.Is(err, model.ErrInvalidSettings) && !errors.Is(err, common.ErrCorruptValue) {
		return model.Settings{}, err
	}
	if len(patch) == 0 {
		return current, nil
	}
	if err := json.Unmarshal(patch, &current); err != nil {
		return model.Settings{}, fmt.Errorf("%w: settings: %w", common.ErrInvalidRequest, err)
	}
	return s.UpdateSettings(ctx, current)
}
