package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/user/knowledge-service/internal/entity"
	"github.com/user/knowledge-service/internal/repository"
	"github.com/user/knowledge-service/pkg/logger"
)

// SettingsUseCase reads and patches the runtime settings document. Stored
// values are merged over the defaults so new keys pick up their default.
type SettingsUseCase struct {
	repo     repository.SettingsRepository
	defaults entity.Settings
	logger   *zap.Logger
}

func NewSettingsUseCase(repo repository.SettingsRepository, defaults entity.Settings, log *zap.Logger) *SettingsUseCase {
	return &SettingsUseCase{repo: repo, defaults: defaults, logger: logger.OrNop(log)}
}

func (uc *SettingsUseCase) Get(ctx context.Context) (entity.Settings, error) {
	raw, err := uc.repo.Get(ctx, entity.SettingsKey)
	if errors.Is(err, repository.ErrNotFound) {
		return uc.defaults, nil
	}
	if err != nil {
		return uc.defaults, fmt.Errorf("failed to load settings: %w", err)
	}

	s := uc.defaults
	if err := json.Unmarshal(raw, &s); err != nil {
		uc.logger.Warn("Stored settings are corrupt, using defaults", zap.Error(err))
		return uc.defaults, nil
	}
	return s, nil
}

// Update applies patch to the current settings and stores the result.
func (uc *SettingsUseCase) Update(ctx context.Context, patch entity.SettingsPatch) (entity.Settings, error) {
	current, err := uc.Get(ctx)
	if err != nil {
		return current, err
	}
	next := current.Apply(patch)

	raw, err := json.Marshal(next)
	if err != nil {
		return current, fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := uc.repo.Put(ctx, entity.SettingsKey, raw); err != nil {
		return current, fmt.Errorf("failed to save settings: %w", err)
	}
	uc.logger.Info("Settings updated",
		zap.Bool("auto_summary_enabled", next.AutoSummaryEnabled),
		zap.Bool("browser_relay_fallback_enabled", next.BrowserRelayFallbackEnabled),
	)
	return next, nil
}

// BrowserRelayEnabled is consulted by the web extractor on every fetch.
func (uc *SettingsUseCase) BrowserRelayEnabled(ctx context.Context) bool {
	s, err := uc.Get(ctx)
	if err != nil {
		uc.logger.Warn("Failed to read relay setting, using default", zap.Error(err))
	}
	return s.BrowserRelayFallbackEnabled
}
