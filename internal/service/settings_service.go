package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"autoparts-service/config"
	"autoparts-service/internal/models"
	"autoparts-service/internal/pricing"
	"autoparts-service/internal/util"
)

// SettingsStore is the settings read contract against the database.
type SettingsStore interface {
	GetSettings(ctx context.Context) (*models.AppSettings, error)
}

// SettingsCache is the optional Redis-backed settings cache.
type SettingsCache interface {
	GetCachedSettings(ctx context.Context) (*models.AppSettings, error)
	CacheSettings(ctx context.Context, settings *models.AppSettings, ttl time.Duration) error
}

// SettingsService resolves the app settings singleton: cache first,
// then the store, then configured defaults when no row exists. The
// order workflow treats the result as read-only.
type SettingsService struct {
	store    SettingsStore
	cache    SettingsCache
	defaults config.BusinessConfig
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(store SettingsStore, cache SettingsCache, defaults config.BusinessConfig) *SettingsService {
	return &SettingsService{
		store:    store,
		cache:    cache,
		defaults: defaults,
		cacheTTL: time.Duration(defaults.SettingsCacheTTLSeconds) * time.Second,
		logger:   util.GetLogger(),
	}
}

// Get returns the current settings. Cache failures degrade to a store
// read; a missing row degrades to config defaults.
func (s *SettingsService) Get(ctx context.Context) (*models.AppSettings, error) {
	if s.cache != nil {
		cached, err := s.cache.GetCachedSettings(ctx)
		if err != nil {
			s.logger.Warn("Settings cache read failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		settings = s.defaultSettings()
	}

	if s.cache != nil {
		if err := s.cache.CacheSettings(ctx, settings, s.cacheTTL); err != nil {
			s.logger.Warn("Settings cache write failed", zap.Error(err))
		}
	}

	return settings, nil
}

// Pricing converts settings into the pricing engine's input form.
func (s *SettingsService) Pricing(settings *models.AppSettings) pricing.Settings {
	return pricing.Settings{
		TaxRate:               settings.TaxRate,
		ShippingCost:          settings.ShippingCost,
		FreeShippingThreshold: settings.FreeShippingThreshold,
	}
}

func (s *SettingsService) defaultSettings() *models.AppSettings {
	return &models.AppSettings{
		AppName:               "Auto Parts Store",
		Currency:              "USD",
		TaxRate:               decimal.NewFromFloat(s.defaults.DefaultTaxRate),
		ShippingCost:          decimal.NewFromFloat(s.defaults.DefaultShippingCost),
		FreeShippingThreshold: decimal.NewFromFloat(s.defaults.FreeShippingThreshold),
	}
}
