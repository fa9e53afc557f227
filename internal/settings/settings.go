// Package settings is the persisted key/value store behind the app's
// preferences: feature toggles, provider API keys, the BRL exchange rate
// and the unlock passphrase hash.
package settings

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Setting struct {
	Key       string    `gorm:"primaryKey;type:varchar(64)" json:"key"`
	Value     string    `gorm:"type:text;not null" json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string { return "app_settings" }

const (
	KeyPassphraseHash  = "passphrase_hash"
	KeyUSDBRLRate      = "usd_brl_rate"
	KeyEnableThinking  = "enable_thinking"
	KeyEnableWebSearch = "enable_web_search"

	keyAPIKeyPrefix = "api_key_"
)

const defaultUSDBRLRate = 5.0

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

func (s *Service) Get(ctx context.Context, key string) (string, error) {
	var row Setting
	err := s.db.WithContext(ctx).First(&row, "key = ?", key).Error
	if err != nil {
		return "", err
	}
	return row.Value, nil
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Key: key, Value: value}).Error
}

// APIKey returns the stored key for a provider, empty when unset.
func (s *Service) APIKey(ctx context.Context, provider string) string {
	v, err := s.Get(ctx, keyAPIKeyPrefix+provider)
	if err != nil {
		return ""
	}
	return v
}

func (s *Service) SetAPIKey(ctx context.Context, provider, key string) error {
	return s.Set(ctx, keyAPIKeyPrefix+provider, key)
}

// USDBRLRate falls back to the default rate when unset or unparseable.
func (s *Service) USDBRLRate(ctx context.Context) float64 {
	v, err := s.Get(ctx, KeyUSDBRLRate)
	if err != nil {
		return defaultUSDBRLRate
	}
	rate, err := strconv.ParseFloat(v, 64)
	if err != nil || rate <= 0 {
		return defaultUSDBRLRate
	}
	return rate
}

func (s *Service) PassphraseHash(ctx context.Context) (string, error) {
	v, err := s.Get(ctx, KeyPassphraseHash)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	return v, err
}

// ThinkingEnabled and WebSearchEnabled implement chat.FeatureToggles.
// Both default to enabled; only an explicit "false" turns a feature off.
func (s *Service) ThinkingEnabled(ctx context.Context) bool {
	return s.boolSetting(ctx, KeyEnableThinking)
}

func (s *Service) WebSearchEnabled(ctx context.Context) bool {
	return s.boolSetting(ctx, KeyEnableWebSearch)
}

func (s *Service) boolSetting(ctx context.Context, key string) bool {
	v, err := s.Get(ctx, key)
	if err != nil {
		return true
	}
	return v != "false"
}
