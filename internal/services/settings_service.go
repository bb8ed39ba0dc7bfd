package services

import (
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/eventsphere/backend/internal/models"
)

var ErrInvalidThreshold = errors.New("auto-ban threshold must be at least 1")

// SettingsService resolves the auto-ban threshold, preferring the stored
// settings document over the configured default.
type SettingsService struct {
	store            ModerationStore
	defaultThreshold int
	now              func() time.Time
}

func NewSettingsService(store ModerationStore, defaultThreshold int) *SettingsService {
	if defaultThreshold < 1 {
		defaultThreshold = DefaultAutoBanReportThreshold
	}
	return &SettingsService{
		store:            store,
		defaultThreshold: defaultThreshold,
		now:              time.Now,
	}
}

// Get returns the effective settings. A missing or invalid stored document
// falls back to the default threshold.
func (s *SettingsService) Get(ctx context.Context) (*models.ModerationSettings, error) {
	stored, err := s.store.GetSettings(ctx)
	if err != nil {
		if errors.Is(err, ErrSettingsNotFound) {
			return &models.ModerationSettings{AutoBanReportThreshold: s.defaultThreshold}, nil
		}
		return nil, err
	}
	if stored.AutoBanReportThreshold < 1 {
		log.WithField("threshold", stored.AutoBanReportThreshold).Warn("ignoring invalid stored auto-ban threshold")
		stored.AutoBanReportThreshold = s.defaultThreshold
	}
	return stored, nil
}

func (s *SettingsService) Threshold(ctx context.Context) (int, error) {
	settings, err := s.Get(ctx)
	if err != nil {
		return 0, err
	}
	return settings.AutoBanReportThreshold, nil
}

func (s *SettingsService) Update(ctx context.Context, actor models.Actor, threshold int) (*models.ModerationSettings, error) {
	if threshold < 1 {
		return nil, ErrInvalidThreshold
	}
	settings := &models.ModerationSettings{
		AutoBanReportThreshold: threshold,
		UpdatedAt:              s.now().UTC(),
		UpdatedBy:              actor.ID,
	}
	if err := s.store.SaveSettings(ctx, settings); err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{"threshold": threshold, "actor": actor.ID}).Info("auto-ban threshold updated")
	return settings, nil
}
