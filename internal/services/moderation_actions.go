package services

import (
	"context"

	log "github.com/sirupsen/logrus"

	"github.com/eventsphere/backend/internal/models"
)

// ModerationActions bundles the moderation operations the HTTP layer and the
// sweep worker call.
type ModerationActions struct {
	Moderation *ModerationService
	Reports    *ReportService
	Settings   *SettingsService
}

// NewModerationActions wires the services over a single store.
func NewModerationActions(store ModerationStore, defaultThreshold int, adminEmails []string) *ModerationActions {
	settings := NewSettingsService(store, defaultThreshold)
	return &ModerationActions{
		Moderation: NewModerationService(store, settings, NewAdminResolver(adminEmails)),
		Reports:    NewReportService(store),
		Settings:   settings,
	}
}

// SweepAsSystem runs the auto-ban sweep on behalf of the scheduler.
func (m *ModerationActions) SweepAsSystem(ctx context.Context) (*models.SweepResult, error) {
	res, err := m.Moderation.RunAutoBanSweep(ctx, models.SystemActor)
	if err != nil {
		log.WithError(err).Error("scheduled auto-ban sweep failed")
		return res, err
	}
	return res, nil
}
