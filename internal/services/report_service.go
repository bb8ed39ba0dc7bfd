package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/eventsphere/backend/internal/models"
)

var ErrSelfReport = errors.New("users cannot report themselves")

// ReportService files the complaints the aggregator counts.
type ReportService struct {
	store ModerationStore
	now   func() time.Time
}

func NewReportService(store ModerationStore) *ReportService {
	return &ReportService{store: store, now: time.Now}
}

// FileReport records a direct report against req.ReporterID. The accused
// user must exist.
func (s *ReportService) FileReport(ctx context.Context, by models.Actor, req *models.CreateReportRequest) (*models.Report, error) {
	accused := strings.TrimSpace(req.ReporterID)
	if accused == by.ID {
		return nil, ErrSelfReport
	}
	if _, err := s.store.GetUser(ctx, accused); err != nil {
		return nil, err
	}

	report := &models.Report{
		ID:           uuid.New().String(),
		ReporterID:   accused,
		ReportedBy:   by.ID,
		ExperienceID: strings.TrimSpace(req.ExperienceID),
		Reason:       strings.TrimSpace(req.Reason),
		Status:       models.ReportStatusPending,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.store.CreateReport(ctx, report); err != nil {
		return nil, err
	}

	reportsFiledTotal.WithLabelValues("user").Inc()
	log.WithFields(log.Fields{"report": report.ID, "user": accused, "by": by.ID}).Info("report filed")
	return report, nil
}

// ReportExperience appends a complaint to the experience itself.
func (s *ReportService) ReportExperience(ctx context.Context, by models.Actor, experienceID, reason string) (*models.Experience, error) {
	entry := models.ExperienceReport{
		ReportedBy: by.ID,
		Reason:     strings.TrimSpace(reason),
		CreatedAt:  s.now().UTC(),
	}
	exp, err := s.store.AddExperienceReport(ctx, experienceID, entry)
	if err != nil {
		return nil, err
	}

	reportsFiledTotal.WithLabelValues("experience").Inc()
	log.WithFields(log.Fields{"experience": experienceID, "owner": exp.UserID, "by": by.ID}).Info("experience reported")
	return exp, nil
}
