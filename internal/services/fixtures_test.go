package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventsphere/backend/internal/models"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

var adminActor = models.Actor{ID: "admin-1", Email: "admin@example.com"}

func seedUser(t *testing.T, s *MemoryModerationStore, u models.User) {
	t.Helper()
	require.NoError(t, s.PutUser(u))
}

func seedExperience(t *testing.T, s *MemoryModerationStore, id, owner string, reports int) {
	t.Helper()
	e := models.Experience{ID: id, UserID: owner, Title: "Experience " + id}
	for i := 0; i < reports; i++ {
		e.Reports = append(e.Reports, models.ExperienceReport{ReportedBy: "someone", Reason: "spam", CreatedAt: fixedNow})
	}
	require.NoError(t, s.PutExperience(e))
}

func seedReport(t *testing.T, s *MemoryModerationStore, id, accused string, status models.ReportStatus) {
	t.Helper()
	require.NoError(t, s.PutReport(models.Report{
		ID:         id,
		ReporterID: accused,
		ReportedBy: "someone",
		Reason:     "abuse",
		Status:     status,
		CreatedAt:  fixedNow,
	}))
}

func newTestModeration(store ModerationStore, threshold int, adminEmails ...string) *ModerationService {
	settings := NewSettingsService(store, threshold)
	settings.now = func() time.Time { return fixedNow }
	svc := NewModerationService(store, settings, NewAdminResolver(adminEmails))
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func mustGetUser(t *testing.T, s ModerationStore, id string) *models.User {
	t.Helper()
	u, err := s.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func experiencesOf(t *testing.T, s ModerationStore, owner string) []models.Experience {
	t.Helper()
	all, err := s.ListExperiences(context.Background())
	require.NoError(t, err)
	var out []models.Experience
	for _, e := range all {
		if e.UserID == owner {
			out = append(out, e)
		}
	}
	return out
}

func reportsAgainst(t *testing.T, s ModerationStore, accused string) []models.Report {
	t.Helper()
	all, err := s.ListReports(context.Background())
	require.NoError(t, err)
	var out []models.Report
	for _, r := range all {
		if r.ReporterID == accused {
			out = append(out, r)
		}
	}
	return out
}

// racingStore runs beforeCascade once, just before the first cascade is
// applied, to simulate a concurrent writer. afterCascade runs once after the
// first cascade returns.
type racingStore struct {
	*MemoryModerationStore
	beforeCascade func()
	afterCascade  func()
}

func (s *racingStore) ApplyCascade(ctx context.Context, c *CascadeUpdate) error {
	if hook := s.beforeCascade; hook != nil {
		s.beforeCascade = nil
		hook()
	}
	err := s.MemoryModerationStore.ApplyCascade(ctx, c)
	if hook := s.afterCascade; hook != nil {
		s.afterCascade = nil
		hook()
	}
	return err
}

var errBackend = errors.New("backend unavailable")

// failingStore rejects cascades for the listed users.
type failingStore struct {
	*MemoryModerationStore
	failFor map[string]bool
}

func (s *failingStore) ApplyCascade(ctx context.Context, c *CascadeUpdate) error {
	if s.failFor[c.UserID] {
		return errBackend
	}
	return s.MemoryModerationStore.ApplyCascade(ctx, c)
}
