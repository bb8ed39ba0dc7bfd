package services

import (
	"context"
	"errors"
	"time"

	"github.com/eventsphere/backend/internal/models"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrExperienceNotFound = errors.New("experience not found")
	ErrRevisionConflict   = errors.New("user was modified concurrently")
	ErrSettingsNotFound   = errors.New("moderation settings not found")
)

// ModerationStore is the document store behind the moderation flow. Every
// list call reads the collection fresh.
type ModerationStore interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	GetUser(ctx context.Context, userID string) (*models.User, error)
	ListExperiences(ctx context.Context) ([]models.Experience, error)
	ListReports(ctx context.Context) ([]models.Report, error)

	// ApplyCascade commits the whole update or nothing. It returns
	// ErrUserNotFound when the user does not exist and ErrRevisionConflict
	// when the stored revision differs from ExpectedRevision.
	ApplyCascade(ctx context.Context, c *CascadeUpdate) error

	CreateReport(ctx context.Context, r *models.Report) error
	AddExperienceReport(ctx context.Context, experienceID string, r models.ExperienceReport) (*models.Experience, error)

	GetSettings(ctx context.Context) (*models.ModerationSettings, error)
	SaveSettings(ctx context.Context, s *models.ModerationSettings) error
}

// UserModerationPatch is the new moderation state of the user document.
// Empty strings and nil times are stored as null.
type UserModerationPatch struct {
	IsBanned      bool
	BanReason     string
	BannedAt      *time.Time
	BannedBy      string
	BannedByEmail string
	AutoBanned    bool

	// SetAdmin, when non-nil, also rewrites the admin flag and role.
	SetAdmin *bool
}

// CascadeUpdate is one atomic moderation write spanning the user, the
// experiences they own and the reports naming them.
type CascadeUpdate struct {
	UserID           string
	ExpectedRevision int64
	At               time.Time

	User UserModerationPatch

	HideExperiences bool
	HiddenReason    string

	// ResolveReports moves the user's pending reports to resolved. Resolved
	// reports are never reopened.
	ResolveReports bool
	Resolution     string
	ResolvedBy     string
}

// applyToUser writes the patch onto u and bumps the revision.
func (c *CascadeUpdate) applyToUser(u *models.User) {
	p := c.User
	u.IsBanned = p.IsBanned
	u.BanReason = optionalString(p.BanReason)
	u.BannedAt = p.BannedAt
	u.BannedBy = optionalString(p.BannedBy)
	u.BannedByEmail = optionalString(p.BannedByEmail)
	u.AutoBanned = p.AutoBanned
	if p.SetAdmin != nil {
		u.IsAdmin = *p.SetAdmin
		u.Role = roleFor(*p.SetAdmin)
	}
	u.Revision++
	u.UpdatedAt = c.At
}

func (c *CascadeUpdate) applyToExperience(e *models.Experience) {
	e.IsHidden = c.HideExperiences
	if c.HideExperiences {
		e.HiddenReason = optionalString(c.HiddenReason)
		at := c.At
		e.HiddenAt = &at
	} else {
		e.HiddenReason = nil
		e.HiddenAt = nil
	}
	e.UpdatedAt = c.At
}

func (c *CascadeUpdate) applyToReport(r *models.Report) {
	r.Status = models.ReportStatusResolved
	r.Resolution = optionalString(c.Resolution)
	r.ResolvedBy = optionalString(c.ResolvedBy)
	at := c.At
	r.ResolvedAt = &at
}

func roleFor(admin bool) string {
	if admin {
		return models.RoleAdmin
	}
	return models.RoleUser
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
