package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/eventsphere/backend/internal/models"
)

var (
	// ErrCannotBanAdmin is returned before any write when the target is an admin.
	ErrCannotBanAdmin  = errors.New("admins cannot be banned")
	ErrConfiguredAdmin = errors.New("user is an admin by configuration and cannot be demoted")
	ErrSelfDemotion    = errors.New("admins cannot remove their own admin rights")
	ErrNotAdmin        = errors.New("user is not an admin")
)

const (
	actionBan         = "ban"
	actionAutoBan     = "auto_ban"
	actionUnban       = "unban"
	actionMakeAdmin   = "make_admin"
	actionRemoveAdmin = "remove_admin"
)

// AdminResolver decides whether a user has admin rights: the stored flag, the
// admin role, or an e-mail on the configured list.
type AdminResolver struct {
	emails map[string]struct{}
}

func NewAdminResolver(emails []string) AdminResolver {
	set := make(map[string]struct{}, len(emails))
	for _, e := range emails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			set[e] = struct{}{}
		}
	}
	return AdminResolver{emails: set}
}

func (r AdminResolver) IsAdminEmail(email string) bool {
	if email == "" {
		return false
	}
	_, ok := r.emails[strings.ToLower(strings.TrimSpace(email))]
	return ok
}

func (r AdminResolver) IsAdmin(u *models.User) bool {
	return u.HasAdminFlag() || r.IsAdminEmail(u.Email)
}

// ModerationService evaluates the auto-ban policy and applies moderation
// decisions as single atomic cascades. It holds no cached state: every call
// works on documents read fresh from the store.
type ModerationService struct {
	store    ModerationStore
	settings *SettingsService
	admins   AdminResolver
	now      func() time.Time
}

func NewModerationService(store ModerationStore, settings *SettingsService, admins AdminResolver) *ModerationService {
	return &ModerationService{
		store:    store,
		settings: settings,
		admins:   admins,
		now:      time.Now,
	}
}

type moderationSnapshot struct {
	users       []models.User
	experiences []models.Experience
	reports     []models.Report
}

func (s *ModerationService) loadSnapshot(ctx context.Context) (*moderationSnapshot, error) {
	snap := &moderationSnapshot{}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		snap.users, err = s.store.ListUsers(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.experiences, err = s.store.ListExperiences(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		snap.reports, err = s.store.ListReports(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load moderation snapshot: %w", err)
	}
	return snap, nil
}

func (s *ModerationService) view(u *models.User, counts map[string]models.ReportCount, threshold int) models.UserModerationView {
	isAdmin := s.admins.IsAdmin(u)
	c := counts[u.ID]
	return models.UserModerationView{
		User:     *u,
		IsAdmin:  isAdmin,
		Status:   u.Status(isAdmin),
		Reports:  c,
		Decision: EvaluateBanPolicy(c.TotalReports, isAdmin, threshold),
	}
}

// ListUsers returns every user with their current report aggregate and
// policy verdict.
func (s *ModerationService) ListUsers(ctx context.Context) ([]models.UserModerationView, error) {
	threshold, err := s.settings.Threshold(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}

	counts := AggregateReports(snap.reports, snap.experiences)
	out := make([]models.UserModerationView, 0, len(snap.users))
	for i := range snap.users {
		out = append(out, s.view(&snap.users[i], counts, threshold))
	}
	return out, nil
}

func (s *ModerationService) GetUser(ctx context.Context, userID string) (*models.UserModerationView, error) {
	threshold, err := s.settings.Threshold(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	for i := range snap.users {
		if snap.users[i].ID == userID {
			v := s.view(&snap.users[i], AggregateReports(snap.reports, snap.experiences), threshold)
			return &v, nil
		}
	}
	return nil, ErrUserNotFound
}

// IsAdminActor reports whether the signed-in actor may use the admin console.
func (s *ModerationService) IsAdminActor(ctx context.Context, actor models.Actor) (bool, error) {
	if s.admins.IsAdminEmail(actor.Email) {
		return true, nil
	}
	u, err := s.store.GetUser(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return false, nil
		}
		return false, err
	}
	return s.admins.IsAdmin(u), nil
}

// BanUser bans a non-admin user, hides their experiences and resolves the
// pending reports against them. Banning an already banned user rewrites the
// same state.
func (s *ModerationService) BanUser(ctx context.Context, actor models.Actor, userID, reason string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.ban(ctx, actor, u, strings.TrimSpace(reason), false)
}

func (s *ModerationService) ban(ctx context.Context, actor models.Actor, u *models.User, reason string, auto bool) (*models.User, error) {
	action := actionBan
	if auto {
		action = actionAutoBan
	}
	if s.admins.IsAdmin(u) {
		moderationFailuresTotal.WithLabelValues(action, "admin_target").Inc()
		log.WithFields(log.Fields{"user": u.ID, "actor": actor.ID}).Warn("rejected ban of admin account")
		return nil, ErrCannotBanAdmin
	}

	at := s.now().UTC()
	c := &CascadeUpdate{
		UserID:           u.ID,
		ExpectedRevision: u.Revision,
		At:               at,
		User: UserModerationPatch{
			IsBanned:      true,
			BanReason:     reason,
			BannedAt:      &at,
			BannedBy:      actor.ID,
			BannedByEmail: actor.Email,
			AutoBanned:    auto,
		},
		HideExperiences: true,
		HiddenReason:    "Owner banned: " + reason,
		ResolveReports:  true,
		Resolution:      "User banned: " + reason,
		ResolvedBy:      actor.ID,
	}
	return s.commit(ctx, action, actor, u, c)
}

// UnbanUser lifts a ban and shows the user's experiences again. Reports
// resolved by the ban stay resolved.
func (s *ModerationService) UnbanUser(ctx context.Context, actor models.Actor, userID string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.commit(ctx, actionUnban, actor, u, s.restoreCascade(u, nil))
}

// MakeAdmin promotes a user. Promotion always clears any ban, whatever its
// origin.
func (s *ModerationService) MakeAdmin(ctx context.Context, actor models.Actor, userID string) (*models.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	admin := true
	return s.commit(ctx, actionMakeAdmin, actor, u, s.restoreCascade(u, &admin))
}

// RemoveAdmin demotes an admin back to active. The ban policy is not re-run.
// It only leaves the admin state; a banned user stays banned.
func (s *ModerationService) RemoveAdmin(ctx context.Context, actor models.Actor, userID string) (*models.User, error) {
	if actor.ID == userID {
		return nil, ErrSelfDemotion
	}
	u, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.admins.IsAdmin(u) {
		moderationFailuresTotal.WithLabelValues(actionRemoveAdmin, "not_admin").Inc()
		return nil, ErrNotAdmin
	}
	if s.admins.IsAdminEmail(u.Email) {
		moderationFailuresTotal.WithLabelValues(actionRemoveAdmin, "configured_admin").Inc()
		return nil, ErrConfiguredAdmin
	}
	admin := false
	return s.commit(ctx, actionRemoveAdmin, actor, u, s.restoreCascade(u, &admin))
}

// restoreCascade returns u to the active state, optionally rewriting the
// admin flag.
func (s *ModerationService) restoreCascade(u *models.User, setAdmin *bool) *CascadeUpdate {
	return &CascadeUpdate{
		UserID:           u.ID,
		ExpectedRevision: u.Revision,
		At:               s.now().UTC(),
		User:             UserModerationPatch{SetAdmin: setAdmin},
		HideExperiences:  false,
	}
}

func (s *ModerationService) commit(ctx context.Context, action string, actor models.Actor, u *models.User, c *CascadeUpdate) (*models.User, error) {
	logger := log.WithFields(log.Fields{"action": action, "user": u.ID, "actor": actor.ID})

	if err := s.store.ApplyCascade(ctx, c); err != nil {
		reason := "backend"
		switch {
		case errors.Is(err, ErrRevisionConflict):
			reason = "conflict"
		case errors.Is(err, ErrUserNotFound):
			reason = "not_found"
		}
		moderationFailuresTotal.WithLabelValues(action, reason).Inc()
		logger.WithError(err).Error("moderation cascade failed")
		return nil, err
	}
	moderationActionsTotal.WithLabelValues(action).Inc()
	logger.Info("moderation cascade committed")

	updated, err := s.store.GetUser(ctx, u.ID)
	if err != nil {
		// The write is committed; report what was written.
		logger.WithError(err).Warn("failed to reload user after cascade")
		local := *u
		c.applyToUser(&local)
		return &local, nil
	}
	return updated, nil
}

// RunAutoBanSweep evaluates every user against fresh report aggregates and
// bans the non-admins at or above the threshold. Each ban is its own cascade;
// a failed one is recorded and the sweep moves on. When ctx ends mid-sweep the
// result so far is returned along with the context error.
func (s *ModerationService) RunAutoBanSweep(ctx context.Context, actor models.Actor) (*models.SweepResult, error) {
	started := time.Now()
	defer func() { autoBanSweepDuration.Observe(time.Since(started).Seconds()) }()

	threshold, err := s.settings.Threshold(ctx)
	if err != nil {
		return nil, err
	}
	snap, err := s.loadSnapshot(ctx)
	if err != nil {
		return nil, err
	}
	counts := AggregateReports(snap.reports, snap.experiences)

	result := &models.SweepResult{
		Threshold: threshold,
		Banned:    []string{},
		Failures:  map[string]string{},
	}
	for i := range snap.users {
		if err := ctx.Err(); err != nil {
			sort.Strings(result.Banned)
			log.WithError(err).WithField("banned", len(result.Banned)).Warn("auto-ban sweep interrupted")
			return result, err
		}
		u := &snap.users[i]
		result.Evaluated++

		isAdmin := s.admins.IsAdmin(u)
		total := counts[u.ID].TotalReports
		decision := EvaluateBanPolicy(total, isAdmin, threshold)
		if decision.Verdict == models.VerdictExempt {
			result.Exempt++
			continue
		}
		if decision.Verdict != models.VerdictAutoBan {
			continue
		}
		if u.IsBanned {
			result.AlreadyBanned++
			continue
		}

		reason := fmt.Sprintf("Auto-banned: %d reports (threshold %d)", total, threshold)
		if _, err := s.ban(ctx, actor, u, reason, true); err != nil {
			result.Failures[u.ID] = err.Error()
			continue
		}
		result.Banned = append(result.Banned, u.ID)
	}
	sort.Strings(result.Banned)

	log.WithFields(log.Fields{
		"threshold": threshold,
		"evaluated": result.Evaluated,
		"banned":    len(result.Banned),
		"failures":  len(result.Failures),
	}).Info("auto-ban sweep finished")
	return result, nil
}
