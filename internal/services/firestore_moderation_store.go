package services

import (
	"context"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/eventsphere/backend/internal/models"
)

const (
	fsUsers       = "users"
	fsExperiences = "experiences"
	fsReports     = "reports"
	fsSettings    = "settings"
)

// FirestoreModerationStore reads and writes the collections the web console
// uses. Cascades run in a Firestore transaction; audit timestamps are
// assigned by the server.
type FirestoreModerationStore struct {
	client *firestore.Client
}

func NewFirestoreModerationStore(ctx context.Context, app *firebase.App) (*FirestoreModerationStore, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firestore client")
	}
	log.Info("Firestore moderation store connected")
	return &FirestoreModerationStore{client: client}, nil
}

func (s *FirestoreModerationStore) Close(ctx context.Context) error {
	return s.client.Close()
}

func (s *FirestoreModerationStore) ListUsers(ctx context.Context) ([]models.User, error) {
	docs, err := s.client.Collection(fsUsers).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	out := make([]models.User, 0, len(docs))
	for _, d := range docs {
		var u models.User
		if err := d.DataTo(&u); err != nil {
			log.WithError(err).WithField("user", d.Ref.ID).Warn("skipping malformed user document")
			continue
		}
		u.ID = d.Ref.ID
		out = append(out, u)
	}
	return out, nil
}

func (s *FirestoreModerationStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	d, err := s.client.Collection(fsUsers).Doc(userID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "get user")
	}
	var u models.User
	if err := d.DataTo(&u); err != nil {
		return nil, errors.Wrap(err, "decode user")
	}
	u.ID = d.Ref.ID
	return &u, nil
}

func (s *FirestoreModerationStore) ListExperiences(ctx context.Context) ([]models.Experience, error) {
	docs, err := s.client.Collection(fsExperiences).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "list experiences")
	}
	out := make([]models.Experience, 0, len(docs))
	for _, d := range docs {
		var e models.Experience
		if err := d.DataTo(&e); err != nil {
			log.WithError(err).WithField("experience", d.Ref.ID).Warn("skipping malformed experience document")
			continue
		}
		e.ID = d.Ref.ID
		out = append(out, e)
	}
	return out, nil
}

func (s *FirestoreModerationStore) ListReports(ctx context.Context) ([]models.Report, error) {
	docs, err := s.client.Collection(fsReports).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.Wrap(err, "list reports")
	}
	out := make([]models.Report, 0, len(docs))
	for _, d := range docs {
		var r models.Report
		if err := d.DataTo(&r); err != nil {
			log.WithError(err).WithField("report", d.Ref.ID).Warn("skipping malformed report document")
			continue
		}
		r.ID = d.Ref.ID
		out = append(out, r)
	}
	return out, nil
}

func (s *FirestoreModerationStore) ApplyCascade(ctx context.Context, c *CascadeUpdate) error {
	userRef := s.client.Collection(fsUsers).Doc(c.UserID)
	expQuery := s.client.Collection(fsExperiences).Where("userId", "==", c.UserID)
	repQuery := s.client.Collection(fsReports).Where("reporterId", "==", c.UserID)

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(userRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return ErrUserNotFound
			}
			return err
		}
		var cur models.User
		if err := snap.DataTo(&cur); err != nil {
			return err
		}
		if cur.Revision != c.ExpectedRevision {
			return ErrRevisionConflict
		}

		// Firestore transactions require every read before the first write.
		expRefs, err := collectRefs(tx.Documents(expQuery), nil)
		if err != nil {
			return err
		}
		var repRefs []*firestore.DocumentRef
		if c.ResolveReports {
			repRefs, err = collectRefs(tx.Documents(repQuery), func(d *firestore.DocumentSnapshot) bool {
				var r models.Report
				if err := d.DataTo(&r); err != nil {
					return false
				}
				return r.IsPending()
			})
			if err != nil {
				return err
			}
		}

		if err := tx.Update(userRef, firestoreUserUpdates(c)); err != nil {
			return err
		}
		for _, ref := range expRefs {
			if err := tx.Update(ref, firestoreExperienceUpdates(c)); err != nil {
				return err
			}
		}
		for _, ref := range repRefs {
			if err := tx.Update(ref, []firestore.Update{
				{Path: "status", Value: string(models.ReportStatusResolved)},
				{Path: "resolution", Value: optionalString(c.Resolution)},
				{Path: "resolvedBy", Value: optionalString(c.ResolvedBy)},
				{Path: "resolvedAt", Value: firestore.ServerTimestamp},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrRevisionConflict) {
		return err
	}
	return errors.Wrap(err, "apply cascade")
}

func firestoreUserUpdates(c *CascadeUpdate) []firestore.Update {
	var bannedAt interface{}
	if c.User.IsBanned {
		bannedAt = firestore.ServerTimestamp
	}
	updates := []firestore.Update{
		{Path: "isBanned", Value: c.User.IsBanned},
		{Path: "banReason", Value: optionalString(c.User.BanReason)},
		{Path: "bannedAt", Value: bannedAt},
		{Path: "bannedBy", Value: optionalString(c.User.BannedBy)},
		{Path: "bannedByEmail", Value: optionalString(c.User.BannedByEmail)},
		{Path: "autoBanned", Value: c.User.AutoBanned},
		{Path: "revision", Value: firestore.Increment(1)},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
	if c.User.SetAdmin != nil {
		updates = append(updates,
			firestore.Update{Path: "isAdmin", Value: *c.User.SetAdmin},
			firestore.Update{Path: "role", Value: roleFor(*c.User.SetAdmin)},
		)
	}
	return updates
}

func firestoreExperienceUpdates(c *CascadeUpdate) []firestore.Update {
	if c.HideExperiences {
		return []firestore.Update{
			{Path: "isHidden", Value: true},
			{Path: "hiddenReason", Value: optionalString(c.HiddenReason)},
			{Path: "hiddenAt", Value: firestore.ServerTimestamp},
			{Path: "updatedAt", Value: firestore.ServerTimestamp},
		}
	}
	return []firestore.Update{
		{Path: "isHidden", Value: false},
		{Path: "hiddenReason", Value: nil},
		{Path: "hiddenAt", Value: nil},
		{Path: "updatedAt", Value: firestore.ServerTimestamp},
	}
}

func collectRefs(it *firestore.DocumentIterator, keep func(*firestore.DocumentSnapshot) bool) ([]*firestore.DocumentRef, error) {
	defer it.Stop()
	var refs []*firestore.DocumentRef
	for {
		d, err := it.Next()
		if err == iterator.Done {
			return refs, nil
		}
		if err != nil {
			return nil, err
		}
		if keep == nil || keep(d) {
			refs = append(refs, d.Ref)
		}
	}
}

func (s *FirestoreModerationStore) CreateReport(ctx context.Context, r *models.Report) error {
	_, err := s.client.Collection(fsReports).Doc(r.ID).Create(ctx, r)
	return errors.Wrap(err, "create report")
}

func (s *FirestoreModerationStore) AddExperienceReport(ctx context.Context, experienceID string, r models.ExperienceReport) (*models.Experience, error) {
	ref := s.client.Collection(fsExperiences).Doc(experienceID)
	_, err := ref.Update(ctx, []firestore.Update{
		{Path: "reports", Value: firestore.ArrayUnion(r)},
		{Path: "updatedAt", Value: r.CreatedAt},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrExperienceNotFound
		}
		return nil, errors.Wrap(err, "append experience report")
	}

	d, err := ref.Get(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reload experience")
	}
	var out models.Experience
	if err := d.DataTo(&out); err != nil {
		return nil, errors.Wrap(err, "decode experience")
	}
	out.ID = d.Ref.ID
	return &out, nil
}

func (s *FirestoreModerationStore) GetSettings(ctx context.Context) (*models.ModerationSettings, error) {
	d, err := s.client.Collection(fsSettings).Doc(settingsDocID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, ErrSettingsNotFound
		}
		return nil, errors.Wrap(err, "get settings")
	}
	var out models.ModerationSettings
	if err := d.DataTo(&out); err != nil {
		return nil, errors.Wrap(err, "decode settings")
	}
	return &out, nil
}

func (s *FirestoreModerationStore) SaveSettings(ctx context.Context, settings *models.ModerationSettings) error {
	_, err := s.client.Collection(fsSettings).Doc(settingsDocID).Set(ctx, settings)
	return errors.Wrap(err, "save settings")
}
