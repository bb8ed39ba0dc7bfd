package services

import (
	"context"
	"crypto/tls"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/eventsphere/backend/internal/models"
)

// settingsDocID is the id of the moderation settings document in every backend.
const settingsDocID = "moderation"

// MongoModerationStore keeps users, experiences and reports in MongoDB.
// Cascades run inside a multi-document transaction, which needs a replica
// set or Atlas cluster.
type MongoModerationStore struct {
	client         *mongo.Client
	db             *mongo.Database
	usersCol       *mongo.Collection
	experiencesCol *mongo.Collection
	reportsCol     *mongo.Collection
	settingsCol    *mongo.Collection
}

func NewMongoModerationStore(ctx context.Context, mongoURI, dbName string) (*MongoModerationStore, error) {
	opts := options.Client().ApplyURI(mongoURI)
	// Atlas occasionally fails TLS negotiation unless TLS 1.2 is forced.
	if strings.HasPrefix(mongoURI, "mongodb+srv://") {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
			MaxVersion: tls.VersionTLS12,
		})
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "mongo ping")
	}

	db := client.Database(dbName)
	s := &MongoModerationStore{
		client:         client,
		db:             db,
		usersCol:       db.Collection("users"),
		experiencesCol: db.Collection("experiences"),
		reportsCol:     db.Collection("reports"),
		settingsCol:    db.Collection("settings"),
	}

	// Best-effort indexes.
	_, _ = s.usersCol.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "email", Value: 1}},
	})
	_, _ = s.experiencesCol.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}},
	})
	_, _ = s.reportsCol.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "reporter_id", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
	})

	log.WithField("db", dbName).Info("MongoDB moderation store connected")
	return s, nil
}

func (s *MongoModerationStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoModerationStore) ListUsers(ctx context.Context) ([]models.User, error) {
	out := make([]models.User, 0)
	if err := findAll(ctx, s.usersCol, &out); err != nil {
		return nil, errors.Wrap(err, "list users")
	}
	return out, nil
}

func (s *MongoModerationStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	if err := s.usersCol.FindOne(ctx, bson.M{"_id": userID}).Decode(&u); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrUserNotFound
		}
		return nil, errors.Wrap(err, "get user")
	}
	return &u, nil
}

func (s *MongoModerationStore) ListExperiences(ctx context.Context) ([]models.Experience, error) {
	out := make([]models.Experience, 0)
	if err := findAll(ctx, s.experiencesCol, &out); err != nil {
		return nil, errors.Wrap(err, "list experiences")
	}
	return out, nil
}

func (s *MongoModerationStore) ListReports(ctx context.Context) ([]models.Report, error) {
	out := make([]models.Report, 0)
	if err := findAll(ctx, s.reportsCol, &out); err != nil {
		return nil, errors.Wrap(err, "list reports")
	}
	return out, nil
}

func findAll(ctx context.Context, col *mongo.Collection, out interface{}) error {
	cur, err := col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return err
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}

func (s *MongoModerationStore) ApplyCascade(ctx context.Context, c *CascadeUpdate) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return errors.Wrap(err, "start session")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, s.applyCascadeTx(sc, c)
	})
	if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrRevisionConflict) {
		return err
	}
	return errors.Wrap(err, "apply cascade")
}

func (s *MongoModerationStore) applyCascadeTx(ctx context.Context, c *CascadeUpdate) error {
	set := bson.M{
		"is_banned":       c.User.IsBanned,
		"ban_reason":      optionalString(c.User.BanReason),
		"banned_at":       c.User.BannedAt,
		"banned_by":       optionalString(c.User.BannedBy),
		"banned_by_email": optionalString(c.User.BannedByEmail),
		"auto_banned":     c.User.AutoBanned,
		"updated_at":      c.At,
	}
	if c.User.SetAdmin != nil {
		set["is_admin"] = *c.User.SetAdmin
		set["role"] = roleFor(*c.User.SetAdmin)
	}

	revisionFilter := bson.M{"revision": c.ExpectedRevision}
	if c.ExpectedRevision == 0 {
		// Documents written before revisions existed carry no field.
		revisionFilter = bson.M{"$or": bson.A{
			bson.M{"revision": 0},
			bson.M{"revision": bson.M{"$exists": false}},
		}}
	}
	filter := bson.M{"$and": bson.A{bson.M{"_id": c.UserID}, revisionFilter}}

	res, err := s.usersCol.UpdateOne(ctx, filter, bson.M{
		"$set": set,
		"$inc": bson.M{"revision": 1},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		n, err := s.usersCol.CountDocuments(ctx, bson.M{"_id": c.UserID})
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrUserNotFound
		}
		return ErrRevisionConflict
	}

	expSet := bson.M{"is_hidden": c.HideExperiences, "updated_at": c.At}
	if c.HideExperiences {
		expSet["hidden_reason"] = optionalString(c.HiddenReason)
		expSet["hidden_at"] = c.At
	} else {
		expSet["hidden_reason"] = nil
		expSet["hidden_at"] = nil
	}
	if _, err := s.experiencesCol.UpdateMany(ctx, bson.M{"user_id": c.UserID}, bson.M{"$set": expSet}); err != nil {
		return err
	}

	if !c.ResolveReports {
		return nil
	}
	_, err = s.reportsCol.UpdateMany(ctx,
		bson.M{
			"reporter_id": c.UserID,
			"status":      bson.M{"$in": bson.A{string(models.ReportStatusPending), "", nil}},
		},
		bson.M{"$set": bson.M{
			"status":      models.ReportStatusResolved,
			"resolution":  optionalString(c.Resolution),
			"resolved_by": optionalString(c.ResolvedBy),
			"resolved_at": c.At,
		}},
	)
	return err
}

func (s *MongoModerationStore) CreateReport(ctx context.Context, r *models.Report) error {
	_, err := s.reportsCol.InsertOne(ctx, r)
	return errors.Wrap(err, "insert report")
}

func (s *MongoModerationStore) AddExperienceReport(ctx context.Context, experienceID string, r models.ExperienceReport) (*models.Experience, error) {
	var out models.Experience
	err := s.experiencesCol.FindOneAndUpdate(ctx,
		bson.M{"_id": experienceID},
		bson.M{
			"$push": bson.M{"reports": r},
			"$set":  bson.M{"updated_at": r.CreatedAt},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&out)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrExperienceNotFound
		}
		return nil, errors.Wrap(err, "push experience report")
	}
	return &out, nil
}

func (s *MongoModerationStore) GetSettings(ctx context.Context) (*models.ModerationSettings, error) {
	var out models.ModerationSettings
	if err := s.settingsCol.FindOne(ctx, bson.M{"_id": settingsDocID}).Decode(&out); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrSettingsNotFound
		}
		return nil, errors.Wrap(err, "get settings")
	}
	return &out, nil
}

func (s *MongoModerationStore) SaveSettings(ctx context.Context, settings *models.ModerationSettings) error {
	_, err := s.settingsCol.UpdateOne(ctx,
		bson.M{"_id": settingsDocID},
		bson.M{"$set": settings},
		options.Update().SetUpsert(true),
	)
	return errors.Wrap(err, "save settings")
}
