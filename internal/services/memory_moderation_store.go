package services

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/internal/storage"
)

const memorySnapshotFile = "moderation.json"

// MemoryModerationStore keeps all collections in maps. When backed by a
// JSONStore every write persists the full snapshot before it becomes
// visible, so a failed write leaves memory untouched.
type MemoryModerationStore struct {
	mu          sync.RWMutex
	users       map[string]*models.User
	experiences map[string]*models.Experience
	reports     map[string]*models.Report
	settings    *models.ModerationSettings

	persist *storage.JSONStore
}

type memorySnapshot struct {
	Users       []models.User              `json:"users"`
	Experiences []models.Experience        `json:"experiences"`
	Reports     []models.Report            `json:"reports"`
	Settings    *models.ModerationSettings `json:"settings,omitempty"`
}

func NewMemoryModerationStore() *MemoryModerationStore {
	return &MemoryModerationStore{
		users:       make(map[string]*models.User),
		experiences: make(map[string]*models.Experience),
		reports:     make(map[string]*models.Report),
	}
}

// NewPersistentModerationStore loads the snapshot in dataDir, if any, and
// persists every subsequent write there.
func NewPersistentModerationStore(dataDir string) (*MemoryModerationStore, error) {
	js, err := storage.NewJSONStore(dataDir, memorySnapshotFile)
	if err != nil {
		return nil, err
	}

	s := NewMemoryModerationStore()
	s.persist = js

	var snap memorySnapshot
	found, err := js.Load(&snap)
	if err != nil {
		return nil, err
	}
	if !found {
		log.WithField("path", js.Path()).Info("no moderation snapshot yet, starting empty")
		return s, nil
	}

	s.restore(&snap)
	log.WithFields(log.Fields{
		"path":        js.Path(),
		"users":       len(snap.Users),
		"experiences": len(snap.Experiences),
		"reports":     len(snap.Reports),
	}).Info("loaded moderation snapshot")
	return s, nil
}

func (s *MemoryModerationStore) restore(snap *memorySnapshot) {
	for i := range snap.Users {
		u := snap.Users[i]
		s.users[u.ID] = &u
	}
	for i := range snap.Experiences {
		e := snap.Experiences[i].Clone()
		s.experiences[e.ID] = &e
	}
	for i := range snap.Reports {
		r := snap.Reports[i]
		s.reports[r.ID] = &r
	}
	s.settings = snap.Settings
}

// PutUser inserts or replaces a user, used for seeding.
func (s *MemoryModerationStore) PutUser(u models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(func(st *memoryState) { st.users[u.ID] = &u })
}

// PutExperience inserts or replaces an experience, used for seeding.
func (s *MemoryModerationStore) PutExperience(e models.Experience) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := e.Clone()
	return s.commit(func(st *memoryState) { st.experiences[c.ID] = &c })
}

// PutReport inserts or replaces a report, used for seeding.
func (s *MemoryModerationStore) PutReport(r models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commit(func(st *memoryState) { st.reports[r.ID] = &r })
}

func (s *MemoryModerationStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryModerationStore) GetUser(ctx context.Context, userID string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *MemoryModerationStore) ListExperiences(ctx context.Context) ([]models.Experience, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Experience, 0, len(s.experiences))
	for _, e := range s.experiences {
		out = append(out, e.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryModerationStore) ListReports(ctx context.Context) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Report, 0, len(s.reports))
	for _, r := range s.reports {
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryModerationStore) ApplyCascade(ctx context.Context, c *CascadeUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.users[c.UserID]
	if !ok {
		return ErrUserNotFound
	}
	if cur.Revision != c.ExpectedRevision {
		return ErrRevisionConflict
	}

	user := *cur
	c.applyToUser(&user)

	return s.commit(func(st *memoryState) {
		st.users[user.ID] = &user
		for id, e := range st.experiences {
			if e.UserID != c.UserID {
				continue
			}
			next := e.Clone()
			c.applyToExperience(&next)
			st.experiences[id] = &next
		}
		if !c.ResolveReports {
			return
		}
		for id, r := range st.reports {
			if r.ReporterID != c.UserID || !r.IsPending() {
				continue
			}
			next := *r
			c.applyToReport(&next)
			st.reports[id] = &next
		}
	})
}

func (s *MemoryModerationStore) CreateReport(ctx context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := *r
	return s.commit(func(st *memoryState) { st.reports[report.ID] = &report })
}

func (s *MemoryModerationStore) AddExperienceReport(ctx context.Context, experienceID string, r models.ExperienceReport) (*models.Experience, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.experiences[experienceID]
	if !ok {
		return nil, ErrExperienceNotFound
	}
	next := cur.Clone()
	next.Reports = append(next.Reports, r)
	next.UpdatedAt = r.CreatedAt

	if err := s.commit(func(st *memoryState) { st.experiences[next.ID] = &next }); err != nil {
		return nil, err
	}
	out := next.Clone()
	return &out, nil
}

func (s *MemoryModerationStore) GetSettings(ctx context.Context) (*models.ModerationSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.settings == nil {
		return nil, ErrSettingsNotFound
	}
	out := *s.settings
	return &out, nil
}

func (s *MemoryModerationStore) SaveSettings(ctx context.Context, settings *models.ModerationSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := *settings
	return s.commit(func(st *memoryState) { st.settings = &next })
}

// memoryState is a shallow copy of the maps a write is staged on.
type memoryState struct {
	users       map[string]*models.User
	experiences map[string]*models.Experience
	reports     map[string]*models.Report
	settings    *models.ModerationSettings
}

// commit stages mutate on copied maps, persists the result and only then
// swaps it in. Callers hold s.mu.
func (s *MemoryModerationStore) commit(mutate func(st *memoryState)) error {
	st := &memoryState{
		users:       make(map[string]*models.User, len(s.users)),
		experiences: make(map[string]*models.Experience, len(s.experiences)),
		reports:     make(map[string]*models.Report, len(s.reports)),
		settings:    s.settings,
	}
	for k, v := range s.users {
		st.users[k] = v
	}
	for k, v := range s.experiences {
		st.experiences[k] = v
	}
	for k, v := range s.reports {
		st.reports[k] = v
	}

	mutate(st)

	if s.persist != nil {
		if err := s.persist.Save(st.snapshot()); err != nil {
			return errors.Wrap(err, "persist moderation snapshot")
		}
	}

	s.users = st.users
	s.experiences = st.experiences
	s.reports = st.reports
	s.settings = st.settings
	return nil
}

func (st *memoryState) snapshot() *memorySnapshot {
	snap := &memorySnapshot{
		Users:       make([]models.User, 0, len(st.users)),
		Experiences: make([]models.Experience, 0, len(st.experiences)),
		Reports:     make([]models.Report, 0, len(st.reports)),
		Settings:    st.settings,
	}
	for _, u := range st.users {
		snap.Users = append(snap.Users, *u)
	}
	for _, e := range st.experiences {
		snap.Experiences = append(snap.Experiences, *e)
	}
	for _, r := range st.reports {
		snap.Reports = append(snap.Reports, *r)
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].ID < snap.Users[j].ID })
	sort.Slice(snap.Experiences, func(i, j int) bool { return snap.Experiences[i].ID < snap.Experiences[j].ID })
	sort.Slice(snap.Reports, func(i, j int) bool { return snap.Reports[i].ID < snap.Reports[j].ID })
	return snap
}
