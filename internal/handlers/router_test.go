package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventsphere/backend/internal/middleware"
	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/internal/services"
)

const testSecret = "handler-test-secret"

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Errors  map[string]string `json:"errors"`
}

type testAPI struct {
	t       *testing.T
	store   *services.MemoryModerationStore
	handler http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	return newTestAPIWithAuth(t, middleware.JWTAuth(testSecret))
}

func newTestAPIWithAuth(t *testing.T, authenticate func(http.Handler) http.Handler) *testAPI {
	t.Helper()
	store := services.NewMemoryModerationStore()
	require.NoError(t, store.PutUser(models.User{ID: "admin", Email: "admin@example.com", IsAdmin: true, Role: models.RoleAdmin}))
	require.NoError(t, store.PutUser(models.User{ID: "u1", Email: "u1@example.com"}))
	require.NoError(t, store.PutUser(models.User{ID: "u2", Email: "u2@example.com"}))
	require.NoError(t, store.PutExperience(models.Experience{ID: "e1", UserID: "u1", Title: "Meetup"}))
	require.NoError(t, store.PutReport(models.Report{ID: "r1", ReporterID: "u1", Status: models.ReportStatusPending}))

	hash, err := services.HashPassword("operator-pass")
	require.NoError(t, err)
	operators := services.NewOperatorService(services.Operator{Email: "ops@example.com", PasswordHash: hash})

	actions := services.NewModerationActions(store, 3, []string{"ops@example.com"})
	h := NewRouter(RouterConfig{
		Actions:        actions,
		Authenticate:   authenticate,
		AuthHandler:    NewAuthHandler(operators, testSecret, time.Hour),
		AllowedOrigins: []string{"*"},
		RequestTimeout: 5 * time.Second,
	})
	return &testAPI{t: t, store: store, handler: h}
}

func (a *testAPI) token(actor models.Actor) string {
	a.t.Helper()
	tok, err := middleware.IssueToken(testSecret, actor, false, time.Hour)
	require.NoError(a.t, err)
	return tok
}

func (a *testAPI) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)

	var env envelope
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(a.t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

var (
	adminUser   = models.Actor{ID: "admin", Email: "admin@example.com"}
	regularUser = models.Actor{ID: "u2", Email: "u2@example.com"}
)

func TestRouter_Public(t *testing.T) {
	api := newTestAPI(t)

	t.Run("Should answer health checks", func(t *testing.T) {
		rec, _ := api.do(http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("Should expose prometheus metrics", func(t *testing.T) {
		rec, _ := api.do(http.MethodGet, "/metrics", "", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "go_goroutines")
	})

	t.Run("Should log operators in and accept their token on admin routes", func(t *testing.T) {
		rec, env := api.do(http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "ops@example.com", Password: "operator-pass"})
		require.Equal(t, http.StatusOK, rec.Code)

		var auth models.AuthResponse
		require.NoError(t, json.Unmarshal(env.Data, &auth))
		assert.Equal(t, "ops@example.com", auth.Actor.Email)

		rec, _ = api.do(http.MethodGet, "/api/admin/users", auth.Token, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Should reject bad operator credentials", func(t *testing.T) {
		rec, _ := api.do(http.MethodPost, "/api/auth/login", "", models.LoginRequest{Email: "ops@example.com", Password: "wrong"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRouter_AdminAccess(t *testing.T) {
	api := newTestAPI(t)

	t.Run("Should require a token", func(t *testing.T) {
		rec, _ := api.do(http.MethodGet, "/api/admin/users", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Should forbid non-admins", func(t *testing.T) {
		rec, _ := api.do(http.MethodPost, "/api/admin/users/u1/ban", api.token(regularUser), models.BanRequest{Reason: "x"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		u, err := api.store.GetUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.False(t, u.IsBanned)
	})
}

type stubVerifier map[string]*fbauth.Token

func (v stubVerifier) VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error) {
	if tok, ok := v[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("invalid token")
}

func TestRouter_FirebaseAdminEmail(t *testing.T) {
	verifier := stubVerifier{
		"verified": {UID: "ops-uid", Claims: map[string]interface{}{"email": "ops@example.com", "email_verified": true}},
		"spoofed":  {UID: "attacker-uid", Claims: map[string]interface{}{"email": "ops@example.com", "email_verified": false}},
	}
	api := newTestAPIWithAuth(t, middleware.FirebaseAuth(verifier))

	t.Run("Should grant admin rights to a verified configured e-mail", func(t *testing.T) {
		rec, _ := api.do(http.MethodGet, "/api/admin/users", "verified", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("Should not grant admin rights to an unverified copy of the address", func(t *testing.T) {
		rec, _ := api.do(http.MethodGet, "/api/admin/users", "spoofed", nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)

		rec, _ = api.do(http.MethodPost, "/api/admin/users/u1/ban", "spoofed", models.BanRequest{Reason: "x"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
		u, err := api.store.GetUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.False(t, u.IsBanned)
	})
}

func TestRouter_Moderation(t *testing.T) {
	api := newTestAPI(t)
	token := api.token(adminUser)

	t.Run("Should list users with their verdicts", func(t *testing.T) {
		rec, env := api.do(http.MethodGet, "/api/admin/users", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var views []models.UserModerationView
		require.NoError(t, json.Unmarshal(env.Data, &views))
		require.Len(t, views, 3)
		for _, v := range views {
			if v.User.ID == "admin" {
				assert.Equal(t, models.VerdictExempt, v.Decision.Verdict)
				assert.Nil(t, v.Decision.ReportsUntilBan)
			}
			if v.User.ID == "u1" {
				assert.Equal(t, 1, v.Reports.TotalReports)
				require.NotNil(t, v.Decision.ReportsUntilBan)
				assert.Equal(t, 2, *v.Decision.ReportsUntilBan)
			}
		}
	})

	t.Run("Should validate the ban reason", func(t *testing.T) {
		rec, env := api.do(http.MethodPost, "/api/admin/users/u1/ban", token, models.BanRequest{Reason: "  "})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, env.Errors, "reason")
	})

	t.Run("Should refuse to ban an admin", func(t *testing.T) {
		rec, env := api.do(http.MethodPost, "/api/admin/users/admin/ban", token, models.BanRequest{Reason: "x"})
		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Contains(t, env.Error, "Admins cannot be banned")
	})

	t.Run("Should return 404 for unknown users", func(t *testing.T) {
		rec, _ := api.do(http.MethodPost, "/api/admin/users/ghost/ban", token, models.BanRequest{Reason: "x"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		rec, _ = api.do(http.MethodGet, "/api/admin/users/ghost", token, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Should ban and unban with the cascade", func(t *testing.T) {
		rec, env := api.do(http.MethodPost, "/api/admin/users/u1/ban", token, models.BanRequest{Reason: "spam"})
		require.Equal(t, http.StatusOK, rec.Code)
		var banned models.User
		require.NoError(t, json.Unmarshal(env.Data, &banned))
		assert.True(t, banned.IsBanned)
		require.NotNil(t, banned.BannedByEmail)
		assert.Equal(t, adminUser.Email, *banned.BannedByEmail)

		rec, env = api.do(http.MethodGet, "/api/admin/users/u1", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var view models.UserModerationView
		require.NoError(t, json.Unmarshal(env.Data, &view))
		assert.Equal(t, models.StateBanned, view.Status.State)
		require.NotNil(t, view.Status.Ban)
		assert.Equal(t, "spam", view.Status.Ban.Reason)
		assert.Equal(t, 0, view.Reports.PendingReports)

		rec, _ = api.do(http.MethodPost, "/api/admin/users/u1/unban", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		exps, err := api.store.ListExperiences(context.Background())
		require.NoError(t, err)
		assert.False(t, exps[0].IsHidden)
	})

	t.Run("Should promote and demote", func(t *testing.T) {
		rec, _ := api.do(http.MethodPost, "/api/admin/users/u2/admin", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		u, err := api.store.GetUser(context.Background(), "u2")
		require.NoError(t, err)
		assert.True(t, u.IsAdmin)

		rec, _ = api.do(http.MethodDelete, "/api/admin/users/u2/admin", token, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		rec, _ = api.do(http.MethodDelete, "/api/admin/users/admin/admin", token, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		rec, _ = api.do(http.MethodDelete, "/api/admin/users/u2/admin", token, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})
}

func TestRouter_ReportsAndSweep(t *testing.T) {
	api := newTestAPI(t)
	adminToken := api.token(adminUser)
	userToken := api.token(regularUser)

	t.Run("Should file reports that feed the sweep", func(t *testing.T) {
		rec, _ := api.do(http.MethodPost, "/api/reports", userToken, models.CreateReportRequest{ReporterID: "u1", Reason: "spam"})
		require.Equal(t, http.StatusCreated, rec.Code)
		rec, _ = api.do(http.MethodPost, "/api/experiences/e1/reports", userToken, models.ExperienceReportRequest{Reason: "fake"})
		require.Equal(t, http.StatusCreated, rec.Code)

		rec, env := api.do(http.MethodPost, "/api/admin/moderation/sweep", adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var res models.SweepResult
		require.NoError(t, json.Unmarshal(env.Data, &res))
		assert.Equal(t, []string{"u1"}, res.Banned)

		u, err := api.store.GetUser(context.Background(), "u1")
		require.NoError(t, err)
		assert.True(t, u.IsBanned)
		assert.True(t, u.AutoBanned)
	})

	t.Run("Should reject self reports and unknown experiences", func(t *testing.T) {
		rec, _ := api.do(http.MethodPost, "/api/reports", userToken, models.CreateReportRequest{ReporterID: "u2", Reason: "me"})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		rec, _ = api.do(http.MethodPost, "/api/experiences/nope/reports", userToken, models.ExperienceReportRequest{Reason: "x"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouter_Settings(t *testing.T) {
	api := newTestAPI(t)
	token := api.token(adminUser)

	rec, env := api.do(http.MethodGet, "/api/admin/settings/moderation", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var settings models.ModerationSettings
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	assert.Equal(t, 3, settings.AutoBanReportThreshold)

	rec, _ = api.do(http.MethodPut, "/api/admin/settings/moderation", token, models.UpdateModerationSettingsRequest{AutoBanReportThreshold: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = api.do(http.MethodPut, "/api/admin/settings/moderation", token, models.UpdateModerationSettingsRequest{AutoBanReportThreshold: 1})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &settings))
	assert.Equal(t, 1, settings.AutoBanReportThreshold)
	assert.Equal(t, adminUser.ID, settings.UpdatedBy)
}
