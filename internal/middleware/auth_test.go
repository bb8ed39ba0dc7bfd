package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventsphere/backend/internal/models"
)

const testSecret = "test-secret"

func echoActor() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := GetActor(r.Context())
		w.Header().Set("X-User", actor.ID)
		w.Header().Set("X-Email", actor.Email)
		if HasAdminClaim(r.Context()) {
			w.Header().Set("X-Admin", "true")
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func serve(h http.Handler, authHeader string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	h := JWTAuth(testSecret)(echoActor())

	t.Run("Should accept a token it issued", func(t *testing.T) {
		token, err := IssueToken(testSecret, models.Actor{ID: "op", Email: "op@example.com"}, true, time.Hour)
		require.NoError(t, err)

		rec := serve(h, "Bearer "+token)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "op", rec.Header().Get("X-User"))
		assert.Equal(t, "op@example.com", rec.Header().Get("X-Email"))
		assert.Equal(t, "true", rec.Header().Get("X-Admin"))
	})

	t.Run("Should reject requests without a token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
		assert.Equal(t, http.StatusUnauthorized, serve(h, "Basic abc").Code)
	})

	t.Run("Should reject tokens signed with another secret", func(t *testing.T) {
		token, err := IssueToken("other", models.Actor{ID: "op"}, true, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+token).Code)
	})

	t.Run("Should reject expired tokens", func(t *testing.T) {
		token, err := IssueToken(testSecret, models.Actor{ID: "op"}, true, -time.Minute)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer "+token).Code)
	})
}

type fakeVerifier struct {
	tokens map[string]*fbauth.Token
}

func (f fakeVerifier) VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error) {
	tok, ok := f.tokens[idToken]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return tok, nil
}

func TestFirebaseAuth(t *testing.T) {
	verifier := fakeVerifier{tokens: map[string]*fbauth.Token{
		"good":       {UID: "uid-1", Claims: map[string]interface{}{"email": "u@example.com", "email_verified": true}},
		"admin":      {UID: "uid-2", Claims: map[string]interface{}{"email": "a@example.com", "email_verified": true, "admin": true}},
		"unverified": {UID: "uid-3", Claims: map[string]interface{}{"email": "boss@example.com", "email_verified": false}},
		"no-flag":    {UID: "uid-4", Claims: map[string]interface{}{"email": "boss@example.com"}},
	}}
	h := FirebaseAuth(verifier)(echoActor())

	t.Run("Should place uid and email in the context", func(t *testing.T) {
		rec := serve(h, "Bearer good")
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "uid-1", rec.Header().Get("X-User"))
		assert.Equal(t, "u@example.com", rec.Header().Get("X-Email"))
		assert.Empty(t, rec.Header().Get("X-Admin"))
	})

	t.Run("Should carry the admin custom claim", func(t *testing.T) {
		rec := serve(h, "Bearer admin")
		assert.Equal(t, "true", rec.Header().Get("X-Admin"))
	})

	t.Run("Should drop e-mail addresses that are not verified", func(t *testing.T) {
		for _, tok := range []string{"unverified", "no-flag"} {
			rec := serve(h, "Bearer "+tok)
			assert.Equal(t, http.StatusNoContent, rec.Code, tok)
			assert.NotEmpty(t, rec.Header().Get("X-User"), tok)
			assert.Empty(t, rec.Header().Get("X-Email"), tok)
		}
	})

	t.Run("Should reject unknown tokens", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(h, "Bearer bad").Code)
	})

	t.Run("Should answer 503 when no verifier is configured", func(t *testing.T) {
		rec := serve(FirebaseAuth(nil)(echoActor()), "Bearer good")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestRequireAdmin(t *testing.T) {
	calls := 0
	check := func(ctx context.Context, actor models.Actor) (bool, error) {
		calls++
		switch actor.ID {
		case "admin":
			return true, nil
		case "broken":
			return false, errors.New("store down")
		default:
			return false, nil
		}
	}
	h := RequireAdmin(check)(echoActor())

	run := func(actor models.Actor, claim bool) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if actor.ID != "" {
			req = req.WithContext(WithActor(req.Context(), actor, claim))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("Should let admins through", func(t *testing.T) {
		assert.Equal(t, http.StatusNoContent, run(models.Actor{ID: "admin"}, false))
	})

	t.Run("Should trust the admin claim without a lookup", func(t *testing.T) {
		before := calls
		assert.Equal(t, http.StatusNoContent, run(models.Actor{ID: "someone"}, true))
		assert.Equal(t, before, calls)
	})

	t.Run("Should forbid regular users", func(t *testing.T) {
		assert.Equal(t, http.StatusForbidden, run(models.Actor{ID: "user"}, false))
	})

	t.Run("Should require authentication", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, run(models.Actor{}, false))
	})

	t.Run("Should fail closed when the check errors", func(t *testing.T) {
		assert.Equal(t, http.StatusInternalServerError, run(models.Actor{ID: "broken"}, false))
	})
}
