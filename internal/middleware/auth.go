package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	log "github.com/sirupsen/logrus"

	"github.com/eventsphere/backend/internal/models"
)

type contextKey string

const (
	UserIDKey     contextKey = "userID"
	UserEmailKey  contextKey = "userEmail"
	AdminClaimKey contextKey = "adminClaim"
)

// JWTAuth validates HS256 tokens issued by IssueToken.
func JWTAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenString, ok := bearerToken(w, r)
			if !ok {
				return
			}

			token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(jwtSecret), nil
			})
			if err != nil || !token.Valid {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid token claims"))
				return
			}

			userID, ok := claims["user_id"].(string)
			if !ok || userID == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid user ID in token"))
				return
			}
			email, _ := claims["email"].(string)
			admin, _ := claims["admin"].(bool)

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), userID, email, admin)))
		})
	}
}

// IssueToken signs a token for actor that JWTAuth accepts.
func IssueToken(jwtSecret string, actor models.Actor, admin bool, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": actor.ID,
		"email":   actor.Email,
		"admin":   admin,
		"exp":     now.Add(ttl).Unix(),
		"iat":     now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(jwtSecret))
}

// AdminChecker decides whether the authenticated actor may use admin routes.
type AdminChecker func(ctx context.Context, actor models.Actor) (bool, error)

// RequireAdmin lets a request through when the token carries the admin claim
// or check confirms the actor is an admin.
func RequireAdmin(check AdminChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := GetActor(r.Context())
			if actor.ID == "" {
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
				return
			}
			if HasAdminClaim(r.Context()) {
				next.ServeHTTP(w, r)
				return
			}

			ok, err := check(r.Context(), actor)
			if err != nil {
				log.WithError(err).WithField("user", actor.ID).Error("admin check failed")
				writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to verify admin rights"))
				return
			}
			if !ok {
				writeJSON(w, http.StatusForbidden, models.NewErrorResponse("Admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Authorization header required"))
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid authorization header format"))
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func withIdentity(ctx context.Context, userID, email string, admin bool) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, userID)
	ctx = context.WithValue(ctx, UserEmailKey, email)
	return context.WithValue(ctx, AdminClaimKey, admin)
}

// WithActor is used by tests and internal callers to attach an identity.
func WithActor(ctx context.Context, actor models.Actor, admin bool) context.Context {
	return withIdentity(ctx, actor.ID, actor.Email, admin)
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	userID, ok := ctx.Value(UserIDKey).(string)
	if !ok {
		return ""
	}
	return userID
}

func GetUserEmail(ctx context.Context) string {
	email, _ := ctx.Value(UserEmailKey).(string)
	return email
}

func HasAdminClaim(ctx context.Context) bool {
	admin, _ := ctx.Value(AdminClaimKey).(bool)
	return admin
}

func GetActor(ctx context.Context) models.Actor {
	return models.Actor{ID: GetUserID(ctx), Email: GetUserEmail(ctx)}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}
