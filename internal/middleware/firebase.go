package middleware

import (
	"context"
	"net/http"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"github.com/eventsphere/backend/internal/models"
)

type FirebaseConfig struct {
	ProjectID       string
	CredentialsJSON string
}

// NewFirebaseApp initialises the Admin SDK. Without explicit credentials it
// falls back to Application Default Credentials.
func NewFirebaseApp(ctx context.Context, cfg FirebaseConfig) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	var conf *firebase.Config
	if cfg.ProjectID != "" {
		conf = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, conf, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "firebase app")
	}
	return app, nil
}

func NewFirebaseAuthClient(ctx context.Context, app *firebase.App) (*fbauth.Client, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "firebase auth client")
	}
	return client, nil
}

// TokenVerifier is the part of the Firebase Auth client the middleware uses.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseAuth verifies Firebase ID tokens and stores the UID, the verified
// e-mail and the admin custom claim in the request context.
func FirebaseAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				writeJSON(w, http.StatusServiceUnavailable, models.NewErrorResponse("Authentication is not configured"))
				return
			}
			idToken, ok := bearerToken(w, r)
			if !ok {
				return
			}

			token, err := verifier.VerifyIDToken(r.Context(), idToken)
			if err != nil {
				log.WithError(err).Debug("firebase token rejected")
				writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid or expired token"))
				return
			}

			// Admin rights can follow the e-mail, so an unverified address is
			// dropped rather than trusted.
			var email string
			if verified, _ := token.Claims["email_verified"].(bool); verified {
				email, _ = token.Claims["email"].(string)
			}
			admin, _ := token.Claims["admin"].(bool)
			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), token.UID, email, admin)))
		})
	}
}
