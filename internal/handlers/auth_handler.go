package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/eventsphere/backend/internal/middleware"
	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/internal/services"
)

// AuthHandler issues console tokens for operator accounts when the server
// runs with AUTH_MODE=jwt.
type AuthHandler struct {
	operators     *services.OperatorService
	jwtSecret     string
	jwtExpiration time.Duration
}

func NewAuthHandler(operators *services.OperatorService, jwtSecret string, jwtExpiration time.Duration) *AuthHandler {
	return &AuthHandler{
		operators:     operators,
		jwtSecret:     jwtSecret,
		jwtExpiration: jwtExpiration,
	}
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	actor, err := h.operators.Login(&req)
	if err != nil {
		if errors.Is(err, services.ErrOperatorNotFound) || errors.Is(err, services.ErrInvalidPassword) {
			writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Invalid email or password"))
			return
		}
		log.WithError(err).Error("operator login failed")
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to login"))
		return
	}

	// Operators are always admins.
	token, err := middleware.IssueToken(h.jwtSecret, *actor, true, h.jwtExpiration)
	if err != nil {
		log.WithError(err).Error("failed to sign token")
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse("Failed to generate token"))
		return
	}

	writeJSON(w, http.StatusOK, models.NewSuccessResponse(models.AuthResponse{
		Token: token,
		Actor: *actor,
	}))
}
