package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/internal/services"
)

// defaultRequestTimeout applies when the router is built without a timeout.
const defaultRequestTimeout = 20 * time.Second

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Warn("failed to encode response")
	}
}

func contextWithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = defaultRequestTimeout
	}
	return context.WithTimeout(parent, d)
}

// writeServiceError maps service sentinels to status codes. Anything unknown
// is logged and reported as a 500 with fallback as the message.
func writeServiceError(w http.ResponseWriter, op string, err error, fallback string) {
	switch {
	case errors.Is(err, services.ErrUserNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("User not found"))
	case errors.Is(err, services.ErrExperienceNotFound):
		writeJSON(w, http.StatusNotFound, models.NewErrorResponse("Experience not found"))
	case errors.Is(err, services.ErrCannotBanAdmin):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("Admins cannot be banned. Remove admin rights first."))
	case errors.Is(err, services.ErrConfiguredAdmin):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("This admin is configured by e-mail and cannot be demoted here"))
	case errors.Is(err, services.ErrNotAdmin):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("User is not an admin"))
	case errors.Is(err, services.ErrRevisionConflict):
		writeJSON(w, http.StatusConflict, models.NewErrorResponse("User was modified concurrently, reload and try again"))
	case errors.Is(err, services.ErrSelfDemotion):
		writeJSON(w, http.StatusUnprocessableEntity, models.NewErrorResponse("You cannot remove your own admin rights"))
	case errors.Is(err, services.ErrSelfReport):
		writeJSON(w, http.StatusUnprocessableEntity, models.NewErrorResponse("You cannot report yourself"))
	case errors.Is(err, services.ErrInvalidThreshold):
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Threshold must be at least 1"))
	case errors.Is(err, context.DeadlineExceeded):
		log.WithError(err).WithField("op", op).Error("request timed out")
		writeJSON(w, http.StatusGatewayTimeout, models.NewErrorResponse("Request timed out"))
	default:
		log.WithError(err).WithField("op", op).Error("service error")
		writeJSON(w, http.StatusInternalServerError, models.NewErrorResponse(fallback))
	}
}
