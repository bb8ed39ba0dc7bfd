package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/eventsphere/backend/internal/middleware"
	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/internal/services"
)

// ModerationHandler serves the admin console's user management endpoints.
type ModerationHandler struct {
	moderation *services.ModerationService
	timeout    time.Duration
}

func NewModerationHandler(moderation *services.ModerationService, timeout time.Duration) *ModerationHandler {
	return &ModerationHandler{moderation: moderation, timeout: timeout}
}

func (h *ModerationHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	users, err := h.moderation.ListUsers(ctx)
	if err != nil {
		writeServiceError(w, "list_users", err, "Failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(users))
}

func (h *ModerationHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	view, err := h.moderation.GetUser(ctx, chi.URLParam(r, "userId"))
	if err != nil {
		writeServiceError(w, "get_user", err, "Failed to get user")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(view))
}

func (h *ModerationHandler) BanUser(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	userID := chi.URLParam(r, "userId")

	var req models.BanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.NewErrorResponse("Invalid request body"))
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, models.NewValidationErrorResponse(errs))
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := h.moderation.BanUser(ctx, actor, userID, req.Reason)
	if err != nil {
		h.writeActionError(w, r, "ban", userID, err, "Failed to ban user")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

func (h *ModerationHandler) UnbanUser(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, "unban", "Failed to unban user", h.moderation.UnbanUser)
}

func (h *ModerationHandler) MakeAdmin(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, "make_admin", "Failed to grant admin rights", h.moderation.MakeAdmin)
}

func (h *ModerationHandler) RemoveAdmin(w http.ResponseWriter, r *http.Request) {
	h.runAction(w, r, "remove_admin", "Failed to remove admin rights", h.moderation.RemoveAdmin)
}

func (h *ModerationHandler) RunSweep(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())

	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	res, err := h.moderation.RunAutoBanSweep(ctx, actor)
	if err != nil {
		if res == nil {
			writeServiceError(w, "sweep", err, "Failed to run auto-ban sweep")
			return
		}
		// Bans already committed stay committed; report them.
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		log.WithError(err).WithField("banned", len(res.Banned)).Warn("auto-ban sweep stopped early")
		writeJSON(w, status, models.NewPartialResponse("Auto-ban sweep stopped before finishing", res))
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(res))
}

type userAction func(ctx context.Context, actor models.Actor, userID string) (*models.User, error)

func (h *ModerationHandler) runAction(w http.ResponseWriter, r *http.Request, op, fallback string, action userAction) {
	actor := middleware.GetActor(r.Context())
	userID := chi.URLParam(r, "userId")

	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	user, err := action(ctx, actor, userID)
	if err != nil {
		h.writeActionError(w, r, op, userID, err, fallback)
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(user))
}

// writeActionError attaches the user's current state to revision conflicts so
// the console can refresh without another round trip.
func (h *ModerationHandler) writeActionError(w http.ResponseWriter, r *http.Request, op, userID string, err error, fallback string) {
	if !errors.Is(err, services.ErrRevisionConflict) {
		writeServiceError(w, op, err, fallback)
		return
	}

	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	current, getErr := h.moderation.GetUser(ctx, userID)
	if getErr != nil {
		log.WithError(getErr).WithField("user", userID).Warn("failed to load user after conflict")
		writeServiceError(w, op, err, fallback)
		return
	}
	writeJSON(w, http.StatusConflict, models.NewConflictResponse("User was modified concurrently, reload and try again", current))
}
