package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/eventsphere/backend/internal/middleware"
	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/internal/services"
)

type SettingsHandler struct {
	settings *services.SettingsService
	timeout  time.Duration
}

func NewSettingsHandler(settings *services.SettingsService, timeout time.Duration) *SettingsHandler {
	return &SettingsHandler{settings: settings, timeout: timeout}
}

func (h *SettingsHandler) GetModeration(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), h.timeout)
	defer cancel()

	settings, err := h.settings.Get(ctx)
	if err != nil {
		writeServiceError(w, "get_settings", err, "Failed to load moderation settings")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(settings))
}

func (h *SettingsHandler) UpdateModeration(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateModerationSettingsRequest
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

	settings, err := h.settings.Update(ctx, middleware.GetActor(r.Context()), req.AutoBanReportThreshold)
	if err != nil {
		writeServiceError(w, "update_settings", err, "Failed to update moderation settings")
		return
	}
	writeJSON(w, http.StatusOK, models.NewSuccessResponse(settings))
}
