package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/eventsphere/backend/internal/middleware"
	"github.com/eventsphere/backend/internal/models"
	"github.com/eventsphere/backend/internal/services"
)

type ReportHandler struct {
	reports *services.ReportService
	timeout time.Duration
}

func NewReportHandler(reports *services.ReportService, timeout time.Duration) *ReportHandler {
	return &ReportHandler{reports: reports, timeout: timeout}
}

func (h *ReportHandler) FileReport(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	if actor.ID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req models.CreateReportRequest
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

	report, err := h.reports.FileReport(ctx, actor, &req)
	if err != nil {
		writeServiceError(w, "file_report", err, "Failed to file report")
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(report))
}

func (h *ReportHandler) ReportExperience(w http.ResponseWriter, r *http.Request) {
	actor := middleware.GetActor(r.Context())
	if actor.ID == "" {
		writeJSON(w, http.StatusUnauthorized, models.NewErrorResponse("Unauthorized"))
		return
	}

	var req models.ExperienceReportRequest
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

	exp, err := h.reports.ReportExperience(ctx, actor, chi.URLParam(r, "experienceId"), req.Reason)
	if err != nil {
		writeServiceError(w, "report_experience", err, "Failed to report experience")
		return
	}
	writeJSON(w, http.StatusCreated, models.NewSuccessResponse(exp))
}
