package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/keystonepm/backoffice/internal/services"
)

type SchedulerHandler struct {
	scheduler *services.SchedulerService
}

func NewSchedulerHandler(scheduler *services.SchedulerService) *SchedulerHandler {
	return &SchedulerHandler{scheduler: scheduler}
}

// RunDailyCharges triggers the recurring-charge batch
// @Summary Run daily charges
// @Description Evaluate active scheduled charges and post the due ones. Idempotent per calendar month.
// @Tags cron
// @Produce json
// @Param X-Cron-Secret header string true "Shared cron secret"
// @Param date query string false "Backfill date, YYYY-MM-DD, today or earlier (defaults to today)"
// @Success 200 {object} models.CronLog
// @Failure 400 {object} services.ErrorResponse
// @Failure 500 {object} services.ErrorResponse
// @Router /cron/daily-charges [post]
func (h *SchedulerHandler) RunDailyCharges(w http.ResponseWriter, r *http.Request) {
	// The date override exists to backfill missed runs. Charges for a period
	// must never post before that period's charge day arrives, so anything
	// past today is rejected.
	now := time.Now()
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			services.SendErrorResponse(w, "Invalid date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
			return
		}
		y, m, d := now.Date()
		endOfToday := time.Date(y, m, d, 23, 59, 59, 0, now.Location())
		if parsed.After(endOfToday) {
			services.SendErrorResponse(w, "Date cannot be in the future", http.StatusBadRequest, nil)
			return
		}
		now = parsed
	}

	run, err := h.scheduler.RunDailyCharges(r.Context(), now)
	if err != nil {
		// The run record carries the failure detail; return it with the error status.
		writeJSON(w, http.StatusInternalServerError, run)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// RecentRuns lists recent batch runs
// @Summary Recent cron runs
// @Tags cron
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max rows (default 20)"
// @Success 200 {object} object{runs=[]models.CronLog}
// @Router /cron/runs [get]
func (h *SchedulerHandler) RecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, _ = strconv.Atoi(limitStr)
	}

	runs, err := h.scheduler.RecentRuns(r.Context(), limit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
