package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keystonepm/backoffice/internal/services"
)

type ReconciliationHandler struct {
	recon     *services.ReconciliationService
	validator *services.ValidationHelper
}

func NewReconciliationHandler(recon *services.ReconciliationService) *ReconciliationHandler {
	return &ReconciliationHandler{
		recon:     recon,
		validator: services.NewValidationHelper(),
	}
}

// CreateReconciliation opens a matching session
// @Summary Create reconciliation
// @Description Open a bank-statement matching session for an account
// @Tags reconciliation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{accountCode=string,statementDate=string} true "Account and statement date (YYYY-MM-DD)"
// @Success 201 {object} models.Reconciliation
// @Failure 400 {object} services.ErrorResponse
// @Router /reconciliations [post]
func (h *ReconciliationHandler) CreateReconciliation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		AccountCode   string `json:"accountCode" validate:"required"`
		StatementDate string `json:"statementDate" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	statementDate, err := time.Parse("2006-01-02", req.StatementDate)
	if err != nil {
		services.SendErrorResponse(w, "Invalid statementDate, expected YYYY-MM-DD", http.StatusBadRequest, nil)
		return
	}

	rec, err := h.recon.CreateReconciliation(r.Context(), req.AccountCode, statementDate, "user:"+currentUser(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// GetReconciliation returns a session with its lines
// @Summary Get reconciliation
// @Tags reconciliation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reconciliation ID"
// @Success 200 {object} object{reconciliation=models.Reconciliation,lines=[]models.ReconciliationLine}
// @Failure 404 {object} services.ErrorResponse
// @Router /reconciliations/{id} [get]
func (h *ReconciliationHandler) GetReconciliation(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.recon.GetReconciliation(r.Context(), id)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	lines, err := h.recon.Lines(r.Context(), id)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"reconciliation": rec,
		"lines":          lines,
	})
}

// ImportStatement uploads statement lines
// @Summary Import bank statement
// @Description Upload statement lines as CSV (date, amount, description, reference)
// @Tags reconciliation
// @Accept text/csv
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reconciliation ID"
// @Success 201 {object} object{imported=int,lines=[]models.ReconciliationLine}
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /reconciliations/{id}/statement [post]
func (h *ReconciliationHandler) ImportStatement(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	r.Body = http.MaxBytesReader(w, r.Body, 5_242_880)

	lines, err := h.recon.ImportStatement(r.Context(), id, r.Body)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"imported": len(lines),
		"lines":    lines,
	})
}

// MatchLine links a statement line to a ledger entry
// @Summary Match statement line
// @Tags reconciliation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reconciliation ID"
// @Param lineId path string true "Line ID"
// @Param request body object{ledgerEntryId=string} true "Ledger entry to match"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /reconciliations/{id}/lines/{lineId}/match [post]
func (h *ReconciliationHandler) MatchLine(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LedgerEntryID string `json:"ledgerEntryId" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	err := h.recon.MatchLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId"), req.LedgerEntryID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Line matched"})
}

// ExcludeLine marks a statement line out of scope
// @Summary Exclude statement line
// @Tags reconciliation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reconciliation ID"
// @Param lineId path string true "Line ID"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /reconciliations/{id}/lines/{lineId}/exclude [post]
func (h *ReconciliationHandler) ExcludeLine(w http.ResponseWriter, r *http.Request) {
	err := h.recon.ExcludeLine(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lineId"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Line excluded"})
}

// Finalize closes a session
// @Summary Finalize reconciliation
// @Description Close the session; every line must be MATCHED or EXCLUDED
// @Tags reconciliation
// @Produce json
// @Security BearerAuth
// @Param id path string true "Reconciliation ID"
// @Success 200 {object} models.Reconciliation
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /reconciliations/{id}/finalize [post]
func (h *ReconciliationHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	rec, err := h.recon.Finalize(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
