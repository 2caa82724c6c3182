package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keystonepm/backoffice/internal/models"
	"github.com/keystonepm/backoffice/internal/services"
)

type LedgerHandler struct {
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewLedgerHandler(ledger *services.LedgerService) *LedgerHandler {
	return &LedgerHandler{
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

// PostEntry posts a single ledger entry
// @Summary Post ledger entry
// @Description Validate and insert one balanced-transaction leg
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param entry body services.NewEntry true "Entry to post"
// @Success 201 {object} models.LedgerEntry
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /ledger/entries [post]
func (h *LedgerHandler) PostEntry(w http.ResponseWriter, r *http.Request) {
	var req services.NewEntry
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	req.PostedBy = "user:" + currentUser(r)

	entry, err := h.ledger.PostEntry(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// PostDoubleEntry posts a balanced debit/credit pair
// @Summary Post double entry
// @Description Post a debit leg and matching credit leg atomically
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param entry body services.DoubleEntry true "Double entry to post"
// @Success 201 {object} models.EntryPair
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /ledger/double-entries [post]
func (h *LedgerHandler) PostDoubleEntry(w http.ResponseWriter, r *http.Request) {
	var req services.DoubleEntry
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}
	req.PostedBy = "user:" + currentUser(r)

	pair, err := h.ledger.PostDoubleEntry(r.Context(), req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pair)
}

// VoidEntry voids a posted entry
// @Summary Void ledger entry
// @Description Mark a POSTED entry VOID; admin only
// @Tags ledger
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Param request body object{reason=string} true "Void reason"
// @Success 200 {object} models.LedgerEntry
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /ledger/entries/{id}/void [post]
func (h *LedgerHandler) VoidEntry(w http.ResponseWriter, r *http.Request) {
	entryID := chi.URLParam(r, "id")

	var req struct {
		Reason string `json:"reason" validate:"required"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	entry, err := h.ledger.VoidLedgerEntry(r.Context(), entryID, req.Reason, "user:"+currentUser(r))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// GetEntry returns a single ledger entry
// @Summary Get ledger entry
// @Description Fetch one entry by id, including void metadata when VOID
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param id path string true "Entry ID"
// @Success 200 {object} models.LedgerEntry
// @Failure 404 {object} services.ErrorResponse
// @Router /ledger/entries/{id} [get]
func (h *LedgerHandler) GetEntry(w http.ResponseWriter, r *http.Request) {
	entry, err := h.ledger.GetEntry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// ListEntries lists ledger entries
// @Summary List ledger entries
// @Description List entries filtered by account, lease or status
// @Tags ledger
// @Produce json
// @Security BearerAuth
// @Param account query string false "Account code"
// @Param lease query int false "Lease ID"
// @Param status query string false "POSTED or VOID"
// @Success 200 {object} object{entries=[]models.LedgerEntry,count=int}
// @Router /ledger/entries [get]
func (h *LedgerHandler) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter := services.EntryFilter{
		AccountCode: r.URL.Query().Get("account"),
		Status:      models.EntryStatus(r.URL.Query().Get("status")),
	}
	if leaseStr := r.URL.Query().Get("lease"); leaseStr != "" {
		leaseID, err := strconv.ParseInt(leaseStr, 10, 64)
		if err != nil {
			services.SendErrorResponse(w, "Invalid lease id", http.StatusBadRequest, nil)
			return
		}
		filter.LeaseID = &leaseID
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = l
		}
	}

	entries, err := h.ledger.ListEntries(r.Context(), filter)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"count":   len(entries),
	})
}

// GetBalance returns an account balance
// @Summary Account balance
// @Description Derive the account balance from POSTED entries, optionally as of a date
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param code path string true "Account code"
// @Param asOf query string false "YYYY-MM-DD"
// @Success 200 {object} object{accountCode=string,balance=string}
// @Router /accounts/{code}/balance [get]
func (h *LedgerHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	var asOf *time.Time
	if asOfStr := r.URL.Query().Get("asOf"); asOfStr != "" {
		parsed, err := time.Parse("2006-01-02", asOfStr)
		if err != nil {
			services.SendErrorResponse(w, "Invalid asOf date, expected YYYY-MM-DD", http.StatusBadRequest, nil)
			return
		}
		// Include the whole closing day.
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
		asOf = &parsed
	}

	balance, err := h.ledger.GetAccountBalance(r.Context(), code, asOf)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accountCode": code,
		"balance":     balance.StringFixed(2),
	})
}
