package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keystonepm/backoffice/internal/models"
	"github.com/keystonepm/backoffice/internal/services"
)

type AccountHandler struct {
	accounts  *services.AccountService
	validator *services.ValidationHelper
}

func NewAccountHandler(accounts *services.AccountService) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		validator: services.NewValidationHelper(),
	}
}

// ListAccounts lists the chart of accounts
// @Summary List accounts
// @Description List chart-of-accounts entries, active only unless includeInactive=true
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param includeInactive query bool false "Include deactivated accounts"
// @Success 200 {object} object{accounts=[]models.Account,count=int}
// @Router /accounts [get]
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	includeInactive := r.URL.Query().Get("includeInactive") == "true"

	accounts, err := h.accounts.ListAccounts(r.Context(), includeInactive)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"accounts": accounts,
		"count":    len(accounts),
	})
}

// GetAccount returns one account
// @Summary Get account
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param code path string true "Account code"
// @Success 200 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Router /accounts/{code} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

// CreateAccount adds an account to the chart
// @Summary Create account
// @Description Add a chart-of-accounts entry; admin only
// @Tags accounts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param account body models.Account true "Account"
// @Success 201 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.Account
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), &req)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

// DeactivateAccount retires an account
// @Summary Deactivate account
// @Description Flip the active flag off; the account and its entries remain
// @Tags accounts
// @Produce json
// @Security BearerAuth
// @Param code path string true "Account code"
// @Success 200 {object} object{message=string}
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{code} [delete]
func (h *AccountHandler) DeactivateAccount(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if err := h.accounts.DeactivateAccount(r.Context(), code); err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Account " + code + " deactivated"})
}
