package handlers

import (
	"net/http"

	"github.com/keystonepm/backoffice/internal/services"
)

type UserHandler struct {
	auth      *services.AuthService
	validator *services.ValidationHelper
}

func NewUserHandler(auth *services.AuthService) *UserHandler {
	return &UserHandler{
		auth:      auth,
		validator: services.NewValidationHelper(),
	}
}

// CreateUser provisions a staff account
// @Summary Create staff user
// @Description Provision a back-office user; admin only
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body object{email=string,password=string,role=string} true "New user"
// @Success 201 {object} models.User
// @Failure 400 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /users [post]
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=8"`
		Role     string `json:"role" validate:"required,oneof=ADMIN STAFF"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	user, err := h.auth.CreateUser(r.Context(), req.Email, req.Password, req.Role)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}
