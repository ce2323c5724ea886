package handler

import (
	"github.com/gin-gonic/gin"

	"carmarket/backend/internal/service"
	"carmarket/backend/pkg/optional"
	"carmarket/backend/pkg/response"
)

type ProfileHandler struct {
	authService    service.AuthService
	userService    service.UserService
	maxUploadBytes int64
}

func NewProfileHandler(authService service.AuthService, userService service.UserService, maxUploadBytes int64) *ProfileHandler {
	return &ProfileHandler{authService: authService, userService: userService, maxUploadBytes: maxUploadBytes}
}

// UpdateProfileRequest distinguishes an absent field from an explicit null.
type UpdateProfileRequest struct {
	Name        optional.Field[string] `json:"name" binding:"omitempty,max=150"`
	Email       optional.Field[string] `json:"email" binding:"omitempty,email,max=150"`
	FirstName   optional.Field[string] `json:"first_name" binding:"omitempty,max=100"`
	LastName    optional.Field[string] `json:"last_name" binding:"omitempty,max=100"`
	Phone       optional.Field[string] `json:"phone" binding:"omitempty,max=20"`
	Bio         optional.Field[string] `json:"bio" binding:"omitempty,max=500"`
	Address     optional.Field[string] `json:"address" binding:"omitempty,max=255"`
	City        optional.Field[string] `json:"city" binding:"omitempty,max=100"`
	State       optional.Field[string] `json:"state" binding:"omitempty,max=100"`
	PostalCode  optional.Field[string] `json:"postal_code" binding:"omitempty,max=20"`
	Country     optional.Field[string] `json:"country" binding:"omitempty,max=100"`
	DateOfBirth optional.Field[string] `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Gender      optional.Field[string] `json:"gender" binding:"omitempty,oneof=male female other"`
	CompanyName optional.Field[string] `json:"company_name" binding:"omitempty,max=255"`
}

func (r UpdateProfileRequest) changes() service.ProfileChanges {
	return service.ProfileChanges{
		Name:        r.Name,
		Email:       r.Email,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Phone:       r.Phone,
		Bio:         r.Bio,
		Address:     r.Address,
		City:        r.City,
		State:       r.State,
		PostalCode:  r.PostalCode,
		Country:     r.Country,
		DateOfBirth: r.DateOfBirth,
		Gender:      r.Gender,
		CompanyName: r.CompanyName,
	}
}

type ChangePasswordRequest struct {
	CurrentPassword      string `json:"current_password" binding:"required"`
	Password             string `json:"password" binding:"required,min=6"`
	PasswordConfirmation string `json:"password_confirmation" binding:"required,eqfield=Password"`
}

func (h *ProfileHandler) Show(c *gin.Context) {
	user, err := h.userService.Profile(c.Request.Context(), principal(c).ID())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.UpdateProfile(c.Request.Context(), principal(c).ID(), req.changes())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *ProfileHandler) ChangePassword(c *gin.Context) {
	var req ChangePasswordRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.authService.ChangePassword(c.Request.Context(), principal(c).ID(), req.CurrentPassword, req.Password); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "Password updated.")
}

func (h *ProfileHandler) UploadImage(c *gin.Context) {
	up, done, ok := formImage(c, "image", h.maxUploadBytes)
	if !ok {
		return
	}
	defer done()

	user, err := h.userService.UploadProfileImage(c.Request.Context(), principal(c).ID(), up)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *ProfileHandler) DeleteImage(c *gin.Context) {
	user, err := h.userService.DeleteProfileImage(c.Request.Context(), principal(c).ID())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}
