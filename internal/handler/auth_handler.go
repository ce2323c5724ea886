package handler

import (
	"github.com/gin-gonic/gin"

	"carmarket/backend/internal/service"
	"carmarket/backend/pkg/response"
)

type AuthHandler struct {
	authService service.AuthService
	userService service.UserService
}

func NewAuthHandler(authService service.AuthService, userService service.UserService) *AuthHandler {
	return &AuthHandler{authService: authService, userService: userService}
}

type RegisterRequest struct {
	Name        string  `json:"name" binding:"required,max=150"`
	Email       string  `json:"email" binding:"required,email,max=150"`
	Password    string  `json:"password" binding:"required,min=6"`
	Role        string  `json:"role" binding:"omitempty,oneof=buyer seller"`
	FirstName   *string `json:"first_name" binding:"omitempty,max=100"`
	LastName    *string `json:"last_name" binding:"omitempty,max=100"`
	Phone       *string `json:"phone" binding:"omitempty,max=20"`
	CompanyName *string `json:"company_name" binding:"omitempty,max=255"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Register(c.Request.Context(), service.RegisterInput{
		Name:        req.Name,
		Email:       req.Email,
		Password:    req.Password,
		Role:        req.Role,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, res)
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	res, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, res)
}

// Logout revokes only the token used for this request.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authService.Logout(c.Request.Context(), principal(c).TokenID); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "Logged out.")
}

func (h *AuthHandler) Me(c *gin.Context) {
	me, err := h.userService.Me(c.Request.Context(), principal(c).ID())
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, me)
}
