package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"carmarket/backend/internal/model"
	"carmarket/backend/internal/service"
	"carmarket/backend/pkg/response"
)

// AdminHandler serves user administration. Routes are gated on the admin role.
type AdminHandler struct {
	userService    service.UserService
	rbacService    service.RBACService
	pager          Pager
	maxUploadBytes int64
}

func NewAdminHandler(userService service.UserService, rbacService service.RBACService, pager Pager, maxUploadBytes int64) *AdminHandler {
	return &AdminHandler{
		userService:    userService,
		rbacService:    rbacService,
		pager:          pager,
		maxUploadBytes: maxUploadBytes,
	}
}

type AdminUpdateUserRequest struct {
	Name  *string `json:"name" binding:"omitempty,max=150"`
	Email *string `json:"email" binding:"omitempty,email,max=150"`
}

type SetRolesRequest struct {
	Roles []string `json:"roles" binding:"required,min=1,dive,required"`
}

type SetPermissionsRequest struct {
	Permissions []string `json:"permissions" binding:"dive,required"`
}

type SetVerificationRequest struct {
	IsVerified *bool `json:"is_verified" binding:"required"`
}

func (h *AdminHandler) ListUsers(c *gin.Context) {
	h.listUsers(c, h.userService.List)
}

func (h *AdminHandler) ListTrashedUsers(c *gin.Context) {
	h.listUsers(c, h.userService.ListTrashed)
}

func (h *AdminHandler) listUsers(c *gin.Context, list func(context.Context, service.UserQuery) ([]model.User, int64, error)) {
	page, perPage := h.pager.parse(c)
	users, total, err := list(c.Request.Context(), service.UserQuery{
		Keyword: c.Query("q"),
		Page:    page,
		PerPage: perPage,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	paginated(c, users, page, perPage, total)
}

func (h *AdminHandler) ShowUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.Show(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *AdminHandler) UpdateUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req AdminUpdateUserRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.AdminUpdate(c.Request.Context(), id, req.Name, req.Email)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *AdminHandler) UploadUserImage(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	up, done, ok := formImage(c, "image", h.maxUploadBytes)
	if !ok {
		return
	}
	defer done()

	user, err := h.userService.UploadProfileImage(c.Request.Context(), id, up)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *AdminHandler) SetRoles(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req SetRolesRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.rbacService.SetRoles(c.Request.Context(), id, req.Roles)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *AdminHandler) SetPermissions(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req SetPermissionsRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.rbacService.SetPermissions(c.Request.Context(), id, req.Permissions)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *AdminHandler) SetVerification(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req SetVerificationRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.userService.SetVerification(c.Request.Context(), id, *req.IsVerified)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *AdminHandler) DestroyUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.userService.Destroy(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "User deleted.")
}

func (h *AdminHandler) RestoreUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	user, err := h.userService.Restore(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, user)
}

func (h *AdminHandler) ForceDeleteUser(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.userService.Force(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "User permanently deleted.")
}
