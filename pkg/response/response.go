package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type APIResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    interface{}       `json:"data,omitempty"`
	Meta    *PageMeta         `json:"meta,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// PageMeta describes one page of a list endpoint.
type PageMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
}

// NewPageMeta derives last_page from the total row count.
func NewPageMeta(page, perPage int, total int64) *PageMeta {
	last := 1
	if perPage > 0 && total > 0 {
		last = int((total + int64(perPage) - 1) / int64(perPage))
	}
	return &PageMeta{CurrentPage: page, PerPage: perPage, Total: total, LastPage: last}
}

func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, APIResponse{Code: 0, Message: "ok", Data: data})
}

func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, APIResponse{Code: 0, Message: "created", Data: data})
}

// Message answers 200 with a message and no payload.
func Message(c *gin.Context, message string) {
	c.JSON(http.StatusOK, APIResponse{Code: 0, Message: message})
}

func Paginated(c *gin.Context, data interface{}, meta *PageMeta) {
	c.JSON(http.StatusOK, APIResponse{Code: 0, Message: "ok", Data: data, Meta: meta})
}

func Error(c *gin.Context, httpStatus int, code int, message string) {
	c.JSON(httpStatus, APIResponse{Code: code, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, 400, message)
}

func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, 401, message)
}

func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, 403, message)
}

func NotFound(c *gin.Context, message string) {
	Error(c, http.StatusNotFound, 404, message)
}

func Conflict(c *gin.Context, message string) {
	Error(c, http.StatusConflict, 409, message)
}

// Unprocessable answers 422 with optional field errors.
func Unprocessable(c *gin.Context, message string, fields map[string]string) {
	c.JSON(http.StatusUnprocessableEntity, APIResponse{Code: 422, Message: message, Errors: fields})
}

func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, 500, message)
}
