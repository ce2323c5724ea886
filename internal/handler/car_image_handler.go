package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"carmarket/backend/internal/service"
	"carmarket/backend/pkg/response"
)

type CarImageHandler struct {
	imageService   service.CarImageService
	maxUploadBytes int64
}

func NewCarImageHandler(imageService service.CarImageService, maxUploadBytes int64) *CarImageHandler {
	return &CarImageHandler{imageService: imageService, maxUploadBytes: maxUploadBytes}
}

// Upload takes a multipart form with image, and optional alt and is_cover.
func (h *CarImageHandler) Upload(c *gin.Context) {
	carID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var alt *string
	if v, ok := c.GetPostForm("alt"); ok && v != "" {
		if len([]rune(v)) > 150 {
			response.Unprocessable(c, "The given data was invalid.", map[string]string{"alt": "The alt may not be greater than 150 characters."})
			return
		}
		alt = &v
	}
	isCover := false
	if v, ok := c.GetPostForm("is_cover"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.Unprocessable(c, "The given data was invalid.", map[string]string{"is_cover": "The is cover field must be true or false."})
			return
		}
		isCover = b
	}

	up, done, ok := formImage(c, "image", h.maxUploadBytes)
	if !ok {
		return
	}
	defer done()

	img, err := h.imageService.Upload(c.Request.Context(), principal(c), carID, up, alt, isCover)
	if err != nil {
		writeError(c, err)
		return
	}
	response.Created(c, img)
}

func (h *CarImageHandler) Update(c *gin.Context) {
	carID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	imageID, ok := uuidParam(c, "imageId")
	if !ok {
		return
	}
	var req CarImageRequest
	if !bindJSON(c, &req) {
		return
	}

	img, err := h.imageService.Update(c.Request.Context(), principal(c), carID, imageID, service.ImageChanges{
		Alt:      req.Alt,
		IsCover:  req.IsCover,
		Position: req.Position,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	response.Success(c, img)
}

func (h *CarImageHandler) Delete(c *gin.Context) {
	carID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	imageID, ok := uuidParam(c, "imageId")
	if !ok {
		return
	}
	if err := h.imageService.Delete(c.Request.Context(), principal(c), carID, imageID); err != nil {
		writeError(c, err)
		return
	}
	response.Message(c, "Image deleted.")
}
