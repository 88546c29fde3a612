package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mcuredefined/backend/internal/services"
	"github.com/mcuredefined/backend/internal/storage"
	appErrors "github.com/mcuredefined/backend/pkg/errors"
	"github.com/mcuredefined/backend/pkg/response"
)

// ImageHandler exposes direct image-store operations used by the editor:
// upload ahead of a post save, delete on discard, and payload validation.
type ImageHandler struct {
	images services.ImageStore
}

// NewImageHandler constructs a handler over the image store. A nil store
// makes every endpoint answer 503.
func NewImageHandler(images services.ImageStore) *ImageHandler {
	return &ImageHandler{images: images}
}

type uploadImagePayload struct {
	Image string `json:"image" binding:"required" validate:"required"`
}

type deleteImagePayload struct {
	Key string `json:"key" binding:"required" validate:"required"`
}

// Upload stores a base64 data URI and returns its {link, key} record.
func (h *ImageHandler) Upload(c *gin.Context) {
	if h.images == nil {
		response.Error(c, appErrors.ErrStorageUnavailable)
		return
	}

	var payload uploadImagePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	if !storage.IsUploadable(payload.Image) {
		response.Error(c, appErrors.NewBadRequest("image must be a base64 data URI of a supported type"))
		return
	}

	record, err := h.images.Process(requestContext(c), payload.Image)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusCreated, record)
}

// Delete removes a previously uploaded image by key.
func (h *ImageHandler) Delete(c *gin.Context) {
	if h.images == nil {
		response.Error(c, appErrors.ErrStorageUnavailable)
		return
	}

	var payload deleteImagePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	if err := h.images.Delete(requestContext(c), payload.Key); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": payload.Key})
}

// Validate reports whether a payload would be uploaded rather than passed
// through or replaced by the default image.
func (h *ImageHandler) Validate(c *gin.Context) {
	var payload uploadImagePayload
	if !bindAndValidate(c, &payload) {
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"uploadable": storage.IsUploadable(payload.Image),
	})
}
