package api

import (
	"net/http"

	"service-desk/backend/pkg/blob"

	"github.com/gin-gonic/gin"
)

// BlobHandler serves stored images to the operator console
type BlobHandler struct {
	blobs blob.Store
}

func NewBlobHandler(blobs blob.Store) *BlobHandler {
	return &BlobHandler{blobs: blobs}
}

func (h *BlobHandler) Serve(c *gin.Context) {
	name := c.Param("name")

	data, err := h.blobs.Get(c.Request.Context(), name)
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=86400")
	c.Data(http.StatusOK, blob.ContentType(name), data)
}
