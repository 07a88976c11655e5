package api

import (
	"net/http"

	"service-desk/backend/internal/models"
	"service-desk/backend/internal/service"

	"github.com/gin-gonic/gin"
)

type ManagerHandler struct {
	service *service.ManagerService
}

func NewManagerHandler(service *service.ManagerService) *ManagerHandler {
	return &ManagerHandler{service: service}
}

// RegisterRoutes mounts the manager endpoints on the group
func (h *ManagerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	managers := rg.Group("/managers")
	managers.GET("", h.List)
	managers.POST("", h.Create)
	managers.GET("/:id", h.Get)
}

func (h *ManagerHandler) List(c *gin.Context) {
	managers, err := h.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, managers)
}

func (h *ManagerHandler) Create(c *gin.Context) {
	var req models.CreateManagerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body", err)
		return
	}

	manager, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, manager)
}

func (h *ManagerHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	manager, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, manager)
}
