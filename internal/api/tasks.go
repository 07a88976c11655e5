package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"service-desk/backend/internal/models"
	"service-desk/backend/internal/service"

	"github.com/gin-gonic/gin"
)

type TaskHandler struct {
	tasks         *service.TaskService
	router        *service.MessageRouter
	maxUploadSize int64
}

func NewTaskHandler(tasks *service.TaskService, router *service.MessageRouter, maxUploadSize int64) *TaskHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = 10 << 20
	}
	return &TaskHandler{tasks: tasks, router: router, maxUploadSize: maxUploadSize}
}

// RegisterRoutes mounts the ticket endpoints on the group
func (h *TaskHandler) RegisterRoutes(rg *gin.RouterGroup) {
	tasks := rg.Group("/tasks")
	tasks.GET("", h.List)
	tasks.GET("/:id", h.Get)
	tasks.GET("/:id/messages", h.Messages)
	tasks.POST("/:id/assign", h.Assign)
	tasks.POST("/:id/status", h.SetStatus)
	tasks.POST("/:id/reply", h.Reply)
}

// List supports ?status=, ?user_id= and ?with_messages=
func (h *TaskHandler) List(c *gin.Context) {
	var filter service.TaskFilter

	if raw := c.Query("status"); raw != "" {
		status, err := models.ParseTaskStatus(raw)
		if err != nil {
			respondError(c, fmt.Errorf("%w: %v", service.ErrInvalidStatus, err))
			return
		}
		filter.Status = &status
	}
	if raw := c.Query("user_id"); raw != "" {
		userID, ok := parseID(raw)
		if !ok {
			badRequest(c, "Invalid user_id", nil)
			return
		}
		filter.UserID = &userID
	}
	if raw := c.Query("with_messages"); raw != "" {
		with, err := strconv.ParseBool(raw)
		if err != nil {
			badRequest(c, "Invalid with_messages", err)
			return
		}
		filter.WithMessages = with
	}

	tasks, err := h.tasks.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}

	response := make([]models.TaskResponse, 0, len(tasks))
	for i := range tasks {
		response = append(response, tasks[i].ToResponse())
	}
	c.JSON(http.StatusOK, response)
}

func (h *TaskHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	task, err := h.tasks.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task.ToResponse())
}

func (h *TaskHandler) Messages(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	messages, err := h.tasks.ListMessages(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []models.Message{}
	}
	c.JSON(http.StatusOK, messages)
}

type assignRequest struct {
	ManagerID uint `json:"manager_id" form:"manager_id" binding:"required"`
}

func (h *TaskHandler) Assign(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req assignRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "manager_id is required", err)
		return
	}

	task, err := h.tasks.AssignManager(c.Request.Context(), id, req.ManagerID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task.ToResponse())
}

type statusRequest struct {
	Status string `json:"status" form:"status" binding:"required"`
}

func (h *TaskHandler) SetStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req statusRequest
	if err := c.ShouldBind(&req); err != nil {
		badRequest(c, "status is required", err)
		return
	}

	status, err := models.ParseTaskStatus(req.Status)
	if err != nil {
		respondError(c, fmt.Errorf("%w: %v", service.ErrInvalidStatus, err))
		return
	}

	task, err := h.tasks.SetStatus(c.Request.Context(), id, status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, task.ToResponse())
}

// Reply takes multipart fields content, operator_id and an optional image file
func (h *TaskHandler) Reply(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := c.Request.ParseMultipartForm(h.maxUploadSize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, err)
			return
		}
		badRequest(c, "Invalid form", err)
		return
	}

	operatorID, ok := parseID(c.PostForm("operator_id"))
	if !ok {
		badRequest(c, "operator_id is required", nil)
		return
	}

	image, err := h.readImage(c)
	if err != nil {
		respondError(c, err)
		return
	}

	msg, err := h.router.RecordOperatorReply(c.Request.Context(), id, operatorID, service.Reply{
		Content: c.PostForm("content"),
		Image:   image,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (h *TaskHandler) readImage(c *gin.Context) ([]byte, error) {
	header, err := c.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if header.Size > h.maxUploadSize {
		return nil, &http.MaxBytesError{Limit: h.maxUploadSize}
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open upload: %w", err)
	}
	defer file.Close()

	return io.ReadAll(io.LimitReader(file, h.maxUploadSize))
}
