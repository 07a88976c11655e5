package api

import (
	"errors"
	"net/http"
	"strconv"

	"service-desk/backend/internal/service"
	"service-desk/backend/pkg/blob"
	apperrors "service-desk/backend/pkg/errors"

	"github.com/gin-gonic/gin"
)

// toAppError maps service and storage errors onto API errors
func toAppError(err error) *apperrors.AppError {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return apperrors.NewNotFoundError(apperrors.CodeTaskNotFound, "Task not found")
	case errors.Is(err, service.ErrUserNotFound):
		return apperrors.NewNotFoundError(apperrors.CodeUserNotFound, "User not found")
	case errors.Is(err, service.ErrManagerNotFound):
		return apperrors.NewNotFoundError(apperrors.CodeManagerNotFound, "Manager not found")
	case errors.Is(err, service.ErrInvalidStatus):
		return apperrors.NewBadRequestError(apperrors.CodeInvalidStatus, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		return apperrors.NewBadRequestError(apperrors.CodeInvalidInput, err.Error())
	case errors.Is(err, service.ErrInvalidTransition):
		return apperrors.NewConflictError(apperrors.CodeInvalidTransition, err.Error())
	case errors.Is(err, blob.ErrNotFound):
		return apperrors.NewNotFoundError(apperrors.CodeBlobNotFound, "File not found")
	case errors.Is(err, blob.ErrInvalidName):
		return apperrors.NewBadRequestError(apperrors.CodeInvalidInput, "Invalid file name")
	case errors.As(err, &tooLarge):
		return apperrors.NewError(http.StatusRequestEntityTooLarge, apperrors.CodeInvalidInput, "Request body too large").
			WithDetails(gin.H{"limit": tooLarge.Limit})
	default:
		return apperrors.NewInternalServerError(apperrors.CodeStorageFailure, "Storage failure").WithCause(err)
	}
}

func respondError(c *gin.Context, err error) {
	c.Error(toAppError(err))
	c.Abort()
}

func badRequest(c *gin.Context, message string, cause error) {
	appErr := apperrors.NewBadRequestError(apperrors.CodeInvalidInput, message)
	if cause != nil {
		appErr = appErr.WithDetails(cause.Error()).WithCause(cause)
	}
	c.Error(appErr)
	c.Abort()
}

// parseID reads a positive numeric path or form value
func parseID(raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, ok := parseID(c.Param(name))
	if !ok {
		badRequest(c, "Invalid "+name, nil)
	}
	return id, ok
}
