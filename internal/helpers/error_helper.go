package helpers

import (
	"errors"
	"net/http"

	"github.com/farellandr/duesledger/internal/errs"
	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func HTTPStatusText(code int) string {
	return http.StatusText(code)
}

func RespondWithError(c *gin.Context, statusCode int, customMessage string) {
	if customMessage == "" {
		customMessage = HTTPStatusText(statusCode)
	}
	c.JSON(statusCode, ErrorResponse{
		Success: false,
		Error:   customMessage,
	})
}

// StatusForError maps an error kind to the HTTP status returned to the caller.
func StatusForError(err error) int {
	switch {
	case errors.Is(err, errs.ErrAuthentication):
		return http.StatusUnauthorized
	case errors.Is(err, errs.ErrMalformedInput), errors.Is(err, errs.ErrResolution):
		return http.StatusBadRequest
	case errors.Is(err, errs.ErrVerificationContradiction), errors.Is(err, errs.ErrInvalidState):
		return http.StatusUnprocessableEntity
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, errs.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func RespondWithAppError(c *gin.Context, err error) {
	RespondWithError(c, StatusForError(err), err.Error())
}
