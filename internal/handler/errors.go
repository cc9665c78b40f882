package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contest-maker-150/assessment/internal/domain"
)

// respondError translates a domain error into an HTTP response
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)

	status, message := statusOf(err)
	body := gin.H{"error": message}
	if code := domain.ErrorCode(err); code != "" {
		body["code"] = code
	}
	c.JSON(status, body)
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrNotCodingQuestion),
		errors.Is(err, domain.ErrNotQuizQuestion),
		errors.Is(err, domain.ErrInvalidOption),
		errors.Is(err, domain.ErrUnsupportedActivityKind):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "Invalid or expired token"
	case errors.Is(err, domain.ErrInvalidAccessKey):
		return http.StatusForbidden, err.Error()
	case errors.Is(err, domain.ErrActivityNotFound),
		errors.Is(err, domain.ErrQuestionNotFound),
		errors.Is(err, domain.ErrSessionNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, domain.ErrWindowNotStarted),
		errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, domain.ErrActionInFlight):
		return http.StatusConflict, err.Error()
	case errors.Is(err, domain.ErrExecutionTimeout):
		return http.StatusGatewayTimeout, "Code execution timed out, please retry"
	case errors.Is(err, domain.ErrActivityUnavailable):
		return http.StatusServiceUnavailable, "Activity data is unavailable, please retry"
	case errors.Is(err, domain.ErrExecutionUnavailable),
		errors.Is(err, domain.ErrBackendUnavailable):
		return http.StatusBadGateway, "Action failed, please retry"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func bindError(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request body",
		"details": err.Error(),
	})
}
