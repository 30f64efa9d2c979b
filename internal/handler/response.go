package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/yourusername/exam-portal-api/internal/pkg/errors"
)

// statusFor сопоставляет вид ошибки с HTTP статусом
func statusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindExpired:
		return http.StatusGone
	case apperrors.KindAlreadyCompleted:
		return http.StatusConflict
	case apperrors.KindRestricted:
		return http.StatusForbidden
	case apperrors.KindIncompleteSubmission:
		return http.StatusUnprocessableEntity
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindInvalidCredentials:
		return http.StatusUnauthorized
	case apperrors.KindNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError пишет ошибку в едином формате {error, error_type, display}
func respondError(c *gin.Context, err error) {
	kind := apperrors.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	var appErr *apperrors.Error
	if errors.As(err, &appErr) && appErr.Msg != "" {
		message = appErr.Msg
	}
	if status == http.StatusInternalServerError {
		log.Printf("ERROR: Internal server error in %s: %v", c.FullPath(), err)
		message = "Internal server error"
	}
	c.JSON(status, gin.H{
		"error":      message,
		"error_type": kind.String(),
		"display":    apperrors.Describe(err),
	})
}

// badRequest: ошибка разбора тела запроса
func badRequest(c *gin.Context, err error) {
	respondError(c, apperrors.E(apperrors.KindValidation, "", err.Error(), apperrors.ErrValidation))
}
