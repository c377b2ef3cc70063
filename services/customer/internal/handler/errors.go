// Package handler содержит HTTP обработчики credit participant'а.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/services/customer/internal/domain"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleError преобразует доменную ошибку в HTTP ответ.
func HandleError(c *gin.Context, err error, method string) {
	if err == nil {
		logger.Error().Str("method", method).Msg("HandleError вызван с nil ошибкой — баг в коде")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "Внутренняя ошибка сервера"})
		return
	}

	log := logger.FromContext(c.Request.Context())

	var status int
	var code string

	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrEmailExists), errors.Is(err, domain.ErrDocumentExists):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvalidEmail), errors.Is(err, domain.ErrEmptyName), errors.Is(err, domain.ErrEmptyDocument),
		errors.Is(err, domain.ErrInsufficientFunds), errors.Is(err, domain.ErrUnsupportedPaymentType), errors.Is(err, domain.ErrCustomerSuspended):
		status, code = http.StatusBadRequest, "bad_request"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
		log.Error().Err(err).Str("method", method).Msg("Необработанная ошибка credit participant'а")
	}

	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}
