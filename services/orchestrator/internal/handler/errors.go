// Package handler содержит HTTP обработчики оркестратора саги покупки.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vehicle-saga/pkg/httpclient"
	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/services/orchestrator/internal/domain"
)

// ErrorResponse — стандартный формат ошибки API.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HandleError преобразует доменную ошибку оркестратора в HTTP ответ.
// ВАЖНО: err не должен быть nil — это баг в вызывающем коде.
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
	case errors.Is(err, domain.ErrVehicleNotFound), errors.Is(err, domain.ErrCustomerNotFound), errors.Is(err, domain.ErrSagaNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrVehicleUnavailable), errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrInvalidPaymentType), errors.Is(err, domain.ErrSagaTerminal):
		status, code = http.StatusBadRequest, "bad_request"
	case errors.Is(err, domain.ErrCancellationInProgress):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, httpclient.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, domain.ErrPublishFailed):
		status, code = http.StatusInternalServerError, "publish_failed"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
		log.Error().Err(err).Str("method", method).Msg("Необработанная ошибка оркестратора")
	}

	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}
