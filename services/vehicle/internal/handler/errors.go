// Package handler содержит HTTP обработчики vehicle participant'а.
package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vehicle-saga/pkg/logger"
	"example.com/vehicle-saga/services/vehicle/internal/domain"
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
	case errors.Is(err, domain.ErrVehicleNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrLicensePlateExists):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrEmptyMake), errors.Is(err, domain.ErrEmptyModel), errors.Is(err, domain.ErrEmptyLicensePlate),
		errors.Is(err, domain.ErrInvalidPrice), errors.Is(err, domain.ErrVehicleUnavailable), errors.Is(err, domain.ErrVehicleNotReserved):
		status, code = http.StatusBadRequest, "bad_request"
	default:
		status, code = http.StatusInternalServerError, "internal_error"
		log.Error().Err(err).Str("method", method).Msg("Необработанная ошибка vehicle participant'а")
	}

	c.JSON(status, ErrorResponse{Error: code, Message: err.Error()})
}
