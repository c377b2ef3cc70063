package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vehicle-saga/pkg/envelope"
	"example.com/vehicle-saga/services/orchestrator/internal/domain"
	"example.com/vehicle-saga/services/orchestrator/internal/service"
)

// PurchaseHandler обслуживает POST /purchase и POST /purchase/{id}/cancel.
type PurchaseHandler struct {
	purchase *service.PurchaseService
	cancel   *service.CancelService
}

// NewPurchaseHandler создаёт обработчик инициации/отмены покупки.
func NewPurchaseHandler(purchase *service.PurchaseService, cancel *service.CancelService) *PurchaseHandler {
	return &PurchaseHandler{purchase: purchase, cancel: cancel}
}

// purchaseRequest — тело POST /purchase.
type purchaseRequest struct {
	CustomerID  string               `json:"customer_id" binding:"required"`
	VehicleID   string               `json:"vehicle_id" binding:"required"`
	PaymentType envelope.PaymentType `json:"payment_type" binding:"required"`
}

// purchaseResponse — 202 ответ POST /purchase.
type purchaseResponse struct {
	Message      string `json:"message"`
	TransactionID string `json:"transaction_id"`
	SagaStatus   string `json:"saga_status"`
	VehiclePrice float64 `json:"vehicle_price"`
	PaymentType  string `json:"payment_type"`
}

// CreatePurchase обрабатывает POST /purchase.
func (h *PurchaseHandler) CreatePurchase(c *gin.Context) {
	var req purchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid_request", Message: err.Error()})
		return
	}

	result, err := h.purchase.InitiatePurchase(c.Request.Context(), req.CustomerID, req.VehicleID, req.PaymentType)
	if err != nil {
		HandleError(c, err, "InitiatePurchase")
		return
	}

	c.JSON(http.StatusAccepted, purchaseResponse{
		Message:       "Покупка инициирована",
		TransactionID: result.TransactionID,
		SagaStatus:    string(result.SagaStatus),
		VehiclePrice:  result.VehiclePrice,
		PaymentType:   string(req.PaymentType),
	})
}

// cancelRequest — необязательное тело POST /purchase/{id}/cancel.
type cancelRequest struct {
	Reason string `json:"reason"`
}

// cancelResponse — ответ POST /purchase/{id}/cancel (200, либо 409 при CANCELLATION_FAILED).
type cancelResponse struct {
	Message       string `json:"message"`
	TransactionID string `json:"transaction_id"`
	CurrentStep   string `json:"current_step"`
	Status        string `json:"status"`
}

// CancelPurchase обрабатывает POST /purchase/{transaction_id}/cancel.
func (h *PurchaseHandler) CancelPurchase(c *gin.Context) {
	transactionID := c.Param("transaction_id")

	var req cancelRequest
	_ = c.ShouldBindJSON(&req) // тело необязательно

	result, err := h.cancel.Cancel(c.Request.Context(), transactionID, req.Reason)
	if err != nil {
		HandleError(c, err, "CancelPurchase")
		return
	}

	if result.Status == domain.StatusCancellationFailed {
		c.JSON(http.StatusConflict, cancelResponse{
			Message:       "Транзакция уже завершена, отмена невозможна",
			TransactionID: result.TransactionID,
			CurrentStep:   string(result.CurrentStep),
			Status:        string(result.Status),
		})
		return
	}

	c.JSON(http.StatusOK, cancelResponse{
		Message:       "Запрос на отмену принят",
		TransactionID: result.TransactionID,
		CurrentStep:   string(result.CurrentStep),
		Status:        string(result.Status),
	})
}
