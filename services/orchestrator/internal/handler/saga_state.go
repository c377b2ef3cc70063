package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vehicle-saga/services/orchestrator/internal/saga"
)

// SagaStateHandler обслуживает GET /saga-states/{transaction_id}.
type SagaStateHandler struct {
	orch saga.Orchestrator
}

// NewSagaStateHandler создаёт обработчик чтения состояния саги.
func NewSagaStateHandler(orch saga.Orchestrator) *SagaStateHandler {
	return &SagaStateHandler{orch: orch}
}

// sagaStateResponse — полная запись саги, возвращаемая операторам.
type sagaStateResponse struct {
	TransactionID string `json:"transaction_id"`
	CustomerID    string `json:"customer_id"`
	VehicleID     string `json:"vehicle_id"`
	Amount        float64 `json:"amount"`
	PaymentType   string `json:"payment_type"`
	Status        string `json:"status"`
	CurrentStep   string `json:"current_step"`
	Context       any    `json:"context"`
	Version       int    `json:"version"`
}

// GetSagaState обрабатывает GET /saga-states/{transaction_id}.
func (h *SagaStateHandler) GetSagaState(c *gin.Context) {
	transactionID := c.Param("transaction_id")

	s, err := h.orch.GetState(c.Request.Context(), transactionID)
	if err != nil {
		HandleError(c, err, "GetSagaState")
		return
	}

	c.JSON(http.StatusOK, sagaStateResponse{
		TransactionID: s.TransactionID,
		CustomerID:    s.CustomerID,
		VehicleID:     s.VehicleID,
		Amount:        s.Amount,
		PaymentType:   string(s.PaymentType),
		Status:        string(s.Status),
		CurrentStep:   string(s.CurrentStep),
		Context:       s.Context,
		Version:       s.Version,
	})
}
