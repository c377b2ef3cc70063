package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vehicle-saga/services/customer/internal/domain"
	"example.com/vehicle-saga/services/customer/internal/service"
)

// CustomerHandler предоставляет CRUD HTTP API над покупателями.
type CustomerHandler struct {
	svc *service.CustomerService
}

// NewCustomerHandler создаёт обработчик покупателей.
func NewCustomerHandler(svc *service.CustomerService) *CustomerHandler {
	return &CustomerHandler{svc: svc}
}

type createCustomerRequest struct {
	Name           string  `json:"name" binding:"required"`
	Email          string  `json:"email" binding:"required"`
	Document       string  `json:"document" binding:"required"`
	AccountBalance float64 `json:"account_balance"`
	CreditLimit    float64 `json:"credit_limit"`
}

// customerResponse — форма ответа, соответствующая spec.md §6: оркестратор
// опирается на available_credit при проверке платёжеспособности.
type customerResponse struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	AccountBalance  float64 `json:"account_balance"`
	CreditLimit     float64 `json:"credit_limit"`
	AvailableCredit float64 `json:"available_credit"`
	Status          string  `json:"status"`
}

func toResponse(c *domain.Customer) customerResponse {
	return customerResponse{
		ID: c.ID, Name: c.Name, Email: c.Email,
		AccountBalance:  c.AccountBalance,
		CreditLimit:     c.CreditLimit,
		AvailableCredit: c.AvailableCredit(),
		Status:          c.Status,
	}
}

// CreateCustomer — POST /customers.
func (h *CustomerHandler) CreateCustomer(c *gin.Context) {
	var req createCustomerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	customer := &domain.Customer{
		Name: req.Name, Email: req.Email, Document: req.Document,
		AccountBalance: req.AccountBalance, CreditLimit: req.CreditLimit,
	}
	if err := h.svc.Create(c.Request.Context(), customer); err != nil {
		HandleError(c, err, "CreateCustomer")
		return
	}
	c.JSON(http.StatusCreated, toResponse(customer))
}

// GetCustomer — GET /customers/{id}.
func (h *CustomerHandler) GetCustomer(c *gin.Context) {
	customer, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err, "GetCustomer")
		return
	}
	c.JSON(http.StatusOK, toResponse(customer))
}
