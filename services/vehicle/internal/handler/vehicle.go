package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"example.com/vehicle-saga/services/vehicle/internal/domain"
	"example.com/vehicle-saga/services/vehicle/internal/service"
)

// VehicleHandler предоставляет CRUD и граничные HTTP операции над автомобилями.
type VehicleHandler struct {
	svc *service.VehicleService
}

// NewVehicleHandler создаёт обработчик автомобилей.
func NewVehicleHandler(svc *service.VehicleService) *VehicleHandler {
	return &VehicleHandler{svc: svc}
}

type createVehicleRequest struct {
	Make         string  `json:"make" binding:"required"`
	Model        string  `json:"model" binding:"required"`
	Year         int     `json:"year"`
	LicensePlate string  `json:"license_plate" binding:"required"`
	Price        float64 `json:"price" binding:"required"`
}

// vehicleResponse — форма ответа, соответствующая spec.md §6.
type vehicleResponse struct {
	ID           string  `json:"id"`
	Make         string  `json:"make"`
	Model        string  `json:"model"`
	Year         int     `json:"year"`
	LicensePlate string  `json:"license_plate"`
	Price        float64 `json:"price"`
	IsReserved   bool    `json:"is_reserved"`
	IsSold       bool    `json:"is_sold"`
}

func toResponse(v *domain.Vehicle) vehicleResponse {
	return vehicleResponse{
		ID: v.ID, Make: v.Make, Model: v.Model, Year: v.Year, LicensePlate: v.LicensePlate,
		Price: v.Price, IsReserved: v.IsReserved, IsSold: v.IsSold,
	}
}

// CreateVehicle — POST /vehicles.
func (h *VehicleHandler) CreateVehicle(c *gin.Context) {
	var req createVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: err.Error()})
		return
	}

	vehicle := &domain.Vehicle{
		Make: req.Make, Model: req.Model, Year: req.Year,
		LicensePlate: req.LicensePlate, Price: req.Price,
	}
	if err := h.svc.Create(c.Request.Context(), vehicle); err != nil {
		HandleError(c, err, "CreateVehicle")
		return
	}
	c.JSON(http.StatusCreated, toResponse(vehicle))
}

// GetVehicle — GET /vehicles/{id}.
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	vehicle, err := h.svc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err, "GetVehicle")
		return
	}
	c.JSON(http.StatusOK, toResponse(vehicle))
}

// MarkAsSold — PATCH /vehicles/{id}/mark_as_sold. Единственный синхронный
// вызов оркестратора вне шины, меняющий состояние автомобиля (второй
// синхронный вызов — pre-flight GET /vehicles/{id} — только читает) (spec.md §4.3).
func (h *VehicleHandler) MarkAsSold(c *gin.Context) {
	vehicle, err := h.svc.MarkAsSold(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleError(c, err, "MarkAsSold")
		return
	}
	c.JSON(http.StatusOK, toResponse(vehicle))
}
