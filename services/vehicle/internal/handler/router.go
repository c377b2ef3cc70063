package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/vehicle-saga/pkg/httpserver"
	"example.com/vehicle-saga/services/vehicle/internal/service"
)

// ReadinessChecker — функция проверки готовности сервиса (пинг БД).
type ReadinessChecker func(ctx context.Context) error

// RouterConfig — параметры для создания роутера vehicle participant'а.
type RouterConfig struct {
	VehicleSvc     *service.VehicleService
	ReadinessCheck ReadinessChecker
	Debug          bool
}

// NewRouter создаёт и настраивает HTTP роутер vehicle participant'а.
func NewRouter(cfg RouterConfig) *gin.Engine {
	engine := httpserver.NewEngine("vehicle", cfg.Debug)

	engine.GET("/health", healthHandler(cfg.ReadinessCheck))

	vehicleHandler := NewVehicleHandler(cfg.VehicleSvc)
	engine.POST("/vehicles", vehicleHandler.CreateVehicle)
	engine.GET("/vehicles/:id", vehicleHandler.GetVehicle)
	engine.PATCH("/vehicles/:id/mark_as_sold", vehicleHandler.MarkAsSold)

	return engine
}

func healthHandler(check ReadinessChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if check == nil {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := check(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
