// Package handler содержит HTTP-обвязку payment participant'а: у него нет
// синхронных бизнес-эндпоинтов (генерация/проведение/возврат платежа приходят
// только через шину), поэтому роутер несёт исключительно /health.
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/vehicle-saga/pkg/httpserver"
)

// ReadinessChecker — функция проверки готовности сервиса (пинг БД/Redis).
type ReadinessChecker func(ctx context.Context) error

// RouterConfig — параметры для создания роутера payment participant'а.
type RouterConfig struct {
	ReadinessCheck ReadinessChecker
	Debug          bool
}

// NewRouter создаёт и настраивает HTTP роутер payment participant'а.
func NewRouter(cfg RouterConfig) *gin.Engine {
	engine := httpserver.NewEngine("payment", cfg.Debug)
	engine.GET("/health", healthHandler(cfg.ReadinessCheck))
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
