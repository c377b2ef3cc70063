package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"example.com/vehicle-saga/pkg/httpserver"
	"example.com/vehicle-saga/services/orchestrator/internal/saga"
	"example.com/vehicle-saga/services/orchestrator/internal/service"
)

// ReadinessChecker — функция проверки готовности сервиса (пинг БД).
type ReadinessChecker func(ctx context.Context) error

// RouterConfig — параметры для создания роутера оркестратора.
type RouterConfig struct {
	Orchestrator   saga.Orchestrator
	PurchaseSvc    *service.PurchaseService
	CancelSvc      *service.CancelService
	ReadinessCheck ReadinessChecker
	Debug          bool
}

// NewRouter создаёт и настраивает HTTP роутер оркестратора.
func NewRouter(cfg RouterConfig) *gin.Engine {
	engine := httpserver.NewEngine("orchestrator", cfg.Debug)

	engine.GET("/health", healthHandler(cfg.ReadinessCheck))

	purchaseHandler := NewPurchaseHandler(cfg.PurchaseSvc, cfg.CancelSvc)
	sagaHandler := NewSagaStateHandler(cfg.Orchestrator)

	engine.POST("/purchase", purchaseHandler.CreatePurchase)
	engine.POST("/purchase/:transaction_id/cancel", purchaseHandler.CancelPurchase)
	engine.GET("/saga-states/:transaction_id", sagaHandler.GetSagaState)

	return engine
}

// healthHandler реализует spec.md §6: GET /health — 200 если БД доступна,
// 503 иначе. Простая проверка, без отдельного readiness/liveness разделения.
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
