// Package client содержит синхронные HTTP-клиенты оркестратора к границам
// customer и vehicle participant'ов — единственные точки, где оркестратор
// не ограничивается шиной (pre-flight проверки перед стартом саги и
// mark_as_sold на последнем шаге форвард-пути).
package client

import (
	"context"
	"time"

	"example.com/vehicle-saga/pkg/httpclient"
)

// CustomerView — ответ customer participant'а GET /customers/{id}.
type CustomerView struct {
	ID              string  `json:"id"`
	AccountBalance  float64 `json:"account_balance"`
	CreditLimit     float64 `json:"credit_limit"`
	AvailableCredit float64 `json:"available_credit"`
	Status          string  `json:"status"`
}

// VehicleView — ответ vehicle participant'а GET /vehicles/{id} и
// PATCH /vehicles/{id}/mark_as_sold.
type VehicleView struct {
	ID         string  `json:"id"`
	Price      float64 `json:"price"`
	IsReserved bool    `json:"is_reserved"`
	IsSold     bool    `json:"is_sold"`
}

// CustomerClient — клиент к customer (credit) participant'у.
type CustomerClient struct {
	http *httpclient.Client
}

// NewCustomerClient создаёт клиент к customer participant'у.
func NewCustomerClient(baseURL string, timeout time.Duration) *CustomerClient {
	return &CustomerClient{http: httpclient.NewClient("customer-service", baseURL, timeout)}
}

// Get выполняет предполётную проверку покупателя перед стартом саги.
func (c *CustomerClient) Get(ctx context.Context, customerID string) (*CustomerView, error) {
	var v CustomerView
	if err := c.http.Get(ctx, "/customers/"+customerID, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// VehicleClient — клиент к vehicle participant'у.
type VehicleClient struct {
	http *httpclient.Client
}

// NewVehicleClient создаёт клиент к vehicle participant'у.
func NewVehicleClient(baseURL string, timeout time.Duration) *VehicleClient {
	return &VehicleClient{http: httpclient.NewClient("vehicle-service", baseURL, timeout)}
}

// Get выполняет предполётную проверку автомобиля перед стартом саги.
func (c *VehicleClient) Get(ctx context.Context, vehicleID string) (*VehicleView, error) {
	var v VehicleView
	if err := c.http.Get(ctx, "/vehicles/"+vehicleID, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// MarkAsSold выполняет финальный синхронный шаг форвард-пути саги:
// помечает автомобиль проданным после успешного платежа.
func (c *VehicleClient) MarkAsSold(ctx context.Context, vehicleID string) (*VehicleView, error) {
	var v VehicleView
	if err := c.http.Patch(ctx, "/vehicles/"+vehicleID+"/mark_as_sold", nil, &v); err != nil {
		return nil, err
	}
	return &v, nil
}
