package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client — обёрнутый в Circuit Breaker HTTP-клиент для синхронных вызовов
// оркестратора к участникам (spec §5 "synchronous HTTP calls to peer services",
// §9 "Cyclic dependency avoidance").
type Client struct {
	http    *http.Client
	breaker *Breaker
	baseURL string
}

// NewClient создаёт Client для сервиса, слушающего на baseURL.
func NewClient(name, baseURL string, timeout time.Duration) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		breaker: New(name),
		baseURL: baseURL,
	}
}

// Breaker возвращает обёрнутый circuit breaker (для health/diagnostic endpoints).
func (c *Client) Breaker() *Breaker {
	return c.breaker
}

// Get выполняет GET path и десериализует JSON-ответ в out.
// Возвращает *StatusError при 3xx/4xx ответах участника; 5xx ответ
// возвращается как ошибка circuit breaker'а (инфраструктурный сбой).
func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// Patch выполняет PATCH path с телом body и десериализует JSON-ответ в out.
func (c *Client) Patch(ctx context.Context, path string, body any, out any) error {
	return c.do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return &StatusError{Status: resp.StatusCode, Body: readBody(resp)}
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func readBody(resp *http.Response) string {
	b, _ := io.ReadAll(resp.Body)
	return string(b)
}

// StatusError представляет не-2xx ответ участника (бизнес-результат, не
// инфраструктурный сбой — см. Breaker.Execute).
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("участник ответил status=%d body=%s", e.Status, e.Body)
}

// NotFound возвращает true, если участник ответил 404.
func (e *StatusError) NotFound() bool {
	return e.Status == http.StatusNotFound
}
