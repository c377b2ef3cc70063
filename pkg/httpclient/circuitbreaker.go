// Package httpclient предоставляет HTTP-клиент, оборачивающий синхронные
// вызовы оркестратора к участникам (предварительная валидация, markAsSold)
// в Circuit Breaker.
//
// Состояния Circuit Breaker:
//   - Closed: нормальная работа, запросы проходят
//   - Open: участник недоступен, запросы отклоняются мгновенно (без ожидания timeout)
//   - Half-Open: пробный период, пропускаем часть запросов для проверки восстановления
package httpclient

import (
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"

	"example.com/vehicle-saga/pkg/logger"
)

// Settings — настройки Circuit Breaker.
type Settings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

// DefaultSettings возвращает настройки по умолчанию, оптимизированные для
// быстрого восстановления связи между оркестратором и участником.
func DefaultSettings() Settings {
	return Settings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// Breaker — обёртка над gobreaker с логированием.
type Breaker struct {
	cb   *gobreaker.CircuitBreaker[*http.Response]
	name string
}

// New создаёт Circuit Breaker с настройками по умолчанию.
func New(name string) *Breaker {
	return NewWithSettings(name, DefaultSettings())
}

// NewWithSettings создаёт Circuit Breaker с пользовательскими настройками.
func NewWithSettings(name string, s Settings) *Breaker {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings[*http.Response]{
		Name:        name,
		MaxRequests: s.MaxRequests,
		Interval:    s.Interval,
		Timeout:     s.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < s.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= s.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log := logger.With().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Logger()
			switch to {
			case gobreaker.StateOpen:
				log.Warn().Msg("circuit breaker открыт — участник недоступен")
			case gobreaker.StateHalfOpen:
				log.Info().Msg("circuit breaker полуоткрыт — пробуем восстановить")
			case gobreaker.StateClosed:
				log.Info().Msg("circuit breaker закрыт — участник восстановлен")
			}
		},
	})

	return &Breaker{cb: cb, name: name}
}

// State возвращает текущее состояние breaker'а.
func (b *Breaker) State() gobreaker.State {
	return b.cb.State()
}

// Name возвращает имя breaker'а.
func (b *Breaker) Name() string {
	return b.name
}

// Execute выполняет do через Circuit Breaker. Только инфраструктурные сбои
// (транспортная ошибка или 5xx) учитываются breaker'ом; ответы 4xx — бизнес
// результат участника и не должны открывать breaker.
func (b *Breaker) Execute(do func() (*http.Response, error)) (*http.Response, error) {
	resp, cbErr := b.cb.Execute(func() (*http.Response, error) {
		resp, err := do()
		if err != nil {
			return resp, err
		}
		if resp.StatusCode >= 500 {
			return resp, errInfra(resp.StatusCode)
		}
		return resp, nil
	})

	if cbErr == gobreaker.ErrOpenState || cbErr == gobreaker.ErrTooManyRequests {
		return nil, ErrUnavailable
	}

	return resp, cbErr
}
