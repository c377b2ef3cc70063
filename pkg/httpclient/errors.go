package httpclient

import "fmt"

// ErrUnavailable возвращается, когда breaker открыт и запрос отклонён без
// обращения к участнику.
var ErrUnavailable = fmt.Errorf("участник временно недоступен (circuit breaker open)")

func errInfra(status int) error {
	return fmt.Errorf("участник вернул инфраструктурную ошибку: status=%d", status)
}
