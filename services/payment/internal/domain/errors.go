// Package domain содержит бизнес-сущности payment participant'а.
package domain

import "errors"

// Доменные ошибки payment participant'а.
var (
	// ErrPaymentCodeNotFound — платёжный код не найден.
	ErrPaymentCodeNotFound = errors.New("платёжный код не найден")

	// ErrPaymentCodeNotPending — код уже использован или истёк.
	ErrPaymentCodeNotPending = errors.New("платёжный код уже использован или истёк")

	// ErrPaymentCodeExpired — истёк срок действия кода.
	ErrPaymentCodeExpired = errors.New("истёк срок действия платёжного кода")

	// ErrPaymentNotFound — платёж не найден.
	ErrPaymentNotFound = errors.New("платёж не найден")

	// ErrPaymentFailed — нельзя вернуть неудавшийся платёж.
	ErrPaymentFailed = errors.New("нельзя выполнить возврат неудавшегося платежа")

	// ErrInvalidTransition — недопустимый переход статуса платежа.
	ErrInvalidTransition = errors.New("недопустимый переход статуса платежа")

	// ErrInvalidAmount — некорректная сумма платежа.
	ErrInvalidAmount = errors.New("сумма платежа должна быть больше нуля")

	// ErrDuplicateTransaction — код/платёж с таким transaction_id уже существует.
	ErrDuplicateTransaction = errors.New("запись с таким transaction_id уже существует")
)
