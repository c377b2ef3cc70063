package domain

import "errors"

// Доменные ошибки credit participant'а.
var (
	// ErrCustomerNotFound возвращается, когда покупатель не найден в базе данных.
	ErrCustomerNotFound = errors.New("покупатель не найден")

	// ErrEmailExists возвращается при попытке регистрации с уже занятым email.
	ErrEmailExists = errors.New("покупатель с таким email уже существует")

	// ErrDocumentExists возвращается при попытке регистрации с уже занятым документом.
	ErrDocumentExists = errors.New("покупатель с таким документом уже существует")

	// ErrInvalidEmail возвращается при некорректном формате email.
	ErrInvalidEmail = errors.New("некорректный формат email")

	// ErrEmptyName возвращается, если имя покупателя пустое.
	ErrEmptyName = errors.New("имя покупателя не может быть пустым")

	// ErrEmptyDocument возвращается, если документ покупателя пустой.
	ErrEmptyDocument = errors.New("документ покупателя не может быть пустым")

	// ErrInsufficientFunds — недостаточно средств на счёте (cash) или в
	// кредитной линии (credit) для резервирования запрошенной суммы.
	ErrInsufficientFunds = errors.New("недостаточно средств")

	// ErrUnsupportedPaymentType — payment_type не входит в {cash, credit}.
	ErrUnsupportedPaymentType = errors.New("неподдерживаемый способ оплаты")

	// ErrCustomerSuspended — мутирующие операции над заблокированным
	// покупателем запрещены (editing policy, аналог vehicle's "reserved/sold").
	ErrCustomerSuspended = errors.New("учётная запись покупателя заблокирована")
)
