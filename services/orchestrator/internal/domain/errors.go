package domain

import "errors"

// Доменные ошибки оркестратора.
var (
	// ErrSagaNotFound возвращается, когда сага не найдена в базе данных.
	ErrSagaNotFound = errors.New("сага не найдена")

	// ErrSagaConcurrentUpdate — optimistic lock: версия строки изменилась
	// между чтением и записью.
	ErrSagaConcurrentUpdate = errors.New("конкурентное обновление саги")

	// ErrVehicleNotFound возвращается, когда предварительная проверка
	// автомобиля перед стартом саги не нашла запись.
	ErrVehicleNotFound = errors.New("автомобиль не найден")

	// ErrVehicleUnavailable — автомобиль зарезервирован или уже продан.
	ErrVehicleUnavailable = errors.New("автомобиль недоступен для покупки")

	// ErrCustomerNotFound возвращается, когда покупатель не найден.
	ErrCustomerNotFound = errors.New("покупатель не найден")

	// ErrInsufficientFunds — недостаточно средств/кредитного лимита.
	ErrInsufficientFunds = errors.New("недостаточно средств")

	// ErrInvalidPaymentType — payment_type не входит в {cash, credit}.
	ErrInvalidPaymentType = errors.New("некорректный способ оплаты")

	// ErrPublishFailed — публикация первой команды саги не удалась.
	ErrPublishFailed = errors.New("не удалось опубликовать команду")

	// ErrSagaTerminal возвращается при попытке отменить уже завершённую сагу.
	ErrSagaTerminal = errors.New("транзакция уже завершена")

	// ErrCancellationInProgress возвращается, когда отмена уже выполняется.
	ErrCancellationInProgress = errors.New("отмена уже выполняется")
)
