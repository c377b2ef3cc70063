package domain

import "errors"

// Доменные ошибки vehicle participant'а.
var (
	// ErrVehicleNotFound возвращается, когда автомобиль не найден в базе данных.
	ErrVehicleNotFound = errors.New("автомобиль не найден")

	// ErrLicensePlateExists возвращается при попытке регистрации с уже занятым
	// регистрационным знаком.
	ErrLicensePlateExists = errors.New("автомобиль с таким регистрационным знаком уже существует")

	// ErrEmptyMake/ErrEmptyModel/ErrEmptyLicensePlate/ErrInvalidPrice —
	// ошибки валидации при создании карточки автомобиля.
	ErrEmptyMake         = errors.New("марка автомобиля не может быть пустой")
	ErrEmptyModel        = errors.New("модель автомобиля не может быть пустой")
	ErrEmptyLicensePlate = errors.New("регистрационный знак не может быть пустым")
	ErrInvalidPrice      = errors.New("цена автомобиля должна быть положительной")

	// ErrVehicleUnavailable — автомобиль уже зарезервирован или продан.
	ErrVehicleUnavailable = errors.New("автомобиль недоступен для резервирования")

	// ErrVehicleNotReserved — попытка продать или снять резерв с автомобиля,
	// который не зарезервирован.
	ErrVehicleNotReserved = errors.New("автомобиль не зарезервирован")
)
