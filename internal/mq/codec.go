package mq

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Decoder превращает тело сообщения в типизированное значение.
//
// Ошибка класса KindFormatCast отклоняет сообщение без requeue.
// Ошибки других классов обрабатываются как отказ callback (nack).
type Decoder[T any] func(body []byte) (T, error)

// validator реализуют типы сообщений с собственной проверкой.
type validator interface {
	Validate() error
}

// JSONDecoder декодирует JSON-тело в T.
//
// Пустое тело и литерал null — ErrEmptyPayload.
// Невалидный JSON, лишние данные после значения и (при strict) неизвестные
// поля — ErrMalformedPayload. Если T реализует Validate() error,
// ошибка проверки также считается ErrMalformedPayload.
func JSONDecoder[T any](strict bool) Decoder[T] {
	return func(body []byte) (T, error) {
		var v T

		trimmed := bytes.TrimSpace(body)
		if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
			return v, ErrEmptyPayload
		}

		dec := json.NewDecoder(bytes.NewReader(trimmed))
		if strict {
			dec.DisallowUnknownFields()
		}

		if err := dec.Decode(&v); err != nil {
			return v, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
		if dec.More() {
			return v, fmt.Errorf("%w: trailing data after value", ErrMalformedPayload)
		}

		if err := validate(&v); err != nil {
			return v, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}

		return v, nil
	}
}

// validate вызывает Validate для значения или указателя на него.
func validate[T any](v *T) error {
	if val, ok := any(v).(validator); ok {
		return val.Validate()
	}
	if val, ok := any(*v).(validator); ok {
		return val.Validate()
	}
	return nil
}
