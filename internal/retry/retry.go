// Package retry реализует ограниченный retry с классификацией ошибок.
//
// Используется на двух уровнях:
//   - установка соединения и топологии (retry только для сетевых ошибок)
//   - обработка одного сообщения (retry только для временных ошибок callback)
//
// Каждый уровень получает собственную Policy, поэтому лимиты попыток
// настраиваются независимо.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Decision — решение классификатора по ошибке.
type Decision int

const (
	// Propagate — ошибка возвращается вызывающему без новых попыток.
	Propagate Decision = iota

	// Retry — операцию можно повторить, если лимит попыток не исчерпан.
	Retry
)

func (d Decision) String() string {
	switch d {
	case Retry:
		return "retry"
	default:
		return "propagate"
	}
}

// Classifier отображает ошибку операции в решение о повторе.
type Classifier func(error) Decision

// Default configuration values.
const (
	defaultInitialDelay = 500 * time.Millisecond
	defaultMaxDelay     = 30 * time.Second
)

// ErrExhausted — все попытки исчерпаны.
var ErrExhausted = errors.New("retry attempts exhausted")

// Policy — параметры одного retry-scope.
type Policy struct {
	// MaxAttempts — максимальное число вызовов операции (<= 0 означает 1).
	MaxAttempts int

	// InitialDelay — задержка перед второй попыткой (default: 500ms).
	InitialDelay time.Duration

	// MaxDelay — верхняя граница задержки (default: 30s).
	MaxDelay time.Duration

	// OnRetry вызывается перед ожиданием очередной попытки (опционально).
	OnRetry func(attempt int, err error, delay time.Duration)
}

// Attempts возвращает эффективный лимит попыток.
func (p Policy) Attempts() int {
	if p.MaxAttempts <= 0 {
		return 1
	}
	return p.MaxAttempts
}

// backOff строит экспоненциальный backoff с jitter.
// MaxElapsedTime = 0: число попыток ограничивает только MaxAttempts.
func (p Policy) backOff() *backoff.ExponentialBackOff {
	initial := p.InitialDelay
	if initial <= 0 {
		initial = defaultInitialDelay
	}

	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = defaultMaxDelay
	}
	if maxDelay < initial {
		maxDelay = initial
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.MaxInterval = maxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	return b
}

// ExhaustedError возвращается, когда лимит попыток исчерпан.
// Оборачивает последнюю ошибку операции.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("%s after %d attempts: %v", ErrExhausted, e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}

// Is позволяет проверять errors.Is(err, ErrExhausted).
func (e *ExhaustedError) Is(target error) bool {
	return target == ErrExhausted
}

// Do выполняет op с повторами согласно policy.
//
// Алгоритм:
//  1. Вызываем op; успех — возвращаем результат.
//  2. Ошибка — спрашиваем classify.
//  3. Retry и попытки не исчерпаны — ждём backoff и повторяем.
//  4. Propagate — возвращаем ошибку сразу.
//  5. Лимит исчерпан — возвращаем *ExhaustedError с последней ошибкой.
//
// Отмена ctx прерывает ожидание и возвращает ctx.Err().
func Do[T any](ctx context.Context, p Policy, classify Classifier, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	maxAttempts := p.Attempts()
	b := p.backOff()

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		// Операция упала из-за отмены — не повторяем
		if ctx.Err() != nil {
			return zero, err
		}

		if classify == nil || classify(err) != Retry {
			return zero, err
		}

		if attempt >= maxAttempts {
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			return zero, &ExhaustedError{Attempts: attempt, Err: err}
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		// Ждём с учётом context
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// Attempts возвращает число попыток, записанное в ошибке Do,
// или 0, если ошибка не является *ExhaustedError.
func Attempts(err error) int {
	var ex *ExhaustedError
	if errors.As(err, &ex) {
		return ex.Attempts
	}
	return 0
}
