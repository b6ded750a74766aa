package worker

import "errors"

// Ошибки воркера.
var (
	// ErrNoConsumer — Worker создан без потребителя.
	ErrNoConsumer = errors.New("consumer is required")
)
