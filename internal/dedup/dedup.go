// Package dedup хранит отметки об обработанных сообщениях.
//
// Повторная доставка (redelivery после обрыва до ack) распознаётся
// по MessageID и не доходит до журнала второй раз.
package dedup

import "context"

// Store — отметки обработанных сообщений.
type Store interface {
	// Seen проверяет, обработано ли сообщение.
	Seen(ctx context.Context, id string) (bool, error)

	// Remember отмечает сообщение обработанным.
	Remember(ctx context.Context, id string) error
}

// NopStore — Store без хранения: любое сообщение считается новым.
type NopStore struct{}

var _ Store = NopStore{}

func (NopStore) Seen(context.Context, string) (bool, error) { return false, nil }

func (NopStore) Remember(context.Context, string) error { return nil }
