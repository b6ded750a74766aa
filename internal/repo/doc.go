// Package repo — хранилище журнала ping-событий в PostgreSQL.
//
// Журнал append-only: запись идентифицируется MessageID конверта,
// повторная доставка того же сообщения не создаёт дубликат.
// Сбои соединения с БД возвращаются как ErrUnavailable.
package repo
