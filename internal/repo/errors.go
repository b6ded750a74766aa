package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable — БД временно недоступна (обрыв соединения, таймаут,
	// перезапуск сервера). Операцию можно повторить.
	ErrUnavailable = errors.New("database unavailable")
)

// IsUnavailable проверяет, что ошибка временная.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// wrapErr помечает сбои соединения как ErrUnavailable.
func wrapErr(err error) error {
	if err == nil || !isConnError(err) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUnavailable, err)
}

func isConnError(err error) bool {
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08xxx connection_exception, 57P01 admin_shutdown,
		// 57P03 cannot_connect_now, 53300 too_many_connections
		switch {
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == "57P01",
			pgErr.Code == "57P03",
			pgErr.Code == "53300":
			return true
		}
		return false
	}

	return pgconn.Timeout(err) || pgconn.SafeToRetry(err)
}
