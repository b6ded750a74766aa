// Package cli реализует инструмент командной строки tracking.
//
// # Обзор
//
// CLI работает с брокером напрямую, настройки подключения берёт
// из тех же переменных окружения, что и воркер (TRACKING_BROKER_*).
//
// # Ключевые компоненты
//
// ## Deps
//
// Зависимости команд: загрузка настроек брокера, Dialer и доступ к журналу
// ping (TRACKING_POSTGRES_*).
// В тестах подменяются фейками.
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: tracking tail --json | jq .
//
// ## Commands
//
//   - publish ping: публикация ping (однократно или по --cron)
//   - topology: топология, которую объявляет воркер
//   - tail: печать сообщений с привязанных маршрутов
//   - ledger list: ping транспорта из журнала, новые первыми
//
// Каждая команда создаётся фабричной функцией (NewPublishCmd и т.д.),
// принимающей Deps и outputFn — замыкание для ленивого создания
// Output после парсинга PersistentFlags.
package cli
