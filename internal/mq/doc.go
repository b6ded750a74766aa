// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - config.go     — BrokerConfig: разбор host[:port], маршруты, валидация
//   - errors.go     — ErrorKind и классификаторы для retry
//   - connection.go — Dialer, Session (соединение + канал), Connect с повторами
//   - topology.go   — topic exchange, exclusive очередь, привязки
//   - codec.go      — Decoder[T] и JSON-декодер
//   - consumer.go   — Consumer[T]: decode → callback → ack
//   - publisher.go  — публикация JSON-сообщений
//   - tracing.go    — trace context в заголовках AMQP
//
// Два независимых retry-scope:
//   - подключение и топология — повторяются только сетевые ошибки;
//   - callback сообщения — повторяются только ошибки KindConnectivity,
//     тело не декодируется повторно.
//
// Подтверждение отправляется только после успешного callback.
// Сообщения с ошибкой формата отклоняются без requeue.
package mq
