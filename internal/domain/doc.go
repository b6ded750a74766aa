// Package domain содержит модель сообщений системы трекинга.
//
// Основные сущности:
//   - Envelope[T] — конверт сообщения: Header (идентификаторы), Body, Footer (отправитель)
//   - Ping — сигнал о состоянии транспорта, PingModel = Envelope[Ping]
//   - VehicleStatus, Hint — перечисления
package domain
