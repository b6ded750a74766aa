package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tracking"

var (
	// Deliveries — обработанные доставки по результату: acked, skipped, failed.
	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deliveries_total",
		Help:      "Total number of broker deliveries by result",
	}, []string{"exchange", "result"})

	// DeliveryDuration — время от получения до подтверждения.
	DeliveryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "delivery_duration_seconds",
		Help:      "Time spent processing a single delivery",
		Buckets:   prometheus.DefBuckets,
	}, []string{"exchange"})

	// ConnectAttempts — попытки подключения к брокеру: success, failure.
	ConnectAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "broker_connect_attempts_total",
		Help:      "Total number of broker connection attempts by outcome",
	}, []string{"outcome"})

	// ConsumerState — текущее состояние потребителя (числовой код mq.State).
	ConsumerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "consumer_state",
		Help:      "Current consumer state code",
	})

	// Published — опубликованные сообщения.
	Published = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "published_total",
		Help:      "Total number of published messages",
	}, []string{"exchange", "routing_key"})

	// LedgerWrites — записи в журнал: inserted, duplicate, error.
	LedgerWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ledger_writes_total",
		Help:      "Total number of ledger write attempts by result",
	}, []string{"result"})

	// RetentionDeleted — записи, удалённые задачей очистки.
	RetentionDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retention_deleted_total",
		Help:      "Total number of ledger rows removed by retention",
	})
)
