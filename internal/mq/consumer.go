package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Tracking/internal/retry"
	"github.com/shaiso/Tracking/internal/telemetry"
)

// State — состояние потребителя.
//
// Жизненный цикл:
//
//	Idle → Connecting → TopologyReady → Consuming → Stopped
//	                                       ↓    ↑
//	                                  Processing → Acking | Skipping
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateTopologyReady
	StateConsuming
	StateProcessing
	StateAcking
	StateSkipping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateTopologyReady:
		return "topology_ready"
	case StateConsuming:
		return "consuming"
	case StateProcessing:
		return "processing"
	case StateAcking:
		return "acking"
	case StateSkipping:
		return "skipping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Callback — обработчик сообщения.
//
// produce лениво возвращает декодированное сообщение. Вызывается синхронно
// в горутине потребителя; ошибка попадает в классификатор уровня сообщения.
type Callback[T any] func(ctx context.Context, produce func() T) error

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig[T any] struct {
	// Broker — проверенная конфигурация брокера.
	Broker BrokerConfig

	// Dialer (опционально; default: AMQPDialer).
	Dialer Dialer

	// Decoder (опционально; default: JSONDecoder[T](false)).
	Decoder Decoder[T]

	// Callback — обработчик сообщений (обязателен).
	Callback Callback[T]

	// ConnectPolicy — retry для соединения и топологии.
	ConnectPolicy retry.Policy

	// MessagePolicy — retry для callback одного сообщения.
	MessagePolicy retry.Policy

	// RequeueOnFailure — возвращать ли в очередь сообщение, callback которого упал.
	RequeueOnFailure bool

	// StopOnFailure — останавливать ли потребителя при ошибке домена.
	StopOnFailure bool

	// ConsumerTag (опционально; пустой — генерирует сервер).
	ConsumerTag string

	Logger *slog.Logger
}

// Consumer потребляет сообщения из exclusive-очереди, привязанной к topic exchange.
//
// Сообщения обрабатываются строго по одному (prefetch = 1):
// следующее не передаётся в callback, пока предыдущее не подтверждено
// или отклонено.
type Consumer[T any] struct {
	broker        BrokerConfig
	dialer        Dialer
	decode        Decoder[T]
	callback      Callback[T]
	connectPolicy retry.Policy
	messagePolicy retry.Policy
	requeue       bool
	stopOnFailure bool
	tag           string
	logger        *slog.Logger

	state           atomic.Int32
	connectAttempts atomic.Int64

	mu         sync.Mutex
	cancelFunc context.CancelFunc
}

// NewConsumer создаёт Consumer. Ошибки конфигурации возвращаются до любого I/O.
func NewConsumer[T any](cfg ConsumerConfig[T]) (*Consumer[T], error) {
	if cfg.Callback == nil {
		return nil, fmt.Errorf("%w: callback is required", ErrInvalidConfig)
	}
	if err := cfg.Broker.Validate(); err != nil {
		return nil, err
	}

	dialer := cfg.Dialer
	if dialer == nil {
		dialer = AMQPDialer{}
	}

	decode := cfg.Decoder
	if decode == nil {
		decode = JSONDecoder[T](false)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Consumer[T]{
		broker:        cfg.Broker,
		dialer:        dialer,
		decode:        decode,
		callback:      cfg.Callback,
		connectPolicy: cfg.ConnectPolicy,
		messagePolicy: cfg.MessagePolicy,
		requeue:       cfg.RequeueOnFailure,
		stopOnFailure: cfg.StopOnFailure,
		tag:           cfg.ConsumerTag,
		logger:        logger.With("exchange", cfg.Broker.Exchange),
	}
	c.connectPolicy.OnRetry = connectRetryLogger(c.logger, cfg.Broker, cfg.ConnectPolicy.OnRetry)

	return c, nil
}

// State возвращает текущее состояние.
func (c *Consumer[T]) State() State {
	return State(c.state.Load())
}

// ConnectAttempts возвращает число попыток подключения за время жизни.
func (c *Consumer[T]) ConnectAttempts() int {
	return int(c.connectAttempts.Load())
}

func (c *Consumer[T]) setState(s State) {
	c.state.Store(int32(s))
	telemetry.ConsumerState.Set(float64(s))
}

// Run подключается и потребляет сообщения до отмены ctx или фатальной ошибки.
//
// Подключение и объявление топологии выполняются в одном retry-scope
// (ConnectPolicy). Если соединение обрывается после начала потребления,
// сессия открывается заново в новом scope.
//
// Возвращает ctx.Err() при отмене.
func (c *Consumer[T]) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()

	defer cancel()
	defer c.setState(StateStopped)

	for {
		lost, err := retry.Do(ctx, c.connectPolicy, ClassifyConnect, c.session)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("consumer stopped", "error", err, "kind", KindOf(err))
			return err
		}

		// Сессия завершилась потерей соединения после начала потребления
		delay := c.connectPolicy.InitialDelay
		if delay <= 0 {
			delay = time.Second
		}
		c.logger.Warn("reconnecting", "reason", lost, "delay", delay)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Stop отменяет Run.
func (c *Consumer[T]) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// session — одна сессия: соединение → топология → потребление.
//
// Ошибка возвращается, если сессию не удалось установить или потребление
// остановлено. Потеря соединения после перехода в Consuming не считается
// ошибкой попытки: причина (ErrConnectionLost) возвращается как результат,
// и Run открывает сессию заново в новом retry-scope.
// Соединение и канал закрываются при любом выходе.
func (c *Consumer[T]) session(ctx context.Context) (error, error) {
	c.setState(StateConnecting)
	c.connectAttempts.Add(1)

	s, err := OpenSession(ctx, c.dialer, c.broker)
	if err != nil {
		telemetry.ConnectAttempts.WithLabelValues("failure").Inc()
		return nil, err
	}
	defer func() {
		if err := s.Close(); err != nil {
			c.logger.Warn("failed to close session", "error", err)
		}
	}()

	topo, err := DeclareTopology(s.Channel(), c.broker, DefaultPrefetch)
	if err != nil {
		telemetry.ConnectAttempts.WithLabelValues("failure").Inc()
		return nil, err
	}
	telemetry.ConnectAttempts.WithLabelValues("success").Inc()

	c.setState(StateTopologyReady)
	c.logger.Info("topology ready",
		"queue", topo.Queue,
		"routes", topo.Routes,
		"prefetch", topo.Prefetch,
	)

	deliveries, err := s.Channel().Consume(
		topo.Queue, // queue
		c.tag,      // consumer tag
		false,      // auto-ack (ack вручную)
		false,      // exclusive
		false,      // no-local
		false,      // no-wait
		nil,        // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}

	closed := s.NotifyClose()

	c.setState(StateConsuming)
	c.logger.Info("waiting for messages", "queue", topo.Queue)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case amqpErr := <-closed:
			c.logger.Warn("broker connection closed", "error", amqpErr)
			return fmt.Errorf("%w: %v", ErrConnectionLost, amqpErr), nil

		case d, ok := <-deliveries:
			if !ok {
				c.logger.Warn("deliveries channel closed", "queue", topo.Queue)
				return fmt.Errorf("%w: deliveries channel closed", ErrConnectionLost), nil
			}

			if err := c.handle(ctx, topo, d); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				if KindOf(err) == KindConnectivity {
					c.logger.Warn("channel failure while settling delivery", "error", err)
					return fmt.Errorf("%w: %w", ErrConnectionLost, err), nil
				}
				return nil, err
			}
			c.setState(StateConsuming)
		}
	}
}

// handle обрабатывает одну доставку: decode → callback → ack.
//
// Ошибка формата: сообщение отклоняется без requeue, возвращается nil.
// Ошибка домена: nack (requeue по конфигурации); ошибка возвращается
// только при StopOnFailure. Ошибка ack/nack — KindConnectivity.
func (c *Consumer[T]) handle(ctx context.Context, topo Topology, d amqp.Delivery) error {
	start := time.Now()
	defer func() {
		telemetry.DeliveryDuration.WithLabelValues(topo.Exchange).Observe(time.Since(start).Seconds())
	}()

	ctx, span := tracer.Start(extractTrace(ctx, d.Headers), "consume "+d.RoutingKey,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", topo.Exchange),
			attribute.String("messaging.rabbitmq.destination.routing_key", d.RoutingKey),
			attribute.String("messaging.message.id", d.MessageId),
		),
	)
	defer span.End()

	logger := telemetry.WithMessageID(telemetry.WithRoutingKey(c.logger, d.RoutingKey), d.MessageId).
		With("delivery_tag", d.DeliveryTag)
	ctx = telemetry.WithLogger(ctx, logger)

	c.setState(StateProcessing)

	// Декодируем один раз: повтор на тех же байтах ничего не изменит
	msg, err := c.decode(d.Body)
	if err != nil {
		if KindOf(err) == KindFormatCast {
			return c.skip(logger, topo, d, span, err)
		}
		// Decoder вернул не ошибку формата: обрабатываем как отказ callback
		return c.fail(logger, topo, d, span, fmt.Errorf("decode: %w", err))
	}

	_, err = retry.Do(ctx, c.messagePolicy, ClassifyDelivery, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.invoke(ctx, msg)
	})
	if err != nil {
		if ctx.Err() != nil {
			// Остановка: возвращаем сообщение в очередь
			if nackErr := d.Nack(false, true); nackErr != nil {
				logger.Warn("failed to requeue delivery on shutdown", "error", nackErr)
			}
			return ctx.Err()
		}
		if KindOf(err) == KindFormatCast {
			return c.skip(logger, topo, d, span, err)
		}
		return c.fail(logger, topo, d, span, err)
	}

	c.setState(StateAcking)
	if err := d.Ack(false); err != nil {
		span.RecordError(err)
		return NewError(KindConnectivity, "ack", err)
	}

	telemetry.Deliveries.WithLabelValues(topo.Exchange, "acked").Inc()
	logger.Info("message received and acknowledged")
	return nil
}

// invoke вызывает callback, превращая panic в ошибку домена.
func (c *Consumer[T]) invoke(ctx context.Context, msg T) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	return c.callback(ctx, func() T { return msg })
}

// skip отклоняет сообщение с ошибкой формата без requeue.
// Без этого prefetch = 1 заблокировал бы очередь.
func (c *Consumer[T]) skip(logger *slog.Logger, topo Topology, d amqp.Delivery, span trace.Span, cause error) error {
	c.setState(StateSkipping)

	span.RecordError(cause)
	span.SetStatus(codes.Error, "malformed message")
	telemetry.Deliveries.WithLabelValues(topo.Exchange, "skipped").Inc()

	logger.Error("failed to decode message, skipping",
		"error", cause,
		"body_size", len(d.Body),
	)

	if err := d.Reject(false); err != nil {
		return NewError(KindConnectivity, "reject", err)
	}
	return nil
}

// fail обрабатывает ошибку callback.
func (c *Consumer[T]) fail(logger *slog.Logger, topo Topology, d amqp.Delivery, span trace.Span, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, "callback failed")
	telemetry.Deliveries.WithLabelValues(topo.Exchange, "failed").Inc()

	logger.Error("message processing failed",
		"error", cause,
		"kind", KindOf(cause),
		"attempts", max(retry.Attempts(cause), 1),
		"requeue", c.requeue,
	)

	if err := d.Nack(false, c.requeue); err != nil {
		return NewError(KindConnectivity, "nack", err)
	}

	if c.stopOnFailure {
		return &Error{Kind: KindDomain, Op: "deliver", Err: cause}
	}
	return nil
}

// IsStopped проверяет, что err — штатная остановка.
func IsStopped(err error) bool {
	return errors.Is(err, context.Canceled)
}
