package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/shaiso/Tracking/internal/retry"
	"github.com/shaiso/Tracking/internal/telemetry"
)

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения (пустой — сгенерируется).
	ID string

	// CorrelationID — идентификатор цепочки сообщений.
	CorrelationID string

	// Timestamp — время создания (нулевое — time.Now()).
	Timestamp time.Time

	// Payload сериализуется в JSON.
	Payload any
}

// Publisher публикует JSON-сообщения в topic exchange.
//
// Держит собственную сессию; безопасен для использования из нескольких горутин.
// Публикация повторяется по политике подключения: при сетевой ошибке сессия
// закрывается и следующая попытка открывает новую.
type Publisher struct {
	dialer Dialer
	broker BrokerConfig
	policy retry.Policy
	logger *slog.Logger

	mu      sync.Mutex
	session *Session
	closed  bool
}

// NewPublisher подключается к брокеру и объявляет exchange.
func NewPublisher(ctx context.Context, dialer Dialer, cfg BrokerConfig, policy retry.Policy, logger *slog.Logger) (*Publisher, error) {
	if cfg.Exchange == "" {
		return nil, fmt.Errorf("%w: exchange is required", ErrInvalidConfig)
	}
	if dialer == nil {
		dialer = AMQPDialer{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s, err := Connect(ctx, dialer, cfg, policy, logger)
	if err != nil {
		return nil, err
	}

	if err := DeclareExchange(s.Channel(), cfg.Exchange); err != nil {
		s.Close()
		return nil, err
	}

	return &Publisher{
		dialer:  dialer,
		broker:  cfg,
		policy:  policy,
		logger:  logger,
		session: s,
	}, nil
}

// Publish публикует сообщение с routing key.
// Возвращает ID опубликованного сообщения.
func (p *Publisher) Publish(ctx context.Context, routingKey string, msg Message) (string, error) {
	if routingKey == "" {
		return "", fmt.Errorf("%w: routing key is required", ErrInvalidConfig)
	}

	body, err := json.Marshal(msg.Payload)
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	exchange := p.broker.Exchange
	ctx, span := tracer.Start(ctx, "publish "+routingKey,
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			attribute.String("messaging.system", "rabbitmq"),
			attribute.String("messaging.destination.name", exchange),
			attribute.String("messaging.rabbitmq.destination.routing_key", routingKey),
			attribute.String("messaging.message.id", msg.ID),
		),
	)
	defer span.End()

	publishing := amqp.Publishing{
		Headers:       injectTrace(ctx, nil),
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:     msg.ID,
		CorrelationId: msg.CorrelationID,
		Timestamp:     msg.Timestamp,
		Body:          body,
	}

	policy := p.policy
	policy.OnRetry = connectRetryLogger(p.logger, p.broker, policy.OnRetry)

	_, err = retry.Do(ctx, policy, ClassifyConnect, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.publish(ctx, routingKey, publishing)
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
	}

	telemetry.Published.WithLabelValues(exchange, routingKey).Inc()
	p.logger.Debug("published message",
		"exchange", exchange,
		"routing_key", routingKey,
		"message_id", msg.ID,
		"correlation_id", msg.CorrelationID,
	)

	return msg.ID, nil
}

// publish — одна попытка: при необходимости открывает сессию и публикует.
// Сетевая ошибка закрывает сессию, чтобы следующая попытка открыла новую.
func (p *Publisher) publish(ctx context.Context, routingKey string, msg amqp.Publishing) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	if p.session == nil {
		s, err := p.reopen(ctx)
		if err != nil {
			return err
		}
		p.session = s
	}

	err := p.session.Channel().PublishWithContext(
		ctx,
		p.broker.Exchange, // exchange
		routingKey,        // routing key
		false,             // mandatory
		false,             // immediate
		msg,
	)
	if err != nil && KindOf(err) == KindConnectivity {
		p.logger.Warn("publish channel failed, dropping session", "error", err)
		p.session.Close()
		p.session = nil
	}
	return err
}

// reopen открывает новую сессию и заново объявляет exchange.
func (p *Publisher) reopen(ctx context.Context) (*Session, error) {
	s, err := OpenSession(ctx, p.dialer, p.broker)
	if err != nil {
		telemetry.ConnectAttempts.WithLabelValues("failure").Inc()
		return nil, err
	}

	if err := DeclareExchange(s.Channel(), p.broker.Exchange); err != nil {
		s.Close()
		telemetry.ConnectAttempts.WithLabelValues("failure").Inc()
		return nil, err
	}

	telemetry.ConnectAttempts.WithLabelValues("success").Inc()
	p.logger.Info("publisher reconnected", "address", p.broker.Address())
	return s, nil
}

// Close закрывает сессию публикации. Последующие Publish возвращают ErrPublisherClosed.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	if p.session == nil {
		return nil
	}
	err := p.session.Close()
	p.session = nil
	return err
}
