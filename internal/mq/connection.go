package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Tracking/internal/retry"
	"github.com/shaiso/Tracking/internal/telemetry"
)

// Channel — подмножество *amqp.Channel, которое использует пакет.
// Позволяет подменять канал в тестах.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	Close() error
}

// Connection — подмножество *amqp.Connection.
type Connection interface {
	Channel() (Channel, error)
	NotifyClose(c chan *amqp.Error) chan *amqp.Error
	IsClosed() bool
	Close() error
}

// Dialer открывает соединение с брокером.
type Dialer interface {
	Dial(ctx context.Context, cfg BrokerConfig) (Connection, error)
}

// AMQPDialer — Dialer поверх amqp091-go.
type AMQPDialer struct{}

var _ Dialer = AMQPDialer{}

// Dial устанавливает соединение.
//
// ConnectTimeout ограничивает TCP-подключение и AMQP handshake:
// deadline снимается библиотекой после открытия соединения.
func (AMQPDialer) Dial(ctx context.Context, cfg BrokerConfig) (Connection, error) {
	props := amqp.NewConnectionProperties()
	if cfg.ConnectionName != "" {
		props.SetClientConnectionName(cfg.ConnectionName)
	}

	conn, err := amqp.DialConfig(cfg.URI(), amqp.Config{
		Vhost:      cfg.Vhost,
		Heartbeat:  cfg.Heartbeat,
		Locale:     "en_US",
		Properties: props,
		Dial: func(network, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: cfg.ConnectTimeout}
			c, err := d.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			if err := c.SetDeadline(time.Now().Add(cfg.ConnectTimeout)); err != nil {
				c.Close()
				return nil, err
			}
			return c, nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("dial amqp %s: %w", cfg.Address(), err)
	}

	return amqpConnection{conn}, nil
}

// amqpConnection адаптирует *amqp.Connection к интерфейсу Connection.
type amqpConnection struct {
	*amqp.Connection
}

func (c amqpConnection) Channel() (Channel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

// Session — соединение и канал, принадлежащие одному владельцу.
//
// Не разделяется между горутинами; Close освобождает оба ресурса.
type Session struct {
	conn Connection
	ch   Channel

	closeOnce sync.Once
	closeErr  error
}

// OpenSession открывает соединение и канал.
func OpenSession(ctx context.Context, dialer Dialer, cfg BrokerConfig) (*Session, error) {
	conn, err := dialer.Dial(ctx, cfg)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	return &Session{conn: conn, ch: ch}, nil
}

// Channel возвращает канал сессии.
func (s *Session) Channel() Channel {
	return s.ch
}

// NotifyClose подписывается на закрытие соединения.
func (s *Session) NotifyClose() <-chan *amqp.Error {
	return s.conn.NotifyClose(make(chan *amqp.Error, 1))
}

// Close закрывает канал, затем соединение. Повторный вызов безопасен.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		var errs []error

		if err := s.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}

		if err := s.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}

		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

// Connect открывает сессию с повторами для сетевых ошибок.
func Connect(ctx context.Context, dialer Dialer, cfg BrokerConfig, policy retry.Policy, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy.OnRetry = connectRetryLogger(logger, cfg, policy.OnRetry)

	return retry.Do(ctx, policy, ClassifyConnect, func(ctx context.Context) (*Session, error) {
		s, err := OpenSession(ctx, dialer, cfg)
		if err != nil {
			telemetry.ConnectAttempts.WithLabelValues("failure").Inc()
			return nil, err
		}
		telemetry.ConnectAttempts.WithLabelValues("success").Inc()
		logger.Info("connected to RabbitMQ", "address", cfg.Address(), "vhost", cfg.Vhost)
		return s, nil
	})
}

// connectRetryLogger логирует повторы подключения и вызывает next, если задан.
func connectRetryLogger(logger *slog.Logger, cfg BrokerConfig, next func(int, error, time.Duration)) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		logger.Warn("broker connection failed, retrying",
			"address", cfg.Address(),
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)
		if next != nil {
			next(attempt, err, delay)
		}
	}
}
