package mq

import (
	"context"
	"fmt"
	"sync"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"
)

// journal — общий журнал событий фейков (callback, ack, nack, reject).
type journal struct {
	mu     sync.Mutex
	events []string
}

func (j *journal) add(format string, args ...any) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, fmt.Sprintf(format, args...))
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.events...)
}

func (j *journal) count(prefix string) int {
	n := 0
	for _, e := range j.snapshot() {
		if len(e) >= len(prefix) && e[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

// fakeAcknowledger реализует amqp.Acknowledger и пишет исходы в журнал.
type fakeAcknowledger struct {
	log    *journal
	ackErr error
}

func (a *fakeAcknowledger) deliver(tag uint64, body string, routingKey string) amqp.Delivery {
	return amqp.Delivery{
		Acknowledger: a,
		DeliveryTag:  tag,
		RoutingKey:   routingKey,
		MessageId:    fmt.Sprintf("m%d", tag),
		Body:         []byte(body),
	}
}

func (a *fakeAcknowledger) Ack(tag uint64, multiple bool) error {
	if a.ackErr != nil {
		return a.ackErr
	}
	a.log.add("ack:%d:multiple=%t", tag, multiple)
	return nil
}

func (a *fakeAcknowledger) Nack(tag uint64, multiple, requeue bool) error {
	a.log.add("nack:%d:requeue=%t", tag, requeue)
	return nil
}

func (a *fakeAcknowledger) Reject(tag uint64, requeue bool) error {
	a.log.add("reject:%d:requeue=%t", tag, requeue)
	return nil
}

// fakeChannel записывает объявления топологии.
type fakeChannel struct {
	mu sync.Mutex

	exchanges []string
	qos       []int
	queues    []amqp.Queue
	bindings  []string
	consumed  []string
	published []amqp.Publishing
	keys      []string

	deliveries chan amqp.Delivery

	exchangeErr error
	bindErr     error
	publishErr  error
	closed      bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{deliveries: make(chan amqp.Delivery, 16)}
}

func (c *fakeChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.exchangeErr != nil {
		return c.exchangeErr
	}
	c.exchanges = append(c.exchanges, fmt.Sprintf("%s:%s:durable=%t:autodelete=%t", name, kind, durable, autoDelete))
	return nil
}

func (c *fakeChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.qos = append(c.qos, prefetchCount, prefetchSize)
	if global {
		c.qos = append(c.qos, -1)
	}
	return nil
}

func (c *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := amqp.Queue{Name: fmt.Sprintf("amq.gen-%d", len(c.queues)+1)}
	if name != "" || durable || !autoDelete || !exclusive {
		return amqp.Queue{}, fmt.Errorf("unexpected queue args: %q durable=%t autodelete=%t exclusive=%t", name, durable, autoDelete, exclusive)
	}
	c.queues = append(c.queues, q)
	return q, nil
}

func (c *fakeChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bindErr != nil {
		return c.bindErr
	}
	c.bindings = append(c.bindings, exchange+"->"+name+":"+key)
	return nil
}

func (c *fakeChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if autoAck {
		return nil, fmt.Errorf("auto-ack must be disabled")
	}
	c.consumed = append(c.consumed, queue)
	return c.deliveries, nil
}

func (c *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.publishErr != nil {
		return c.publishErr
	}
	c.published = append(c.published, msg)
	c.keys = append(c.keys, exchange+"/"+key)
	return nil
}

func (c *fakeChannel) NotifyClose(ch chan *amqp.Error) chan *amqp.Error {
	return ch
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// fakeConnection отдаёт заранее созданный канал.
type fakeConnection struct {
	ch     *fakeChannel
	notify chan *amqp.Error

	mu     sync.Mutex
	closed bool
}

func (c *fakeConnection) Channel() (Channel, error) {
	return c.ch, nil
}

func (c *fakeConnection) NotifyClose(ch chan *amqp.Error) chan *amqp.Error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notify = ch
	return ch
}

// drop имитирует обрыв соединения брокером.
func (c *fakeConnection) drop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.notify != nil {
		c.notify <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "CONNECTION_FORCED"}
	}
}

func (c *fakeConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *fakeConnection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// fakeDialer первые failures попыток возвращает ECONNREFUSED.
type fakeDialer struct {
	failures int
	err      error

	mu    sync.Mutex
	dials int
	conns []*fakeConnection
	newCh func() *fakeChannel
}

func (d *fakeDialer) Dial(ctx context.Context, cfg BrokerConfig) (Connection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.dials++
	if d.dials <= d.failures {
		if d.err != nil {
			return nil, d.err
		}
		return nil, fmt.Errorf("dial amqp %s: %w", cfg.Address(), syscall.ECONNREFUSED)
	}

	ch := newFakeChannel()
	if d.newCh != nil {
		ch = d.newCh()
	}
	conn := &fakeConnection{ch: ch}
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) attempts() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) connection(i int) *fakeConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}

func testBroker() BrokerConfig {
	cfg, err := NewBrokerConfig(BrokerOptions{
		Host:     "rabbit",
		Exchange: "tracking",
		Username: "guest",
		Password: "guest",
		Routes:   []string{"eu.ping.vehicle", "us.ping.vehicle"},
	})
	if err != nil {
		panic(err)
	}
	return cfg
}
