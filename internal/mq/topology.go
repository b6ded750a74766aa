package mq

import (
	"fmt"
	"strings"
)

// ExchangeKind — тип обменника потребителя.
const ExchangeKind = "topic"

// DefaultPrefetch — не более одного неподтверждённого сообщения на канал.
const DefaultPrefetch = 1

// Topology — объявленная топология одной сессии.
type Topology struct {
	Exchange string
	Queue    string
	Routes   []string
	Prefetch int
}

// DeclareTopology объявляет обменник, QoS, очередь и привязки.
//
// Шаги:
//  1. Durable topic exchange (повторное объявление с теми же параметрами — no-op)
//  2. QoS: prefetchCount, prefetchSize = 0, global = false (на канал)
//  3. Exclusive очередь с именем от сервера (живёт, пока живо соединение)
//  4. Привязка очереди к обменнику для каждого routing key
func DeclareTopology(ch Channel, cfg BrokerConfig, prefetch int) (Topology, error) {
	if prefetch <= 0 {
		prefetch = DefaultPrefetch
	}

	if err := DeclareExchange(ch, cfg.Exchange); err != nil {
		return Topology{}, err
	}

	if err := ch.Qos(prefetch, 0, false); err != nil {
		return Topology{}, fmt.Errorf("set qos: %w", err)
	}

	q, err := ch.QueueDeclare(
		"",    // name (генерирует сервер)
		false, // durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return Topology{}, fmt.Errorf("declare queue: %w", err)
	}

	for _, route := range cfg.Routes {
		err := ch.QueueBind(
			q.Name,       // queue name
			route,        // routing key
			cfg.Exchange, // exchange
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return Topology{}, fmt.Errorf("bind queue %s to %s with %q: %w", q.Name, cfg.Exchange, route, err)
		}
	}

	return Topology{
		Exchange: cfg.Exchange,
		Queue:    q.Name,
		Routes:   cfg.Routes,
		Prefetch: prefetch,
	}, nil
}

// DeclareExchange объявляет durable topic exchange.
func DeclareExchange(ch Channel, name string) error {
	err := ch.ExchangeDeclare(
		name,         // name
		ExchangeKind, // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	return nil
}

// Describe возвращает описание топологии для логирования и CLI.
func (t Topology) Describe() string {
	var b strings.Builder

	queue := t.Queue
	if queue == "" {
		queue = "<server-named, exclusive>"
	}

	fmt.Fprintf(&b, "%s (%s, durable)\n", t.Exchange, ExchangeKind)
	fmt.Fprintf(&b, "└── %s [prefetch: %d]\n", queue, t.Prefetch)
	for i, r := range t.Routes {
		branch := "├──"
		if i == len(t.Routes)-1 {
			branch = "└──"
		}
		fmt.Fprintf(&b, "      %s routing: %s\n", branch, r)
	}

	return b.String()
}

// PlannedTopology — топология, которую объявит потребитель с данной конфигурацией.
func PlannedTopology(cfg BrokerConfig) Topology {
	return Topology{
		Exchange: cfg.Exchange,
		Routes:   cfg.Routes,
		Prefetch: DefaultPrefetch,
	}
}
