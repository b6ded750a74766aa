package cli

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/shaiso/Tracking/internal/config"
	"github.com/shaiso/Tracking/internal/mq"
)

// Deps — зависимости команд.
type Deps struct {
	// LoadBroker читает настройки брокера (по умолчанию из окружения).
	LoadBroker func() (config.Broker, error)

	// Dialer (опционально; default: mq.AMQPDialer).
	Dialer mq.Dialer

	// Logger для служебных сообщений (опционально; default: в никуда).
	Logger *slog.Logger

	// OpenLedger открывает журнал ping (по умолчанию PostgreSQL из окружения).
	// Возвращаемая функция освобождает соединения.
	OpenLedger func(ctx context.Context) (PingLister, func(), error)
}

func (d Deps) withDefaults() Deps {
	if d.LoadBroker == nil {
		d.LoadBroker = config.LoadBroker
	}
	if d.Dialer == nil {
		d.Dialer = mq.AMQPDialer{}
	}
	if d.Logger == nil {
		d.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if d.OpenLedger == nil {
		d.OpenLedger = openLedger
	}
	return d
}

// brokerConfig строит конфигурацию брокера для CLI.
//
// Маршруты из флагов заменяют маршруты окружения; фильтр по суффиксу
// в CLI не применяется.
func (d Deps) brokerConfig(routes []string) (config.Broker, mq.BrokerConfig, error) {
	b, err := d.LoadBroker()
	if err != nil {
		return config.Broker{}, mq.BrokerConfig{}, err
	}

	if len(routes) > 0 {
		b.Routes = strings.Join(routes, ",")
	}
	b.RouteSuffix = ""
	if b.ConnectionName == "" || b.ConnectionName == "tracking-worker" {
		b.ConnectionName = "tracking-cli"
	}

	cfg, err := b.BrokerConfig()
	if err != nil {
		return config.Broker{}, mq.BrokerConfig{}, err
	}
	return b, cfg, nil
}
