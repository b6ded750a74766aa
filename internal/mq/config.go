package mq

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Default configuration values.
const (
	DefaultPort           = 5672
	DefaultVhost          = "/"
	defaultConnectTimeout = 10 * time.Second
	defaultHeartbeat      = 10 * time.Second
)

// BrokerConfig — параметры подключения к брокеру и топологии потребителя.
//
// Создаётся через NewBrokerConfig и после этого не изменяется.
type BrokerConfig struct {
	Host     string
	Port     int
	Vhost    string
	Exchange string
	Username string
	Password string

	// Routes — routing-key паттерны (порядок сохраняется, дубликаты удалены).
	Routes []string

	// ConnectionName — имя соединения в management UI (опционально).
	ConnectionName string

	// ConnectTimeout ограничивает TCP-подключение и handshake.
	ConnectTimeout time.Duration

	// Heartbeat — интервал AMQP heartbeat.
	Heartbeat time.Duration
}

// BrokerOptions — исходные значения конфигурации (как в env/флагах).
type BrokerOptions struct {
	// Host — "hostname[:port]".
	Host           string
	Vhost          string
	Exchange       string
	Username       string
	Password       string
	Routes         []string
	ConnectionName string
	ConnectTimeout time.Duration
	Heartbeat      time.Duration
}

// NewBrokerConfig разбирает и валидирует конфигурацию.
// Никакого сетевого I/O не выполняется.
func NewBrokerConfig(opts BrokerOptions) (BrokerConfig, error) {
	host, port, err := ParseHost(opts.Host)
	if err != nil {
		return BrokerConfig{}, err
	}

	cfg := BrokerConfig{
		Host:           host,
		Port:           port,
		Vhost:          opts.Vhost,
		Exchange:       strings.TrimSpace(opts.Exchange),
		Username:       opts.Username,
		Password:       opts.Password,
		Routes:         normalizeRoutes(opts.Routes),
		ConnectionName: opts.ConnectionName,
		ConnectTimeout: opts.ConnectTimeout,
		Heartbeat:      opts.Heartbeat,
	}

	if cfg.Vhost == "" {
		cfg.Vhost = DefaultVhost
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = defaultHeartbeat
	}

	if err := cfg.Validate(); err != nil {
		return BrokerConfig{}, err
	}

	return cfg, nil
}

// Validate проверяет обязательные поля.
func (c BrokerConfig) Validate() error {
	var errs []error

	if c.Host == "" {
		errs = append(errs, errors.New("host is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d out of range", c.Port))
	}
	if c.Exchange == "" {
		errs = append(errs, errors.New("exchange is required"))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if c.Password == "" {
		errs = append(errs, errors.New("password is required"))
	}
	if len(c.Routes) == 0 {
		errs = append(errs, errors.New("at least one route is required"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Address возвращает "host:port".
func (c BrokerConfig) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URI возвращает AMQP URI для amqp.DialConfig.
func (c BrokerConfig) URI() string {
	u := amqp.URI{
		Scheme:   "amqp",
		Host:     c.Host,
		Port:     c.Port,
		Username: c.Username,
		Password: c.Password,
		Vhost:    c.Vhost,
	}
	return u.String()
}

// String — представление для логов, без пароля.
func (c BrokerConfig) String() string {
	return fmt.Sprintf("amqp://%s@%s%s exchange=%s routes=%v", c.Username, c.Address(), c.Vhost, c.Exchange, c.Routes)
}

// ParseHost разбирает "hostname[:port]".
// Без порта используется DefaultPort.
func ParseHost(raw string) (string, int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}

	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		var addrErr *net.AddrError
		if !errors.As(err, &addrErr) || addrErr.Err != "missing port in address" {
			return "", 0, fmt.Errorf("%w: parse host %q: %v", ErrInvalidConfig, raw, err)
		}
		// Порт не указан: "rabbit" или "[::1]"
		host = strings.TrimSuffix(strings.TrimPrefix(raw, "["), "]")
		portStr = ""
	}

	if host == "" {
		return "", 0, fmt.Errorf("%w: empty hostname in %q", ErrInvalidConfig, raw)
	}

	if portStr == "" {
		return host, DefaultPort, nil
	}

	port, err := strconv.Atoi(portStr)
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, fmt.Errorf("%w: invalid port %q", ErrInvalidConfig, portStr)
	}

	return host, port, nil
}

// ParseRoutes разбирает routing keys в исходной форме "a.b,c.#".
func ParseRoutes(src string) []string {
	return normalizeRoutes(strings.Split(src, ","))
}

// FilterRoutes оставляет routes, заканчивающиеся на suffix (без учёта регистра).
// Пустой suffix возвращает routes без изменений.
func FilterRoutes(routes []string, suffix string) []string {
	if suffix == "" {
		return routes
	}

	suffix = strings.ToLower(suffix)
	var out []string
	for _, r := range routes {
		if strings.HasSuffix(strings.ToLower(r), suffix) {
			out = append(out, r)
		}
	}
	return out
}

// normalizeRoutes убирает пробелы, пустые элементы и дубликаты, сохраняя порядок.
func normalizeRoutes(routes []string) []string {
	seen := make(map[string]struct{}, len(routes))
	out := make([]string, 0, len(routes))

	for _, r := range routes {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}

	return out
}
