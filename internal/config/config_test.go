package config_test

import (
	"errors"
	"testing"
	"time"

	"github.com/shaiso/Tracking/internal/config"
	"github.com/shaiso/Tracking/internal/mq"
)

// TestLoadWithPrefix_Defaults — значения по умолчанию.
func TestLoadWithPrefix_Defaults(t *testing.T) {
	c, err := config.LoadWithPrefix("TRACKING_TEST_DEFAULTS")
	if err != nil {
		t.Fatalf("LoadWithPrefix error: %v", err)
	}

	// Broker
	if c.Broker.Vhost != "/" || c.Broker.RouteSuffix != "ping.vehicle" {
		t.Fatalf("Broker defaults wrong: %+v", c.Broker)
	}
	if c.Broker.ConnectAttempts != 5 || c.Broker.MessageAttempts != 3 {
		t.Fatalf("Broker attempts: want 5/3, got %d/%d", c.Broker.ConnectAttempts, c.Broker.MessageAttempts)
	}
	if c.Broker.RetryInitialDelay != 500*time.Millisecond || c.Broker.RetryMaxDelay != 30*time.Second {
		t.Fatalf("Broker retry delays wrong: %+v", c.Broker)
	}
	if c.Broker.RequeueOnFailure || c.Broker.StopOnFailure {
		t.Fatalf("Broker failure policy: want false/false, got %+v", c.Broker)
	}

	// Postgres
	if c.Postgres.DSN == "" {
		t.Fatalf("Postgres.DSN should have default, got empty")
	}
	if c.Postgres.MaxConns != 10 || !c.Postgres.Migrate {
		t.Fatalf("Postgres defaults wrong: %+v", c.Postgres)
	}

	// Redis
	if c.Redis.Addr != "" || c.Redis.TTL != 24*time.Hour {
		t.Fatalf("Redis defaults wrong: %+v", c.Redis)
	}

	// Metrics / Tracing / Ledger
	if c.Metrics.Addr != ":8082" {
		t.Fatalf("Metrics.Addr: want :8082, got %q", c.Metrics.Addr)
	}
	if c.Tracing.Enabled || c.Tracing.SampleRatio != 1 {
		t.Fatalf("Tracing defaults wrong: %+v", c.Tracing)
	}
	if c.Ledger.Retention != 0 || c.Ledger.RetentionSchedule != "@hourly" {
		t.Fatalf("Ledger defaults wrong: %+v", c.Ledger)
	}
}

// TestLoadWithPrefix_Overrides — значения из окружения.
func TestLoadWithPrefix_Overrides(t *testing.T) {
	const p = "TRACKING_TEST_OVR"

	t.Setenv(p+"_BROKER_HOST", "rabbit:5673")
	t.Setenv(p+"_BROKER_EXCHANGE", "tracking")
	t.Setenv(p+"_BROKER_USERNAME", "guest")
	t.Setenv(p+"_BROKER_PASSWORD", "secret")
	t.Setenv(p+"_BROKER_ROUTES", "eu.ping.vehicle, eu.tracking.vehicle,US.PING.VEHICLE")
	t.Setenv(p+"_BROKER_CONNECT_ATTEMPTS", "7")
	t.Setenv(p+"_BROKER_STOP_ON_FAILURE", "true")
	t.Setenv(p+"_POSTGRES_MAX_CONNS", "4")
	t.Setenv(p+"_REDIS_ADDR", "redis:6379")
	t.Setenv(p+"_LEDGER_RETENTION", "720h")
	t.Setenv("LOG_LEVEL", "DEBUG")

	c, err := config.LoadWithPrefix(p)
	if err != nil {
		t.Fatalf("LoadWithPrefix error: %v", err)
	}

	if c.Broker.ConnectAttempts != 7 || !c.Broker.StopOnFailure {
		t.Fatalf("Broker overrides not applied: %+v", c.Broker)
	}
	if c.Postgres.MaxConns != 4 {
		t.Fatalf("Postgres.MaxConns: want 4, got %d", c.Postgres.MaxConns)
	}
	if c.Redis.Addr != "redis:6379" {
		t.Fatalf("Redis.Addr: want redis:6379, got %q", c.Redis.Addr)
	}
	if c.Ledger.Retention != 720*time.Hour {
		t.Fatalf("Ledger.Retention: want 720h, got %v", c.Ledger.Retention)
	}
	// LOG_LEVEL без префикса, как у остальных сервисов
	if c.Log.Level != "DEBUG" {
		t.Fatalf("Log.Level: want DEBUG, got %q", c.Log.Level)
	}

	bc, err := c.Broker.BrokerConfig()
	if err != nil {
		t.Fatalf("BrokerConfig error: %v", err)
	}
	if bc.Host != "rabbit" || bc.Port != 5673 {
		t.Fatalf("host/port: want rabbit:5673, got %s:%d", bc.Host, bc.Port)
	}
	// Остаются только маршруты ping
	if len(bc.Routes) != 2 || bc.Routes[0] != "eu.ping.vehicle" || bc.Routes[1] != "US.PING.VEHICLE" {
		t.Fatalf("routes: got %v", bc.Routes)
	}

	if p := c.Broker.ConnectPolicy(); p.MaxAttempts != 7 {
		t.Fatalf("ConnectPolicy.MaxAttempts: want 7, got %d", p.MaxAttempts)
	}
	if p := c.Broker.MessagePolicy(); p.MaxAttempts != 3 {
		t.Fatalf("MessagePolicy.MaxAttempts: want 3, got %d", p.MaxAttempts)
	}
}

// TestBrokerConfig_Validation — без обязательных полей конфигурация не строится.
func TestBrokerConfig_Validation(t *testing.T) {
	b := config.Broker{
		Host:        "rabbit",
		Exchange:    "tracking",
		Username:    "guest",
		Password:    "guest",
		Routes:      "eu.tracking.vehicle",
		RouteSuffix: "ping.vehicle",
	}

	// Все маршруты отфильтрованы
	_, err := b.BrokerConfig()
	if !errors.Is(err, mq.ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig, got %v", err)
	}

	b.RouteSuffix = ""
	b.Host = ""
	if _, err := b.BrokerConfig(); !errors.Is(err, mq.ErrInvalidConfig) {
		t.Fatalf("want ErrInvalidConfig for empty host, got %v", err)
	}
}

// TestLoadWithPrefix_InvalidValue — некорректное значение в окружении.
func TestLoadWithPrefix_InvalidValue(t *testing.T) {
	t.Setenv("TRACKING_TEST_BAD_BROKER_CONNECT_ATTEMPTS", "many")

	if _, err := config.LoadWithPrefix("TRACKING_TEST_BAD"); err == nil {
		t.Fatal("expected error for non-numeric attempts")
	}
}

// TestLoadPostgres — секция журнала читается отдельно.
func TestLoadPostgres(t *testing.T) {
	t.Setenv("TRACKING_POSTGRES_DSN", "postgres://cli@db:5432/tracking")
	t.Setenv("TRACKING_POSTGRES_MAX_CONNS", "2")

	p, err := config.LoadPostgres()
	if err != nil {
		t.Fatalf("LoadPostgres error: %v", err)
	}
	if p.DSN != "postgres://cli@db:5432/tracking" || p.MaxConns != 2 {
		t.Fatalf("Postgres section wrong: %+v", p)
	}
	if !p.Migrate {
		t.Fatalf("Postgres.Migrate should default to true")
	}
}
