package mq

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Tracking/internal/retry"
)

// ErrorKind — класс ошибки, определяющий политику обработки.
type ErrorKind int

const (
	// KindDomain — ошибка бизнес-логики (callback). Сообщение не подтверждается.
	KindDomain ErrorKind = iota

	// KindConnectivity — брокер недоступен, соединение сброшено, сетевой сбой.
	KindConnectivity

	// KindFormatCast — пустой payload или payload не декодируется в ожидаемый тип.
	KindFormatCast

	// KindValidation — некорректная конфигурация или отказ в доступе.
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindFormatCast:
		return "format"
	case KindValidation:
		return "validation"
	default:
		return "domain"
	}
}

// Ошибки пакета mq.
var (
	// ErrEmptyPayload — тело сообщения пустое или null.
	ErrEmptyPayload = errors.New("empty payload")

	// ErrMalformedPayload — тело сообщения не соответствует ожидаемому типу.
	ErrMalformedPayload = errors.New("malformed payload")

	// ErrInvalidConfig — конфигурация брокера не прошла валидацию.
	ErrInvalidConfig = errors.New("invalid broker config")

	// ErrConnectionLost — соединение или канал закрыты брокером.
	ErrConnectionLost = errors.New("broker connection lost")

	// ErrPublisherClosed — Publish после Close.
	ErrPublisherClosed = errors.New("publisher is closed")
)

// Error — ошибка с явным классом.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError оборачивает err в *Error с указанным классом. nil остаётся nil.
func NewError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Malformed помечает ошибку callback как ошибку формата:
// сообщение будет пропущено без повторов.
func Malformed(err error) error {
	return NewError(KindFormatCast, "", err)
}

// Transient помечает ошибку callback как временную:
// обработка сообщения будет повторена в пределах MessagePolicy.
func Transient(err error) error {
	return NewError(KindConnectivity, "", err)
}

// KindOf определяет класс ошибки.
//
// Явный *Error имеет приоритет; далее распознаются sentinel-ошибки пакета,
// *amqp.Error и сетевые ошибки. Всё остальное — KindDomain.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindDomain
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	switch {
	case errors.Is(err, ErrInvalidConfig):
		return KindValidation
	case errors.Is(err, ErrEmptyPayload), errors.Is(err, ErrMalformedPayload):
		return KindFormatCast
	case errors.Is(err, ErrConnectionLost):
		return KindConnectivity
	}

	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		return kindOfAMQP(amqpErr)
	}

	if isNetworkError(err) {
		return KindConnectivity
	}

	return KindDomain
}

// kindOfAMQP классифицирует ошибки протокола по reply-code.
func kindOfAMQP(e *amqp.Error) ErrorKind {
	switch e.Code {
	case amqp.AccessRefused, amqp.NotAllowed, amqp.InvalidPath,
		amqp.PreconditionFailed, amqp.NotFound, amqp.NotImplemented,
		amqp.CommandInvalid, amqp.SyntaxError:
		// Неверные credentials, vhost или параметры объявления — повтор не поможет
		return KindValidation
	case amqp.ConnectionForced, amqp.ChannelError, amqp.FrameError,
		amqp.UnexpectedFrame, amqp.ResourceError, amqp.InternalError,
		amqp.ResourceLocked:
		return KindConnectivity
	default:
		return KindDomain
	}
}

// isNetworkError распознаёт сбои транспорта.
func isNetworkError(err error) bool {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, net.ErrClosed),
		errors.Is(err, os.ErrDeadlineExceeded):
		return true
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// ConnectDecision — политика уровня соединения: повторяем только сетевые сбои.
func ConnectDecision(kind ErrorKind) retry.Decision {
	if kind == KindConnectivity {
		return retry.Retry
	}
	return retry.Propagate
}

// DeliveryDecision — политика уровня сообщения.
//
// Ошибка формата не повторяется: те же байты не декодируются иначе.
// Временные ошибки callback (KindConnectivity) повторяются.
// Ошибки домена распространяются сразу.
func DeliveryDecision(kind ErrorKind) retry.Decision {
	if kind == KindConnectivity {
		return retry.Retry
	}
	return retry.Propagate
}

// ClassifyConnect — retry.Classifier для установки соединения.
func ClassifyConnect(err error) retry.Decision {
	return ConnectDecision(KindOf(err))
}

// ClassifyDelivery — retry.Classifier для обработки сообщения.
func ClassifyDelivery(err error) retry.Decision {
	return DeliveryDecision(KindOf(err))
}
