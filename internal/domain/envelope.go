package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrMissingMessageID — у сообщения нет идентификатора.
var ErrMissingMessageID = errors.New("message id is required")

// Envelope — конверт сообщения шины: заголовок, тело и служебный footer.
//
// Формат общий для всех сервисов системы трекинга; тип тела
// определяется routing key.
type Envelope[T any] struct {
	Header Header `json:"header"`
	Body   T      `json:"body"`
	Footer Footer `json:"footer"`
}

// Header — идентификация сообщения.
type Header struct {
	// MessageID — уникальный идентификатор сообщения (ключ идемпотентности).
	MessageID uuid.UUID `json:"message_id"`

	// CorrelationID связывает сообщение с исходным запросом.
	CorrelationID uuid.UUID `json:"correlation_id"`

	// CreatedAt — время создания отправителем.
	CreatedAt time.Time `json:"created_at"`
}

// Footer — сведения об отправителе.
type Footer struct {
	// Sender — имя сервиса-отправителя.
	Sender string `json:"sender,omitempty"`

	// Assembly — сборка/версия отправителя.
	Assembly string `json:"assembly,omitempty"`

	// Environment — окружение отправителя (dev, staging, production).
	Environment string `json:"environment,omitempty"`

	// Route — маршрут публикации, например {"publisher": "ping.vehicle"}.
	Route map[string]string `json:"route,omitempty"`

	// Fingerprint — идентификатор точки входа, породившей сообщение.
	Fingerprint string `json:"fingerprint,omitempty"`

	// Hint — подсказка получателю о результате операции.
	Hint Hint `json:"hint,omitempty"`
}

// RouteKeyPublisher — ключ Footer.Route с routing key публикации.
const RouteKeyPublisher = "publisher"

// NewHeader создаёт заголовок с новым MessageID.
// Нулевой correlationID заменяется на MessageID.
func NewHeader(correlationID uuid.UUID) Header {
	id := uuid.New()
	if correlationID == uuid.Nil {
		correlationID = id
	}
	return Header{
		MessageID:     id,
		CorrelationID: correlationID,
		CreatedAt:     time.Now().UTC(),
	}
}

// Validate проверяет заголовок и, если тело умеет, само тело.
func (e *Envelope[T]) Validate() error {
	if e.Header.MessageID == uuid.Nil {
		return ErrMissingMessageID
	}
	if e.Footer.Hint != "" && !e.Footer.Hint.IsValid() {
		return fmt.Errorf("unknown hint %q", e.Footer.Hint)
	}
	if v, ok := any(&e.Body).(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return fmt.Errorf("body: %w", err)
		}
	}
	return nil
}

// PublisherRoute возвращает routing key публикации из footer.
func (e *Envelope[T]) PublisherRoute() string {
	return e.Footer.Route[RouteKeyPublisher]
}
