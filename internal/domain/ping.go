package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrMissingChassis — у ping нет номера шасси.
var ErrMissingChassis = errors.New("chassis number is required")

// RoutePingSuffix — суффикс routing key, по которому журнал выбирает ping-сообщения.
const RoutePingSuffix = "ping.vehicle"

// Ping — сигнал о состоянии транспортного средства.
type Ping struct {
	// ChassisNumber — номер шасси (идентификатор транспорта).
	ChassisNumber string `json:"chassis_number"`

	// Status — состояние связи.
	Status VehicleStatus `json:"status"`

	// Message — произвольный текст от устройства.
	Message string `json:"message,omitempty"`

	// Timestamp — время сигнала на стороне устройства.
	Timestamp time.Time `json:"timestamp"`
}

// UnmarshalJSON декодирует ping. Отсутствующий статус становится UNKNOWN.
func (p *Ping) UnmarshalJSON(data []byte) error {
	type plain Ping
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Status == "" {
		v.Status = VehicleStatusUnknown
	}
	*p = Ping(v)
	return nil
}

// Validate проверяет ping. Значение не изменяется.
func (p *Ping) Validate() error {
	if strings.TrimSpace(p.ChassisNumber) == "" {
		return ErrMissingChassis
	}
	if !p.Status.IsValid() {
		return fmt.Errorf("%w %q", ErrUnknownStatus, p.Status)
	}
	return nil
}

// PingModel — ping в конверте шины.
type PingModel = Envelope[Ping]

// NewPing создаёт конверт с ping.
// Время сигнала и заголовок заполняются текущими значениями,
// пустой статус заменяется на UNKNOWN.
func NewPing(chassis string, status VehicleStatus, message string, correlationID uuid.UUID, footer Footer) PingModel {
	header := NewHeader(correlationID)
	if status == "" {
		status = VehicleStatusUnknown
	}
	if footer.Hint == "" {
		footer.Hint = HintOK
	}
	return PingModel{
		Header: header,
		Body: Ping{
			ChassisNumber: strings.TrimSpace(chassis),
			Status:        status,
			Message:       message,
			Timestamp:     header.CreatedAt,
		},
		Footer: footer,
	}
}
