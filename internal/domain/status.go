package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus — статус не входит в перечень VehicleStatus.
var ErrUnknownStatus = errors.New("unknown vehicle status")

// VehicleStatus — состояние связи с транспортным средством.
type VehicleStatus string

const (
	// VehicleStatusOnline — транспорт на связи.
	VehicleStatusOnline VehicleStatus = "ONLINE"

	// VehicleStatusOffline — транспорт не отвечает.
	VehicleStatusOffline VehicleStatus = "OFFLINE"

	// VehicleStatusUnknown — состояние не определено.
	VehicleStatusUnknown VehicleStatus = "UNKNOWN"
)

// String возвращает строковое представление VehicleStatus.
func (s VehicleStatus) String() string {
	return string(s)
}

// IsValid проверяет, что статус известен.
func (s VehicleStatus) IsValid() bool {
	switch s {
	case VehicleStatusOnline, VehicleStatusOffline, VehicleStatusUnknown:
		return true
	default:
		return false
	}
}

// ParseVehicleStatus парсит строку в VehicleStatus без учёта регистра.
// Пустая строка даёт VehicleStatusUnknown, неизвестное значение — ErrUnknownStatus.
func ParseVehicleStatus(s string) (VehicleStatus, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return VehicleStatusUnknown, nil
	}

	vs := VehicleStatus(s)
	if !vs.IsValid() {
		return "", fmt.Errorf("%w %q (ONLINE, OFFLINE, UNKNOWN)", ErrUnknownStatus, s)
	}
	return vs, nil
}

// UnmarshalJSON разбирает статус через ParseVehicleStatus.
func (s *VehicleStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("vehicle status: %w", err)
	}

	vs, err := ParseVehicleStatus(raw)
	if err != nil {
		return err
	}
	*s = vs
	return nil
}

// Hint — подсказка получателю о результате операции отправителя.
type Hint string

const (
	HintOK      Hint = "OK"
	HintWarning Hint = "WARNING"
	HintError   Hint = "ERROR"
)

// IsValid проверяет, что подсказка известна.
func (h Hint) IsValid() bool {
	switch h {
	case HintOK, HintWarning, HintError:
		return true
	default:
		return false
	}
}
