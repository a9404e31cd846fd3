package logic

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Celsius is a temperature that serialises with exactly one decimal place.
type Celsius float64

// MarshalJSON renders c rounded to one decimal, e.g. 21 as 21.0.
func (c Celsius) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(Round1(float64(c)), 'f', 1, 64)), nil
}

// Reading is one emitted sample. It is built once per tick and never mutated.
type Reading struct {
	DeviceID          int       `json:"device_id"`
	Timestamp         time.Time `json:"timestamp"`
	ActualTemperature Celsius   `json:"actual_temperature"`
	SetTemperature    Celsius   `json:"set_temperature"`
	ValvePosition     int       `json:"valve_position"`
	BoostState        bool      `json:"boost_state"`
	BatteryLow        bool      `json:"battery_low"`
	ControlMode       string    `json:"control_mode"`
}

// NewReading derives the reading for this tick from the device state.
// The timestamp keeps its location and is truncated to whole seconds.
func NewReading(deviceID int, now time.Time, s DeviceState) (Reading, error) {
	if !finite(s.ActualTemperature) || !finite(s.SetTemperature) {
		return Reading{}, fmt.Errorf("%w: temperature actual=%v set=%v", ErrInvalidReading, s.ActualTemperature, s.SetTemperature)
	}
	if s.ValvePosition < ValveMin || s.ValvePosition > ValveMax {
		return Reading{}, fmt.Errorf("%w: valve position %d", ErrInvalidReading, s.ValvePosition)
	}

	return Reading{
		DeviceID:          deviceID,
		Timestamp:         now.Truncate(time.Second),
		ActualTemperature: Celsius(Round1(s.ActualTemperature)),
		SetTemperature:    Celsius(Round1(s.SetTemperature)),
		ValvePosition:     s.ValvePosition,
		BoostState:        s.Mode == ModeBoost,
		BatteryLow:        s.BatteryLow,
		ControlMode:       string(s.Mode),
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
