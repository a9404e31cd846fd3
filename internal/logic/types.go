// Package logic contains pure simulation logic for the thermostat device.
// This package has NO external dependencies (no HTTP, MQTT, OS, or time.Sleep).
// Time and randomness are always injectable.
package logic

import (
	"errors"
	"time"
)

// Mode is the operating mode of the thermostat.
// Unknown values read from the store are carried through unchanged.
type Mode string

const (
	ModeManual Mode = "MANU"
	ModeAuto   Mode = "AUTO"
	ModeBoost  Mode = "BOOST"
	ModeParty  Mode = "PARTY"
)

// Modes lists the known modes.
var Modes = []Mode{ModeManual, ModeAuto, ModeBoost, ModeParty}

// Defaults applied at process start and when configuration cannot be read.
const (
	DefaultActualTemperature = 21.0
	DefaultSetTemperature    = 22.0
	DefaultValvePosition     = 50
	DefaultMode              = ModeManual

	// DefaultPlanTemperature is used in AUTO mode when the week plan is empty.
	DefaultPlanTemperature = 21.0
)

var (
	// ErrUnknownWeekday is returned when a week plan label is not recognised.
	ErrUnknownWeekday = errors.New("unknown weekday")

	// ErrInvalidReading is returned when a reading cannot be represented.
	ErrInvalidReading = errors.New("invalid reading")
)

// DeviceState is the simulated device, owned by the loop driver.
type DeviceState struct {
	ActualTemperature float64
	SetTemperature    float64
	ValvePosition     int
	BatteryLow        bool
	// Ticks left before the battery re-rolls.
	BatteryLowRemaining int
	Mode                Mode
}

// NewDeviceState returns the state a freshly started device has.
func NewDeviceState() DeviceState {
	return DeviceState{
		ActualTemperature: DefaultActualTemperature,
		SetTemperature:    DefaultSetTemperature,
		ValvePosition:     DefaultValvePosition,
		Mode:              DefaultMode,
	}
}

// ManualSetting is the manually configured setpoint and mode.
type ManualSetting struct {
	SetTemperature float64
	Mode           Mode
}

// PartyWindow is a time-boxed PARTY override.
type PartyWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t lies within the window, both ends inclusive.
func (w PartyWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// WeekPlanEntry is a single row of the weekly AUTO schedule.
type WeekPlanEntry struct {
	Weekday     Weekday
	TimeOfDay   TimeOfDay
	Temperature float64
}

// Resolution is the outcome of mode/setpoint resolution for one tick.
type Resolution struct {
	Mode           Mode
	SetTemperature float64
}
