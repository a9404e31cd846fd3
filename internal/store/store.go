// Package store provides access to the remote data store holding device
// configuration and readings, with abstraction for testing.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sweeney/thermostat-sim/internal/logic"
)

// ErrNotFound is returned when the store has no manual setting for a device.
var ErrNotFound = errors.New("not found")

// Table and function names in the store.
const (
	TableDevices   = "devices"
	TableWeekPlans = "device_weekplans"
	TableReadings  = "thermostat_readings"
	RPCParty       = "get_current_or_next_party"
)

// Source reads device configuration.
type Source interface {
	// ManualSetting returns the manually configured setpoint and mode.
	// Returns ErrNotFound when the device has no row.
	ManualSetting(ctx context.Context, deviceID int) (logic.ManualSetting, error)

	// PartyWindow returns the current or next party window, or nil if none.
	PartyWindow(ctx context.Context, deviceID int, now time.Time) (*logic.PartyWindow, error)

	// WeekPlan returns all week plan entries for the device, in store order.
	WeekPlan(ctx context.Context, deviceID int) ([]logic.WeekPlanEntry, error)
}

// Sink appends readings.
type Sink interface {
	// InsertReading appends one reading. No upsert, no retry.
	InsertReading(ctx context.Context, r logic.Reading) error
}

// Store is the full remote data store.
type Store interface {
	Source
	Sink
}
