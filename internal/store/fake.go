package store

import (
	"context"
	"time"

	"github.com/sweeney/thermostat-sim/internal/logic"
)

// FakeStore is an in-memory Store for test assertions.
type FakeStore struct {
	// Manual is returned by ManualSetting; nil means no row (ErrNotFound).
	Manual *logic.ManualSetting

	// Party is returned by PartyWindow.
	Party *logic.PartyWindow

	// Plan is returned by WeekPlan.
	Plan []logic.WeekPlanEntry

	// Readings contains all readings that were inserted.
	Readings []logic.Reading

	// ManualError, PartyError, PlanError and InsertError, if set, are
	// returned by the corresponding call.
	ManualError error
	PartyError  error
	PlanError   error
	InsertError error

	// PartyQueries records the now argument of each PartyWindow call.
	PartyQueries []time.Time

	// PlanCalls counts WeekPlan calls.
	PlanCalls int
}

// NewFakeStore creates a FakeStore holding the given manual setting.
func NewFakeStore(manual logic.ManualSetting) *FakeStore {
	return &FakeStore{Manual: &manual}
}

// ManualSetting returns the configured manual setting.
func (f *FakeStore) ManualSetting(ctx context.Context, deviceID int) (logic.ManualSetting, error) {
	if f.ManualError != nil {
		return logic.ManualSetting{}, f.ManualError
	}
	if f.Manual == nil {
		return logic.ManualSetting{}, ErrNotFound
	}
	return *f.Manual, nil
}

// PartyWindow returns the configured party window.
func (f *FakeStore) PartyWindow(ctx context.Context, deviceID int, now time.Time) (*logic.PartyWindow, error) {
	f.PartyQueries = append(f.PartyQueries, now)
	if f.PartyError != nil {
		return nil, f.PartyError
	}
	return f.Party, nil
}

// WeekPlan returns a copy of the configured plan.
func (f *FakeStore) WeekPlan(ctx context.Context, deviceID int) ([]logic.WeekPlanEntry, error) {
	f.PlanCalls++
	if f.PlanError != nil {
		return nil, f.PlanError
	}
	return append([]logic.WeekPlanEntry(nil), f.Plan...), nil
}

// InsertReading records the reading.
func (f *FakeStore) InsertReading(ctx context.Context, r logic.Reading) error {
	if f.InsertError != nil {
		return f.InsertError
	}
	f.Readings = append(f.Readings, r)
	return nil
}

// Reset clears recorded calls and injected errors.
func (f *FakeStore) Reset() {
	f.Readings = nil
	f.PartyQueries = nil
	f.PlanCalls = 0
	f.ManualError = nil
	f.PartyError = nil
	f.PlanError = nil
	f.InsertError = nil
}
