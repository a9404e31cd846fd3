// Package control resolves the per-tick operating mode from the store and
// emits readings back to it.
package control

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/sweeney/thermostat-sim/internal/logic"
	"github.com/sweeney/thermostat-sim/internal/store"
)

// Logf is a printf-style log sink.
type Logf func(format string, args ...any)

// FallbackObserver is told which fetch fell back to its default.
type FallbackObserver interface {
	Fallback(source string)
}

// Fetch names used in logs and metrics.
const (
	SourceManual   = "manual"
	SourceParty    = "party"
	SourceWeekPlan = "weekplan"
)

var errEmptyPlan = errors.New("week plan is empty")

// Resolver determines mode and setpoint for a tick.
type Resolver struct {
	source   store.Source
	deviceID int
	logf     Logf
	observer FallbackObserver
}

// NewResolver creates a Resolver reading configuration for deviceID.
// A nil logf logs through the standard logger; observer may be nil.
func NewResolver(source store.Source, deviceID int, logf Logf, observer FallbackObserver) *Resolver {
	if logf == nil {
		logf = log.Printf
	}
	return &Resolver{
		source:   source,
		deviceID: deviceID,
		logf:     logf,
		observer: observer,
	}
}

// Resolve fetches the manual setting, party window and, in AUTO, the week
// plan. Fetch failures never propagate: each falls back to its default.
func (r *Resolver) Resolve(ctx context.Context, now time.Time) logic.Resolution {
	manual := fetchWithFallback(r, SourceManual,
		logic.ManualSetting{SetTemperature: logic.DefaultSetTemperature, Mode: logic.DefaultMode},
		func() (logic.ManualSetting, error) { return r.source.ManualSetting(ctx, r.deviceID) })

	party := fetchWithFallback[*logic.PartyWindow](r, SourceParty, nil,
		func() (*logic.PartyWindow, error) { return r.source.PartyWindow(ctx, r.deviceID, now) })

	plan := func() []logic.WeekPlanEntry {
		return fetchWithFallback[[]logic.WeekPlanEntry](r, SourceWeekPlan, nil, func() ([]logic.WeekPlanEntry, error) {
			entries, err := r.source.WeekPlan(ctx, r.deviceID)
			if err == nil && len(entries) == 0 {
				err = errEmptyPlan
			}
			return entries, err
		})
	}

	return logic.ResolveMode(now, manual, party, plan)
}

// fetchWithFallback runs fetch and substitutes fallback on error.
func fetchWithFallback[T any](r *Resolver, source string, fallback T, fetch func() (T, error)) T {
	v, err := fetch()
	if err != nil {
		r.logf("warning: read %s config: %v, using default", source, err)
		if r.observer != nil {
			r.observer.Fallback(source)
		}
		return fallback
	}
	return v
}
