package control

import (
	"context"
	"log"
	"time"

	"github.com/sweeney/thermostat-sim/internal/logic"
	"github.com/sweeney/thermostat-sim/internal/store"
)

// Mirror receives a copy of every reading on a best-effort basis.
type Mirror interface {
	Name() string
	PublishReading(ctx context.Context, r logic.Reading) error
}

// EmitObserver is told the outcome of each store write and mirror publish.
type EmitObserver interface {
	Stored(ok bool)
	Mirrored(name string, ok bool)
}

// Result describes one emitted reading.
type Result struct {
	Reading logic.Reading
	// Stored reports whether the append to the store succeeded.
	Stored bool
}

// Emitter builds readings and appends them to the store.
type Emitter struct {
	sink     store.Sink
	deviceID int
	mirrors  []Mirror
	logf     Logf
	observer EmitObserver
}

// NewEmitter creates an Emitter writing readings for deviceID to sink.
// A nil logf logs through the standard logger; observer may be nil.
func NewEmitter(sink store.Sink, deviceID int, mirrors []Mirror, logf Logf, observer EmitObserver) *Emitter {
	if logf == nil {
		logf = log.Printf
	}
	return &Emitter{
		sink:     sink,
		deviceID: deviceID,
		mirrors:  mirrors,
		logf:     logf,
		observer: observer,
	}
}

// Emit builds the reading for this tick and attempts exactly one append.
// A failed append is logged and dropped. The only error returned is a
// reading that cannot be represented.
func (e *Emitter) Emit(ctx context.Context, now time.Time, s logic.DeviceState) (Result, error) {
	reading, err := logic.NewReading(e.deviceID, now, s)
	if err != nil {
		return Result{}, err
	}

	res := Result{Reading: reading}
	if err := e.sink.InsertReading(ctx, reading); err != nil {
		e.logf("store write error: %v", err)
	} else {
		res.Stored = true
		e.logf("[%s] reading written: actual=%.1f set=%.1f valve=%d mode=%s battery_low=%t",
			reading.Timestamp.Format("2006-01-02 15:04:05"), float64(reading.ActualTemperature),
			float64(reading.SetTemperature), reading.ValvePosition, reading.ControlMode, reading.BatteryLow)
	}
	if e.observer != nil {
		e.observer.Stored(res.Stored)
	}

	for _, m := range e.mirrors {
		err := m.PublishReading(ctx, reading)
		if err != nil {
			// Don't fail the tick on mirror failure
			e.logf("%s mirror error: %v", m.Name(), err)
		}
		if e.observer != nil {
			e.observer.Mirrored(m.Name(), err == nil)
		}
	}

	return res, nil
}
