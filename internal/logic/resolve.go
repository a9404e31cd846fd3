package logic

import "time"

// ResolveMode applies the mode precedence for one tick.
//
// The manual setting is the baseline. A party window containing now forces
// PARTY without touching the setpoint. Only AUTO consults the week plan; plan
// is called lazily so that other modes never fetch it.
func ResolveMode(now time.Time, manual ManualSetting, party *PartyWindow, plan func() []WeekPlanEntry) Resolution {
	r := Resolution{
		Mode:           manual.Mode,
		SetTemperature: manual.SetTemperature,
	}

	if party != nil && party.Contains(now) {
		r.Mode = ModeParty
	}

	if r.Mode == ModeAuto && plan != nil {
		r.SetTemperature = SetpointAt(plan(), now)
	}

	return r
}
