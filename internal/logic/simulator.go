package logic

import (
	"math"
	"strconv"
)

// Physical model constants.
const (
	BatteryLowProbability = 0.005
	BatteryLowMinTicks    = 30
	BatteryLowMaxTicks    = 200

	ApproachFactor   = 0.1
	HeatingFactor    = 0.2
	EnvironmentNoise = 0.05

	ValveBase    = 50
	ValveGain    = 15
	ValveNoise   = 3
	ValveDamping = 0.2
	ValveMin     = 0
	ValveMax     = 100
)

// Rand is the randomness the simulator consumes.
// *math/rand.Rand satisfies it.
type Rand interface {
	// Float64 returns a value in [0.0, 1.0).
	Float64() float64
	// Intn returns a value in [0, n).
	Intn(n int) int
}

// Step advances the device by one tick towards the resolved setpoint.
//
// Random draws happen in a fixed order: battery roll (only when the battery
// is not already low), then environment noise, then valve noise.
func Step(s DeviceState, r Resolution, rng Rand) DeviceState {
	next := s
	next.Mode = r.Mode
	next.SetTemperature = r.SetTemperature

	// Battery
	if s.BatteryLowRemaining > 0 {
		next.BatteryLow = true
		next.BatteryLowRemaining = s.BatteryLowRemaining - 1
	} else if rng.Float64() < BatteryLowProbability {
		next.BatteryLow = true
		next.BatteryLowRemaining = BatteryLowMinTicks + rng.Intn(BatteryLowMaxTicks-BatteryLowMinTicks+1)
	} else {
		next.BatteryLow = false
	}

	// Temperature, driven by the valve position from the previous tick.
	diff := r.SetTemperature - s.ActualTemperature
	environment := uniform(rng, -EnvironmentNoise, EnvironmentNoise)
	heating := float64(s.ValvePosition) / 100 * HeatingFactor
	next.ActualTemperature = Round1(s.ActualTemperature + ApproachFactor*diff + heating + environment)

	// Valve
	target := clampInt(int(math.RoundToEven(ValveBase+diff*ValveGain+uniform(rng, -ValveNoise, ValveNoise))), ValveMin, ValveMax)
	if r.Mode == ModeBoost {
		next.ValvePosition = ValveMax
	} else {
		// int() truncates toward zero
		step := int(float64(target-s.ValvePosition) * ValveDamping)
		next.ValvePosition = clampInt(s.ValvePosition+step, ValveMin, ValveMax)
	}

	return next
}

// Round1 rounds the exact value of v to one decimal place, ties to even.
// Scaling by 10 first would round the product and misplace values just
// below a tie, e.g. 20.15.
func Round1(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	return r
}

func uniform(rng Rand, lo, hi float64) float64 {
	return lo + (hi-lo)*rng.Float64()
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
