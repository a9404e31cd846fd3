package logic

// scriptedRand returns queued values in order. Once a queue is exhausted its
// last value repeats; an empty Float64 queue yields 0.5 (the midpoint, i.e.
// zero noise for symmetric uniform draws).
type scriptedRand struct {
	floats []float64
	ints   []int
	fi, ii int
}

func (r *scriptedRand) Float64() float64 {
	if len(r.floats) == 0 {
		return 0.5
	}
	v := r.floats[min(r.fi, len(r.floats)-1)]
	r.fi++
	return v
}

func (r *scriptedRand) Intn(n int) int {
	if len(r.ints) == 0 {
		return 0
	}
	v := r.ints[min(r.ii, len(r.ints)-1)]
	r.ii++
	if v >= n {
		return n - 1
	}
	return v
}
