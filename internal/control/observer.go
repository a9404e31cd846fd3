package control

// Observer sees both fallback and emit outcomes.
type Observer interface {
	FallbackObserver
	EmitObserver
}

// Observers fans every notification out to each member in order.
type Observers []Observer

// Fallback implements FallbackObserver.
func (o Observers) Fallback(source string) {
	for _, ob := range o {
		ob.Fallback(source)
	}
}

// Stored implements EmitObserver.
func (o Observers) Stored(ok bool) {
	for _, ob := range o {
		ob.Stored(ok)
	}
}

// Mirrored implements EmitObserver.
func (o Observers) Mirrored(name string, ok bool) {
	for _, ob := range o {
		ob.Mirrored(name, ok)
	}
}
