package circuit

import "sync/atomic"

// Gate reports whether the fabric is mid-reconfiguration
type Gate interface {
	IsActive() bool
}

// Latch is a Gate toggled by the fabric controller. It has no notion of time.
type Latch struct {
	active atomic.Bool
}

// NewLatch creates an inactive latch
func NewLatch() *Latch {
	return &Latch{}
}

// SetActive sets or clears the latch and returns the previous state
func (l *Latch) SetActive(active bool) bool {
	return l.active.Swap(active)
}

// IsActive reports the current state
func (l *Latch) IsActive() bool {
	return l.active.Load()
}

// StaticGate is a fixed Gate, handy for tests
type StaticGate bool

// IsActive returns the fixed state
func (g StaticGate) IsActive() bool {
	return bool(g)
}

// StaticFabric is a fixed Fabric, handy for tests
type StaticFabric map[uint32]uint32

// PermittedOutputFor looks the input up in the fixed mapping
func (f StaticFabric) PermittedOutputFor(input uint32) (uint32, bool) {
	out, ok := f[input]
	return out, ok
}
