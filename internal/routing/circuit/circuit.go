// Package circuit models the state of the external circuit-switching fabric:
// which output each input interface is cross-connected to, and whether the
// fabric is currently being reconfigured.
package circuit

import (
	"sort"
	"sync"
)

// Fabric answers which output interface traffic from an input may use
type Fabric interface {
	PermittedOutputFor(input uint32) (output uint32, ok bool)
}

// CrossConnect is one input to output pairing
type CrossConnect struct {
	Input  uint32
	Output uint32
}

// Map is the mutable cross-connect state written by the fabric controller.
// A mapping is assigned once and stays until ClearAll.
type Map struct {
	outputs map[uint32]uint32
	mutex   sync.RWMutex
}

// NewMap creates an empty cross-connect map
func NewMap() *Map {
	return &Map{
		outputs: make(map[uint32]uint32),
	}
}

// SetPermittedOutput records input -> output. It returns false and leaves the
// existing mapping untouched if input is already mapped.
func (m *Map) SetPermittedOutput(input, output uint32) bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if _, exists := m.outputs[input]; exists {
		return false
	}
	m.outputs[input] = output
	return true
}

// ClearAll removes every mapping
func (m *Map) ClearAll() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.outputs = make(map[uint32]uint32)
}

// IsEmpty reports whether no mapping exists
func (m *Map) IsEmpty() bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.outputs) == 0
}

// Size returns the number of mapped inputs
func (m *Map) Size() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.outputs)
}

// PermittedOutputFor returns the output mapped to input, if any
func (m *Map) PermittedOutputFor(input uint32) (uint32, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	output, ok := m.outputs[input]
	return output, ok
}

// CrossConnects returns the current mappings ordered by input
func (m *Map) CrossConnects() []CrossConnect {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	pairs := make([]CrossConnect, 0, len(m.outputs))
	for in, out := range m.outputs {
		pairs = append(pairs, CrossConnect{Input: in, Output: out})
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].Input < pairs[j].Input
	})
	return pairs
}
