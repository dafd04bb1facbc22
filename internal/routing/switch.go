package routing

import (
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/wesleywu/ocs-route/internal/logger"
	"github.com/wesleywu/ocs-route/internal/routing/circuit"
	"github.com/wesleywu/ocs-route/internal/routing/metrics"
)

// Switch is the controller side of the circuit fabric. It owns the
// cross-connect map and the reconfiguration gate the engine reads.
type Switch struct {
	fabric  *circuit.Map
	gate    *circuit.Latch
	logger  *logger.Logger
	metrics *metrics.Metrics
}

// NewSwitch creates a switch over fabric and gate
func NewSwitch(fabric *circuit.Map, gate *circuit.Latch, log *logger.Logger, m *metrics.Metrics) (*Switch, error) {
	if fabric == nil || gate == nil {
		return nil, fmt.Errorf("fabric and gate are required")
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Switch{
		fabric:  fabric,
		gate:    gate,
		logger:  log.WithComponent("switch"),
		metrics: m,
	}, nil
}

// Fabric returns the cross-connect map
func (s *Switch) Fabric() *circuit.Map {
	return s.fabric
}

// Gate returns the reconfiguration gate
func (s *Switch) Gate() *circuit.Latch {
	return s.gate
}

// SetGate toggles the reconfiguration gate
func (s *Switch) SetGate(active bool) {
	if s.gate.SetActive(active) != active {
		s.logger.GateChange(active)
	}
	s.metrics.RecordGate(active)
}

// Connect adds a single cross-connect. Returns false if input is already connected.
func (s *Switch) Connect(input, output uint32) bool {
	ok := s.fabric.SetPermittedOutput(input, output)
	s.logger.CircuitChange("connect", input, output, ok)
	s.metrics.RecordCircuit(s.fabric.Size())
	return ok
}

// Reconfigure replaces the cross-connect state with pairs.
//
// Phase 1 raises the gate, phase 2 clears the map, phase 3 installs pairs and
// phase 4 restores the gate to the state it had on entry, so a gate raised by
// the caller beforehand stays raised. Each phase is a separate atomic step, so a
// concurrent reader may see the gate up with a partial map. A pair whose input
// is already connected is rejected and reported in the returned error; the
// remaining pairs are still installed.
func (s *Switch) Reconfigure(pairs []circuit.CrossConnect) (int, error) {
	start := time.Now()
	held := s.gate.IsActive()

	s.logger.Debug("Phase 1: raising reconfiguration gate", "held", held)
	s.SetGate(true)

	s.logger.Debug("Phase 2: clearing cross-connects", "count", s.fabric.Size())
	s.fabric.ClearAll()

	s.logger.Debug("Phase 3: installing cross-connects", "count", len(pairs))
	var errs error
	installed := 0
	for _, p := range pairs {
		if !s.fabric.SetPermittedOutput(p.Input, p.Output) {
			current, _ := s.fabric.PermittedOutputFor(p.Input)
			errs = multierr.Append(errs, fmt.Errorf("input %d already connected to %d, rejected %d", p.Input, current, p.Output))
			s.logger.CircuitChange("connect", p.Input, p.Output, false)
			continue
		}
		installed++
	}
	s.metrics.RecordCircuit(s.fabric.Size())

	s.logger.Debug("Phase 4: restoring reconfiguration gate", "active", held)
	s.SetGate(held)

	s.metrics.RecordReconfigure()
	s.logger.ReconfigureOperation(len(pairs), installed, len(pairs)-installed, time.Since(start).Milliseconds())
	return installed, errs
}
