// Package routing assembles a forwarding engine, its node and its circuit
// fabric from a scenario, and drives fabric reconfiguration.
package routing

import (
	"fmt"

	"github.com/wesleywu/ocs-route/internal/config"
	"github.com/wesleywu/ocs-route/internal/logger"
	"github.com/wesleywu/ocs-route/internal/network"
	"github.com/wesleywu/ocs-route/internal/routing/circuit"
	"github.com/wesleywu/ocs-route/internal/routing/engine"
	"github.com/wesleywu/ocs-route/internal/routing/metrics"
)

// Instance is a fully wired node: static node, engine and switch
type Instance struct {
	Node   *network.StaticNode
	Engine *engine.Engine
	Switch *Switch
}

// Build wires an instance from s. Interfaces are registered first, then the
// engine is attached, then static routes and cross-connects are installed and
// finally the gate is set to the scenario's initial state.
func Build(s *config.Scenario, cfg *config.Config, log *logger.Logger, m *metrics.Metrics) (*Instance, error) {
	if s == nil || cfg == nil {
		return nil, fmt.Errorf("scenario and config are required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	node := network.NewStaticNode()
	for _, spec := range s.Interfaces {
		info, err := spec.Info()
		if err != nil {
			return nil, err
		}
		if err := node.AddInterface(info); err != nil {
			return nil, fmt.Errorf("failed to add interface: %w", err)
		}
	}

	fabric := circuit.NewMap()
	gate := circuit.NewLatch()
	sw, err := NewSwitch(fabric, gate, log, m)
	if err != nil {
		return nil, err
	}

	eng, err := engine.New(fabric, gate, engine.Options{Logger: log, Metrics: m, CacheSize: cfg.CacheSize})
	if err != nil {
		return nil, err
	}
	if err := eng.SetNode(node); err != nil {
		return nil, err
	}
	node.Subscribe(eng)

	for _, spec := range s.Routes {
		entry, err := spec.Entry()
		if err != nil {
			return nil, err
		}
		if !node.HasInterface(entry.Interface) {
			return nil, fmt.Errorf("route %s: unknown interface %d", spec.Destination, entry.Interface)
		}
		eng.AddNetworkRoute(entry.Destination, entry.Mask, entry.Gateway, entry.Interface, entry.Metric)
	}

	pairs := make([]circuit.CrossConnect, 0, len(s.Circuits))
	for _, c := range s.Circuits {
		pairs = append(pairs, circuit.CrossConnect{Input: c.Input, Output: c.Output})
	}
	if _, err := sw.Reconfigure(pairs); err != nil {
		return nil, err
	}
	sw.SetGate(s.Gate)

	log.ConfigLoaded(cfg.Scenario, len(s.Interfaces), eng.Table().RouteCount(), fabric.Size())
	return &Instance{Node: node, Engine: eng, Switch: sw}, nil
}

// Close detaches the engine from the node and tears it down
func (i *Instance) Close() {
	i.Node.Unsubscribe(i.Engine)
	i.Engine.Close()
}
