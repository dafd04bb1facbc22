package config

import (
	"bytes"
	"fmt"
	"net/netip"
	"os"

	toml "github.com/pelletier/go-toml/v2"
	"go.uber.org/multierr"

	"github.com/wesleywu/ocs-route/internal/network"
	"github.com/wesleywu/ocs-route/internal/routing/entities"
	"github.com/wesleywu/ocs-route/internal/utils"
)

// Probe directions
const (
	DirectionInput  = "input"
	DirectionOutput = "output"
)

// Scenario describes a node topology, its static routes and the fabric state
type Scenario struct {
	// Gate is the initial reconfiguration gate state
	Gate       bool            `toml:"gate"`
	Interfaces []InterfaceSpec `toml:"interface"`
	Routes     []RouteSpec     `toml:"route"`
	Circuits   []CircuitSpec   `toml:"circuit"`
	Probes     []ProbeSpec     `toml:"probe"`
}

type InterfaceSpec struct {
	Index      uint32   `toml:"index"`
	Name       string   `toml:"name"`
	Up         bool     `toml:"up"`
	Forwarding bool     `toml:"forwarding"`
	Addresses  []string `toml:"addresses"`
}

type RouteSpec struct {
	Destination string `toml:"destination"`
	Gateway     string `toml:"gateway"`
	Interface   uint32 `toml:"interface"`
	Metric      uint32 `toml:"metric"`
}

type CircuitSpec struct {
	Input  uint32 `toml:"input"`
	Output uint32 `toml:"output"`
}

// ProbeSpec is a packet to push through the engine in replay mode.
// Interface is the input interface for input probes and the optional bound
// interface for output probes.
type ProbeSpec struct {
	Direction   string  `toml:"direction"`
	Destination string  `toml:"destination"`
	Interface   *uint32 `toml:"interface"`
	Local       bool    `toml:"local"`
}

// Info converts the scenario entry into the node's interface description
func (s InterfaceSpec) Info() (network.InterfaceInfo, error) {
	info := network.InterfaceInfo{
		ID:         s.Index,
		Name:       s.Name,
		IsUp:       s.Up,
		Forwarding: s.Forwarding,
	}
	for _, a := range s.Addresses {
		addr, err := network.ParseInterfaceAddress(a)
		if err != nil {
			return network.InterfaceInfo{}, fmt.Errorf("interface %d: %w", s.Index, err)
		}
		info.Addresses = append(info.Addresses, addr)
	}
	return info, nil
}

// Entry converts the scenario route into a table entry
func (s RouteSpec) Entry() (entities.RouteEntry, error) {
	dst, mask, err := utils.ParseDestination(s.Destination)
	if err != nil {
		return entities.RouteEntry{}, err
	}
	gw, err := utils.ParseGateway(s.Gateway)
	if err != nil {
		return entities.RouteEntry{}, fmt.Errorf("route %s: %w", s.Destination, err)
	}
	return entities.NewNetworkRoute(dst, mask, gw, s.Interface, s.Metric), nil
}

// Addr parses the probe destination
func (p ProbeSpec) Addr() (netip.Addr, error) {
	a, err := netip.ParseAddr(p.Destination)
	if err != nil || !entities.IsIPv4(a) {
		return netip.Addr{}, fmt.Errorf("invalid probe destination %q", p.Destination)
	}
	return a.Unmap(), nil
}

// BoundInterface returns the probe interface, or ^uint32(0) when unset
func (p ProbeSpec) BoundInterface() uint32 {
	if p.Interface == nil {
		return ^uint32(0)
	}
	return *p.Interface
}

// ParseScenario decodes TOML, rejecting unknown keys, and validates the result
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	if err := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields().Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to decode scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenario reads and parses a scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario %s: %w", path, err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate reports every problem found, not just the first
func (s *Scenario) Validate() error {
	var errs error
	known := make(map[uint32]bool, len(s.Interfaces))

	for _, spec := range s.Interfaces {
		if spec.Index == ^uint32(0) {
			errs = multierr.Append(errs, fmt.Errorf("interface index %d is reserved", spec.Index))
			continue
		}
		if known[spec.Index] {
			errs = multierr.Append(errs, fmt.Errorf("duplicate interface %d", spec.Index))
			continue
		}
		known[spec.Index] = true
		if _, err := spec.Info(); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	for _, spec := range s.Routes {
		if _, err := spec.Entry(); err != nil {
			errs = multierr.Append(errs, err)
		}
		if !known[spec.Interface] {
			errs = multierr.Append(errs, fmt.Errorf("route %s: unknown interface %d", spec.Destination, spec.Interface))
		}
	}

	inputs := make(map[uint32]bool, len(s.Circuits))
	for _, c := range s.Circuits {
		if !known[c.Input] || !known[c.Output] {
			errs = multierr.Append(errs, fmt.Errorf("circuit %d->%d: unknown interface", c.Input, c.Output))
		}
		if inputs[c.Input] {
			errs = multierr.Append(errs, fmt.Errorf("circuit %d->%d: input already connected", c.Input, c.Output))
		}
		inputs[c.Input] = true
	}

	for _, p := range s.Probes {
		if _, err := p.Addr(); err != nil {
			errs = multierr.Append(errs, err)
		}
		switch p.Direction {
		case DirectionInput:
			if p.Interface == nil {
				errs = multierr.Append(errs, fmt.Errorf("input probe %s: interface required", p.Destination))
			}
		case DirectionOutput:
		default:
			errs = multierr.Append(errs, fmt.Errorf("probe %s: unknown direction %q", p.Destination, p.Direction))
		}
	}

	return errs
}
