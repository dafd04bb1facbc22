package entities

import (
	"fmt"
	"net/netip"
)

// RouteEntry is one row of the forwarding table
type RouteEntry struct {
	Destination netip.Addr // Destination network
	Mask        Mask       // Destination network mask
	Gateway     netip.Addr // Next hop, 0.0.0.0 for on-link routes
	Interface   uint32     // Output interface index
	Metric      uint32     // Lower is preferred
}

// NewNetworkRoute builds an entry. An invalid gateway means on-link.
func NewNetworkRoute(network netip.Addr, mask Mask, gateway netip.Addr, iface, metric uint32) RouteEntry {
	if !gateway.IsValid() {
		gateway = netip.IPv4Unspecified()
	}
	return RouteEntry{
		Destination: network.Unmap(),
		Mask:        mask,
		Gateway:     gateway.Unmap(),
		Interface:   iface,
		Metric:      metric,
	}
}

// NewDefaultRoute builds a 0.0.0.0/0 entry
func NewDefaultRoute(gateway netip.Addr, iface, metric uint32) RouteEntry {
	return NewNetworkRoute(netip.IPv4Unspecified(), MaskZero, gateway, iface, metric)
}

// PrefixLen returns the mask length of the entry
func (r RouteEntry) PrefixLen() int {
	return r.Mask.PrefixLen()
}

// IsHost is true for /32 entries
func (r RouteEntry) IsHost() bool {
	return r.Mask == MaskOnes
}

// IsNetwork is true for anything that is not a host route
func (r RouteEntry) IsNetwork() bool {
	return !r.IsHost()
}

// IsDefault is true for 0.0.0.0/0
func (r RouteEntry) IsDefault() bool {
	return r.Mask == MaskZero && AddrToUint32(r.Destination) == 0
}

// IsGateway is true when the entry has a next hop
func (r RouteEntry) IsGateway() bool {
	return r.Gateway.IsValid() && !r.Gateway.IsUnspecified()
}

// Matches reports whether dst is covered by the entry
func (r RouteEntry) Matches(dst netip.Addr) bool {
	return IsIPv4(dst) && r.Mask.IsMatch(dst, r.Destination)
}

// Equal compares all five identity fields
func (r RouteEntry) Equal(o RouteEntry) bool {
	return r.Destination == o.Destination &&
		r.Mask == o.Mask &&
		r.Gateway == o.Gateway &&
		r.Interface == o.Interface &&
		r.Metric == o.Metric
}

// Flags returns the route(8) style flags: U, UHS or UGS
func (r RouteEntry) Flags() string {
	switch {
	case r.IsHost():
		return "UHS"
	case r.IsGateway():
		return "UGS"
	default:
		return "U"
	}
}

// String returns a compact human readable form
func (r RouteEntry) String() string {
	return fmt.Sprintf("%s/%d via %s dev %d metric %d",
		r.Destination, r.PrefixLen(), r.Gateway, r.Interface, r.Metric)
}

// Route is the resolved result of a lookup, ready to hand to the output path
type Route struct {
	Destination     netip.Addr
	Source          netip.Addr
	Gateway         netip.Addr
	OutputInterface uint32
}

// NextHop returns the gateway, or the destination itself for on-link routes
func (r Route) NextHop() netip.Addr {
	if r.Gateway.IsValid() && !r.Gateway.IsUnspecified() {
		return r.Gateway
	}
	return r.Destination
}

// String returns a compact human readable form
func (r Route) String() string {
	return fmt.Sprintf("%s from %s via %s dev %d", r.Destination, r.Source, r.Gateway, r.OutputInterface)
}

// DumpRow is one line of the diagnostic table listing
type DumpRow struct {
	Destination netip.Addr
	Gateway     netip.Addr
	Mask        Mask
	Flags       string
	Metric      uint32
	Interface   uint32
	IfaceName   string // Empty when the node has no name for the interface
}

// Iface returns the interface name if known, else its index
func (d DumpRow) Iface() string {
	if d.IfaceName != "" {
		return d.IfaceName
	}
	return fmt.Sprintf("%d", d.Interface)
}

// ActionType represents the type of change applied to the table
type ActionType int

// ActionType constants
const (
	ActionAdd ActionType = iota
	ActionDelete
)

// String returns a string representation of the action
func (a ActionType) String() string {
	switch a {
	case ActionAdd:
		return "add"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}
