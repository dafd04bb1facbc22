package network

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/wesleywu/ocs-route/internal/routing/entities"
)

// InterfaceAddress is one IPv4 address assigned to an interface
type InterfaceAddress struct {
	Local netip.Addr
	Mask  entities.Mask
}

// ParseInterfaceAddress parses "10.0.1.1/24" or "10.0.1.1/255.255.255.0"
func ParseInterfaceAddress(s string) (InterfaceAddress, error) {
	parts := strings.SplitN(strings.TrimSpace(s), "/", 2)
	local, err := netip.ParseAddr(parts[0])
	if err != nil || !entities.IsIPv4(local) {
		return InterfaceAddress{}, fmt.Errorf("invalid interface address %q", s)
	}

	mask := entities.MaskOnes
	if len(parts) == 2 {
		mask, err = entities.ParseMask(parts[1])
		if err != nil {
			return InterfaceAddress{}, fmt.Errorf("invalid interface address %q: %w", s, err)
		}
	}

	return InterfaceAddress{Local: local.Unmap(), Mask: mask}, nil
}

// Network returns the address with host bits cleared
func (a InterfaceAddress) Network() netip.Addr {
	return a.Mask.Combine(a.Local)
}

// Broadcast returns the subnet-directed broadcast address
func (a InterfaceAddress) Broadcast() netip.Addr {
	return entities.Uint32ToAddr(entities.AddrToUint32(a.Local) | ^uint32(a.Mask))
}

// Usable is true when both the address and the mask are set
func (a InterfaceAddress) Usable() bool {
	return a.Local.IsValid() && !a.Local.IsUnspecified() && a.Mask != entities.MaskZero
}

func (a InterfaceAddress) String() string {
	return fmt.Sprintf("%s/%d", a.Local, a.Mask.PrefixLen())
}

// Node is what the forwarding engine needs from the node it runs on
type Node interface {
	// Interfaces lists every interface index in ascending order
	Interfaces() []uint32
	HasInterface(iface uint32) bool
	InterfaceName(iface uint32) string
	IsUp(iface uint32) bool
	IsForwarding(iface uint32) bool
	Addresses(iface uint32) []InterfaceAddress
	// IsDestinationAddress reports whether addr, received on iif, is for this node
	IsDestinationAddress(addr netip.Addr, iif uint32) bool
	// SourceAddress picks the local address used to reach dst through iface
	SourceAddress(iface uint32, dst netip.Addr) netip.Addr
}

// Listener receives interface and address changes from a node
type Listener interface {
	NotifyInterfaceUp(iface uint32)
	NotifyInterfaceDown(iface uint32)
	NotifyAddAddress(iface uint32, addr InterfaceAddress)
	NotifyRemoveAddress(iface uint32, addr InterfaceAddress)
}
