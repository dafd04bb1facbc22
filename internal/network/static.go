package network

import (
	"fmt"
	"net/netip"
	"sort"
	"sync"

	"go4.org/netipx"

	"github.com/wesleywu/ocs-route/internal/routing/entities"
)

var limitedBroadcast = netip.AddrFrom4([4]byte{255, 255, 255, 255})

// StaticNode is an in-memory Node whose state is driven by explicit calls.
// Every change is reported to subscribed listeners after the node lock is released.
type StaticNode struct {
	interfaces map[uint32]*InterfaceInfo
	local      *netipx.IPSet
	listeners  []Listener
	mutex      sync.RWMutex
}

// NewStaticNode creates a node without interfaces
func NewStaticNode() *StaticNode {
	return &StaticNode{
		interfaces: make(map[uint32]*InterfaceInfo),
		local:      &netipx.IPSet{},
	}
}

// Subscribe registers l for future changes
func (n *StaticNode) Subscribe(l Listener) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	n.listeners = append(n.listeners, l)
}

// Unsubscribe removes l. It reports whether l was subscribed.
func (n *StaticNode) Unsubscribe(l Listener) bool {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	for i, cur := range n.listeners {
		if cur == l {
			n.listeners = append(n.listeners[:i], n.listeners[i+1:]...)
			return true
		}
	}
	return false
}

func (n *StaticNode) snapshotListeners() []Listener {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return append([]Listener(nil), n.listeners...)
}

// AddInterface registers an interface. An interface added up is announced as up.
func (n *StaticNode) AddInterface(info InterfaceInfo) error {
	if info.ID == ^uint32(0) {
		return fmt.Errorf("interface index %d is reserved", info.ID)
	}
	for _, a := range info.Addresses {
		if !entities.IsIPv4(a.Local) {
			return fmt.Errorf("interface %d: invalid address %s", info.ID, a.Local)
		}
	}

	n.mutex.Lock()
	if _, exists := n.interfaces[info.ID]; exists {
		n.mutex.Unlock()
		return fmt.Errorf("interface %d already exists", info.ID)
	}
	c := info.clone()
	n.interfaces[info.ID] = &c
	err := n.rebuildLocalLocked()
	n.mutex.Unlock()
	if err != nil {
		return err
	}

	if info.IsUp {
		for _, l := range n.snapshotListeners() {
			l.NotifyInterfaceUp(info.ID)
		}
	}
	return nil
}

// GetInterface returns a copy of the interface description
func (n *StaticNode) GetInterface(iface uint32) (InterfaceInfo, error) {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	info, ok := n.interfaces[iface]
	if !ok {
		return InterfaceInfo{}, &entities.RouteError{ErrorType: entities.ErrUnknownInterface, Interface: iface}
	}
	return info.clone(), nil
}

// SetUp brings iface up and announces it if it was down
func (n *StaticNode) SetUp(iface uint32) error {
	changed, err := n.setState(iface, true)
	if err != nil || !changed {
		return err
	}
	for _, l := range n.snapshotListeners() {
		l.NotifyInterfaceUp(iface)
	}
	return nil
}

// SetDown takes iface down and announces it if it was up
func (n *StaticNode) SetDown(iface uint32) error {
	changed, err := n.setState(iface, false)
	if err != nil || !changed {
		return err
	}
	for _, l := range n.snapshotListeners() {
		l.NotifyInterfaceDown(iface)
	}
	return nil
}

func (n *StaticNode) setState(iface uint32, up bool) (bool, error) {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	info, ok := n.interfaces[iface]
	if !ok {
		return false, &entities.RouteError{ErrorType: entities.ErrUnknownInterface, Interface: iface}
	}
	if info.IsUp == up {
		return false, nil
	}
	info.IsUp = up
	return true, nil
}

// SetForwarding enables or disables transit forwarding on iface
func (n *StaticNode) SetForwarding(iface uint32, enabled bool) error {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	info, ok := n.interfaces[iface]
	if !ok {
		return &entities.RouteError{ErrorType: entities.ErrUnknownInterface, Interface: iface}
	}
	info.Forwarding = enabled
	return nil
}

// AddAddress assigns addr to iface and announces it
func (n *StaticNode) AddAddress(iface uint32, addr InterfaceAddress) error {
	if !entities.IsIPv4(addr.Local) {
		return fmt.Errorf("interface %d: invalid address %s", iface, addr.Local)
	}

	n.mutex.Lock()
	info, ok := n.interfaces[iface]
	if !ok {
		n.mutex.Unlock()
		return &entities.RouteError{ErrorType: entities.ErrUnknownInterface, Interface: iface}
	}
	for _, a := range info.Addresses {
		if a == addr {
			n.mutex.Unlock()
			return fmt.Errorf("interface %d already has address %s", iface, addr)
		}
	}
	info.Addresses = append(info.Addresses, addr)
	err := n.rebuildLocalLocked()
	n.mutex.Unlock()
	if err != nil {
		return err
	}

	for _, l := range n.snapshotListeners() {
		l.NotifyAddAddress(iface, addr)
	}
	return nil
}

// RemoveAddress withdraws addr from iface and announces it
func (n *StaticNode) RemoveAddress(iface uint32, addr InterfaceAddress) error {
	n.mutex.Lock()
	info, ok := n.interfaces[iface]
	if !ok {
		n.mutex.Unlock()
		return &entities.RouteError{ErrorType: entities.ErrUnknownInterface, Interface: iface}
	}
	idx := -1
	for i, a := range info.Addresses {
		if a == addr {
			idx = i
			break
		}
	}
	if idx < 0 {
		n.mutex.Unlock()
		return fmt.Errorf("interface %d has no address %s", iface, addr)
	}
	info.Addresses = append(info.Addresses[:idx], info.Addresses[idx+1:]...)
	err := n.rebuildLocalLocked()
	n.mutex.Unlock()
	if err != nil {
		return err
	}

	for _, l := range n.snapshotListeners() {
		l.NotifyRemoveAddress(iface, addr)
	}
	return nil
}

func (n *StaticNode) rebuildLocalLocked() error {
	var b netipx.IPSetBuilder
	for _, info := range n.interfaces {
		for _, a := range info.Addresses {
			b.Add(a.Local)
		}
	}
	set, err := b.IPSet()
	if err != nil {
		return fmt.Errorf("failed to build local address set: %w", err)
	}
	n.local = set
	return nil
}

// Interfaces implements Node
func (n *StaticNode) Interfaces() []uint32 {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	ids := make([]uint32, 0, len(n.interfaces))
	for id := range n.interfaces {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// HasInterface implements Node
func (n *StaticNode) HasInterface(iface uint32) bool {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	_, ok := n.interfaces[iface]
	return ok
}

// InterfaceName implements Node
func (n *StaticNode) InterfaceName(iface uint32) string {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	if info, ok := n.interfaces[iface]; ok {
		return info.Name
	}
	return ""
}

// IsUp implements Node
func (n *StaticNode) IsUp(iface uint32) bool {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	info, ok := n.interfaces[iface]
	return ok && info.IsUp
}

// IsForwarding implements Node
func (n *StaticNode) IsForwarding(iface uint32) bool {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	info, ok := n.interfaces[iface]
	return ok && info.Forwarding
}

// Addresses implements Node
func (n *StaticNode) Addresses(iface uint32) []InterfaceAddress {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	info, ok := n.interfaces[iface]
	if !ok {
		return nil
	}
	return append([]InterfaceAddress(nil), info.Addresses...)
}

// IsDestinationAddress implements Node. Any local address on any interface
// counts, as do the limited broadcast and the subnet broadcasts of iif.
func (n *StaticNode) IsDestinationAddress(addr netip.Addr, iif uint32) bool {
	addr = addr.Unmap()
	if addr == limitedBroadcast {
		return true
	}

	n.mutex.RLock()
	defer n.mutex.RUnlock()

	if n.local.Contains(addr) {
		return true
	}
	if info, ok := n.interfaces[iif]; ok {
		for _, a := range info.Addresses {
			if a.Mask != entities.MaskOnes && a.Broadcast() == addr {
				return true
			}
		}
	}
	return false
}

// SourceAddress implements Node. It prefers an address on the same subnet as
// dst and falls back to the first address of iface.
func (n *StaticNode) SourceAddress(iface uint32, dst netip.Addr) netip.Addr {
	n.mutex.RLock()
	defer n.mutex.RUnlock()

	info, ok := n.interfaces[iface]
	if !ok || len(info.Addresses) == 0 {
		return netip.IPv4Unspecified()
	}
	for _, a := range info.Addresses {
		if a.Mask.IsMatch(a.Local, dst) {
			return a.Local
		}
	}
	return info.Addresses[0].Local
}
