package engine

import (
	"net/netip"

	"github.com/wesleywu/ocs-route/internal/network"
	"github.com/wesleywu/ocs-route/internal/routing/entities"
)

// NotifyInterfaceUp installs an on-link route for every usable address
func (e *Engine) NotifyInterfaceUp(iface uint32) {
	node := e.Node()
	if node == nil {
		return
	}

	added := 0
	for _, addr := range node.Addresses(iface) {
		// Host addresses get no route when the interface comes up
		if addr.Mask == entities.MaskOnes {
			continue
		}
		if e.addOnLink(iface, addr) {
			added++
		}
	}
	e.logger.Info("Interface up", "interface", iface, "routes_added", added)
}

// NotifyInterfaceDown drops every route out of iface
func (e *Engine) NotifyInterfaceDown(iface uint32) {
	removed := e.table.RemoveByInterface(iface)
	if removed > 0 {
		e.metrics.RecordRouteChange(entities.ActionDelete.String(), removed, e.table.RouteCount())
	}
	e.logger.InterfaceChange("down", iface, removed)
}

// NotifyAddAddress installs the on-link route for addr if iface is up
func (e *Engine) NotifyAddAddress(iface uint32, addr network.InterfaceAddress) {
	node := e.Node()
	if node == nil || !node.IsUp(iface) {
		return
	}
	e.addOnLink(iface, addr)
}

// NotifyRemoveAddress removes the on-link route derived from addr if iface is up
func (e *Engine) NotifyRemoveAddress(iface uint32, addr network.InterfaceAddress) {
	node := e.Node()
	if node == nil || !node.IsUp(iface) {
		return
	}

	removed := e.table.RemoveByNetwork(iface, addr.Network(), addr.Mask)
	if removed > 0 {
		e.metrics.RecordRouteChange(entities.ActionDelete.String(), removed, e.table.RouteCount())
	}
	e.logger.InterfaceChange("remove-address", iface, removed)
}

func (e *Engine) addOnLink(iface uint32, addr network.InterfaceAddress) bool {
	if !addr.Usable() {
		return false
	}
	return e.AddNetworkRoute(addr.Network(), addr.Mask, netip.Addr{}, iface, 0)
}

var _ network.Listener = (*Engine)(nil)
