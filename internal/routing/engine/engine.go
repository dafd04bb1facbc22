// Package engine makes per-packet forwarding decisions for a node whose links
// are provisioned by an external circuit fabric. Route lookups are combined
// with the fabric's cross-connect constraint and its reconfiguration gate.
package engine

import (
	"fmt"
	"net/netip"
	"sync"

	"github.com/wesleywu/ocs-route/internal/logger"
	"github.com/wesleywu/ocs-route/internal/network"
	"github.com/wesleywu/ocs-route/internal/routing/circuit"
	"github.com/wesleywu/ocs-route/internal/routing/entities"
	"github.com/wesleywu/ocs-route/internal/routing/metrics"
	"github.com/wesleywu/ocs-route/internal/routing/table"
)

// Options configures an Engine. Zero values are usable.
type Options struct {
	Logger    *logger.Logger
	Metrics   *metrics.Metrics
	CacheSize int // Lookup cache entries, 0 disables
}

// Engine owns the route table and reads the fabric and gate it was given
type Engine struct {
	table   *table.RouteTable
	fabric  circuit.Fabric
	gate    circuit.Gate
	logger  *logger.Logger
	metrics *metrics.Metrics

	node  network.Node
	mutex sync.RWMutex // guards node
}

// New creates an engine bound to fabric and gate
func New(fabric circuit.Fabric, gate circuit.Gate, opts Options) (*Engine, error) {
	if fabric == nil {
		return nil, fmt.Errorf("circuit fabric cannot be nil")
	}
	if gate == nil {
		return nil, fmt.Errorf("reconfiguration gate cannot be nil")
	}

	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}

	return &Engine{
		table:   table.New(opts.CacheSize),
		fabric:  fabric,
		gate:    gate,
		logger:  log.WithComponent("engine"),
		metrics: opts.Metrics,
	}, nil
}

// Table exposes the route table for read-only inspection
func (e *Engine) Table() *table.RouteTable {
	return e.table
}

// SetNode attaches the engine to node and replays the current interface state
func (e *Engine) SetNode(node network.Node) error {
	if node == nil {
		return fmt.Errorf("node cannot be nil")
	}

	e.mutex.Lock()
	if e.node != nil {
		e.mutex.Unlock()
		return fmt.Errorf("engine is already attached to a node")
	}
	e.node = node
	e.mutex.Unlock()

	for _, iface := range node.Interfaces() {
		if node.IsUp(iface) {
			e.NotifyInterfaceUp(iface)
		} else {
			e.NotifyInterfaceDown(iface)
		}
	}
	return nil
}

// Node returns the attached node, or nil
func (e *Engine) Node() network.Node {
	e.mutex.RLock()
	defer e.mutex.RUnlock()
	return e.node
}

// Close releases every route and detaches the node
func (e *Engine) Close() {
	n := e.table.RouteCount()
	e.table.Clear()
	e.metrics.RecordRouteChange(entities.ActionDelete.String(), n, 0)

	e.mutex.Lock()
	e.node = nil
	e.mutex.Unlock()

	e.logger.Debug("Engine closed", "routes_released", n)
}

// AddNetworkRoute inserts a route to network/mask. An invalid gateway means on-link.
// Returns false when an identical route already exists.
func (e *Engine) AddNetworkRoute(network netip.Addr, mask entities.Mask, gateway netip.Addr, iface, metric uint32) bool {
	return e.addRoute(entities.NewNetworkRoute(network, mask, gateway, iface, metric))
}

// SetDefaultRoute inserts 0.0.0.0/0 via gateway
func (e *Engine) SetDefaultRoute(gateway netip.Addr, iface, metric uint32) bool {
	return e.addRoute(entities.NewDefaultRoute(gateway, iface, metric))
}

func (e *Engine) addRoute(entry entities.RouteEntry) bool {
	if !e.table.Add(entry) {
		e.logger.Debug("Duplicate route ignored", "route", entry.String())
		return false
	}
	e.logger.RouteOperation(entities.ActionAdd.String(), entry.Destination.String(), entry.Mask.String(),
		entry.Gateway.String(), entry.Interface, entry.Metric)
	e.metrics.RecordRouteChange(entities.ActionAdd.String(), 1, e.table.RouteCount())
	return true
}

// RemoveRoute deletes the route at index
func (e *Engine) RemoveRoute(index int) error {
	entry, err := e.table.RemoveAt(index)
	if err != nil {
		return err
	}
	e.logger.RouteOperation(entities.ActionDelete.String(), entry.Destination.String(), entry.Mask.String(),
		entry.Gateway.String(), entry.Interface, entry.Metric)
	e.metrics.RecordRouteChange(entities.ActionDelete.String(), 1, e.table.RouteCount())
	return nil
}

// Dump lists the table in order for diagnostic display
func (e *Engine) Dump() []entities.DumpRow {
	node := e.Node()
	routes := e.table.Routes()

	rows := make([]entities.DumpRow, 0, len(routes))
	for _, r := range routes {
		row := entities.DumpRow{
			Destination: r.Destination,
			Gateway:     r.Gateway,
			Mask:        r.Mask,
			Flags:       r.Flags(),
			Metric:      r.Metric,
			Interface:   r.Interface,
		}
		if node != nil {
			row.IfaceName = node.InterfaceName(r.Interface)
		}
		rows = append(rows, row)
	}
	return rows
}

func (e *Engine) buildRoute(node network.Node, dst netip.Addr, entry entities.RouteEntry) entities.Route {
	source := netip.IPv4Unspecified()
	if node != nil {
		source = node.SourceAddress(entry.Interface, dst)
	}
	return entities.Route{
		Destination:     dst,
		Source:          source,
		Gateway:         entry.Gateway,
		OutputInterface: entry.Interface,
	}
}
