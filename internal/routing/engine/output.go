package engine

import (
	"net/netip"

	"github.com/wesleywu/ocs-route/internal/packet"
	"github.com/wesleywu/ocs-route/internal/routing/entities"
	"github.com/wesleywu/ocs-route/internal/routing/table"
)

const directionOutput = "output"

// AnyInterface leaves the output interface to the table
const AnyInterface = table.AnyInterface

// ResolveOutputRoute picks the route for a locally originated packet.
// Pass AnyInterface as oif unless the sender is bound to an interface.
// Link-local multicast needs an explicit oif and bypasses the table.
// The reconfiguration gate does not apply to this path.
func (e *Engine) ResolveOutputRoute(dst netip.Addr, oif uint32) (entities.Route, error) {
	dst = dst.Unmap()
	node := e.Node()

	if entities.IsLocalMulticast(dst) {
		if oif == AnyInterface {
			e.recordOutput("missing_interface", dst, oif)
			return entities.Route{}, &entities.RouteError{ErrorType: entities.ErrMissingInterface, Destination: dst}
		}
		if node != nil && !node.HasInterface(oif) {
			e.recordOutput("unknown_interface", dst, oif)
			return entities.Route{}, &entities.RouteError{ErrorType: entities.ErrUnknownInterface, Destination: dst, Interface: oif}
		}

		source := netip.IPv4Unspecified()
		if node != nil {
			if addrs := node.Addresses(oif); len(addrs) > 0 {
				source = addrs[0].Local
			}
		}
		e.recordOutput("resolved", dst, oif)
		return entities.Route{
			Destination:     dst,
			Source:          source,
			Gateway:         netip.IPv4Unspecified(),
			OutputInterface: oif,
		}, nil
	}

	entry, found := e.table.LookupLongestPrefix(dst, oif)
	e.metrics.RecordLookup(found)
	if !found {
		e.recordOutput("no_route", dst, oif)
		return entities.Route{}, &entities.RouteError{ErrorType: entities.ErrNoRoute, Destination: dst, Interface: oif}
	}

	e.recordOutput("resolved", dst, entry.Interface)
	return e.buildRoute(node, dst, entry), nil
}

// RouteOutputPacket resolves the route for a raw locally originated datagram
func (e *Engine) RouteOutputPacket(raw []byte, oif uint32) (entities.Route, error) {
	hdr, err := packet.Decode(raw)
	if err != nil {
		return entities.Route{}, err
	}
	return e.ResolveOutputRoute(hdr.Destination, oif)
}

func (e *Engine) recordOutput(outcome string, dst netip.Addr, iface uint32) {
	e.metrics.RecordDecision(directionOutput, outcome)
	e.logger.Decision(directionOutput, outcome, dst.String(), iface)
}
