package engine

import (
	"net/netip"

	"github.com/wesleywu/ocs-route/internal/packet"
	"github.com/wesleywu/ocs-route/internal/routing/entities"
)

const directionInput = "input"

// Outcome is the terminal result of one input decision
type Outcome int

const (
	// NotHandled lets another mechanism try the packet
	NotHandled Outcome = iota
	LocalDeliver
	Forward
	// Refused consumes the packet and signals Decision.Condition
	Refused
)

func (o Outcome) String() string {
	switch o {
	case NotHandled:
		return "not_handled"
	case LocalDeliver:
		return "local_delivered"
	case Forward:
		return "forwarded"
	case Refused:
		return "refused"
	default:
		return "unknown"
	}
}

// Decision is returned by value. The caller performs the side effect.
type Decision struct {
	Outcome        Outcome
	Route          entities.Route // Set for Forward
	Condition      entities.Condition
	InputInterface uint32
}

// Handled is false only for NotHandled
func (d Decision) Handled() bool {
	return d.Outcome != NotHandled
}

// InputRequest describes a packet received on InputInterface
type InputRequest struct {
	Destination    netip.Addr
	InputInterface uint32
	// CanDeliverLocally is false when the caller has no local delivery path
	CanDeliverLocally bool
}

// ResolveInputForwarding decides what happens to a received packet.
//
// Checks run in a fixed order: multicast, own address, forwarding flag,
// table lookup, reconfiguration gate, then the circuit fabric. The gate
// overrides a found route. A missing fabric mapping declines.
func (e *Engine) ResolveInputForwarding(req InputRequest) Decision {
	dst := req.Destination.Unmap()
	iif := req.InputInterface
	decision := Decision{Outcome: NotHandled, InputInterface: iif}

	if entities.IsMulticast(dst) {
		return e.recordInput(decision, dst)
	}

	node := e.Node()
	if node == nil || !node.HasInterface(iif) {
		return e.recordInput(decision, dst)
	}

	if node.IsDestinationAddress(dst, iif) {
		if req.CanDeliverLocally {
			decision.Outcome = LocalDeliver
		}
		return e.recordInput(decision, dst)
	}

	if !node.IsForwarding(iif) {
		decision.Outcome = Refused
		decision.Condition = entities.ConditionNoRouteToHost
		return e.recordInput(decision, dst)
	}

	entry, found := e.table.LookupLongestPrefix(dst, AnyInterface)
	e.metrics.RecordLookup(found)

	if e.gate.IsActive() {
		e.logger.Debug("Reconfiguration in progress, declining", "destination", dst.String(), "iif", iif)
		return e.recordInput(decision, dst)
	}
	if !found {
		return e.recordInput(decision, dst)
	}

	permitted, ok := e.fabric.PermittedOutputFor(iif)
	if !ok || permitted != entry.Interface {
		e.logger.Debug("Circuit does not permit route",
			"destination", dst.String(), "iif", iif, "oif", entry.Interface, "mapped", ok)
		return e.recordInput(decision, dst)
	}

	decision.Outcome = Forward
	decision.Route = e.buildRoute(node, dst, entry)
	return e.recordInput(decision, dst)
}

// RouteInputPacket decides for a raw datagram received on iif
func (e *Engine) RouteInputPacket(raw []byte, iif uint32, canDeliverLocally bool) (Decision, error) {
	hdr, err := packet.Decode(raw)
	if err != nil {
		return Decision{Outcome: NotHandled, InputInterface: iif}, err
	}
	return e.ResolveInputForwarding(InputRequest{
		Destination:       hdr.Destination,
		InputInterface:    iif,
		CanDeliverLocally: canDeliverLocally,
	}), nil
}

func (e *Engine) recordInput(d Decision, dst netip.Addr) Decision {
	e.metrics.RecordDecision(directionInput, d.Outcome.String())
	e.logger.Decision(directionInput, d.Outcome.String(), dst.String(), d.InputInterface)
	return d
}
