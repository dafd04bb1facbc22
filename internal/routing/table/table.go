// Package table holds the ordered forwarding table and its longest-prefix-match lookup.
package table

import (
	"net/netip"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/wesleywu/ocs-route/internal/routing/entities"
)

// AnyInterface disables the output interface filter of a lookup.
// The index is reserved and never assigned to a real interface.
const AnyInterface = ^uint32(0)

type lookupKey struct {
	destination netip.Addr
	oif         uint32
}

type lookupResult struct {
	entry entities.RouteEntry
	found bool
}

// RouteTable is an insertion-ordered list of route entries.
// Entries are stored by value and never shared with callers.
type RouteTable struct {
	entries []entities.RouteEntry
	keys    *entities.KeySet
	cache   *lru.Cache[lookupKey, lookupResult]
	mutex   sync.RWMutex
}

// New creates an empty table. A cacheSize of zero or less disables the lookup cache.
func New(cacheSize int) *RouteTable {
	rt := &RouteTable{
		keys: entities.NewKeySet(),
	}
	if cacheSize > 0 {
		// only fails on a non-positive size
		rt.cache, _ = lru.New[lookupKey, lookupResult](cacheSize)
	}
	return rt
}

// AddNetworkRoute inserts a route unless an identical one exists.
// An invalid gateway means on-link. Returns false for a duplicate.
func (rt *RouteTable) AddNetworkRoute(network netip.Addr, mask entities.Mask, gateway netip.Addr, iface, metric uint32) bool {
	return rt.Add(entities.NewNetworkRoute(network, mask, gateway, iface, metric))
}

// SetDefaultRoute inserts 0.0.0.0/0 via gateway
func (rt *RouteTable) SetDefaultRoute(gateway netip.Addr, iface, metric uint32) bool {
	return rt.Add(entities.NewDefaultRoute(gateway, iface, metric))
}

// Add inserts entry unless an identical one exists
func (rt *RouteTable) Add(entry entities.RouteEntry) bool {
	rt.mutex.Lock()
	defer rt.mutex.Unlock()

	key := entry.Key()
	if rt.keys.MayContain(key) && rt.containsLocked(entry) {
		return false
	}

	rt.entries = append(rt.entries, entry)
	rt.keys.Add(key)
	rt.purgeLocked()
	return true
}

func (rt *RouteTable) containsLocked(entry entities.RouteEntry) bool {
	for _, e := range rt.entries {
		if e.Equal(entry) {
			return true
		}
	}
	return false
}

// RouteCount returns the number of entries
func (rt *RouteTable) RouteCount() int {
	rt.mutex.RLock()
	defer rt.mutex.RUnlock()
	return len(rt.entries)
}

// RouteAt returns a copy of the entry at index
func (rt *RouteTable) RouteAt(index int) (entities.RouteEntry, error) {
	rt.mutex.RLock()
	defer rt.mutex.RUnlock()

	if index < 0 || index >= len(rt.entries) {
		return entities.RouteEntry{}, &entities.RouteError{ErrorType: entities.ErrIndexOutOfRange, Index: index}
	}
	return rt.entries[index], nil
}

// MetricAt returns the metric of the entry at index
func (rt *RouteTable) MetricAt(index int) (uint32, error) {
	entry, err := rt.RouteAt(index)
	if err != nil {
		return 0, err
	}
	return entry.Metric, nil
}

// RemoveAt deletes the entry at index and returns it
func (rt *RouteTable) RemoveAt(index int) (entities.RouteEntry, error) {
	rt.mutex.Lock()
	defer rt.mutex.Unlock()

	if index < 0 || index >= len(rt.entries) {
		return entities.RouteEntry{}, &entities.RouteError{ErrorType: entities.ErrIndexOutOfRange, Index: index}
	}

	removed := rt.entries[index]
	rt.entries = append(rt.entries[:index], rt.entries[index+1:]...)
	rt.keys.Remove(removed.Key())
	rt.purgeLocked()
	return removed, nil
}

// RemoveByInterface deletes every entry using iface and returns how many went
func (rt *RouteTable) RemoveByInterface(iface uint32) int {
	return rt.removeIf(func(e entities.RouteEntry) bool {
		return e.Interface == iface
	})
}

// RemoveByNetwork deletes network (non-host) entries on iface for network/mask
func (rt *RouteTable) RemoveByNetwork(iface uint32, network netip.Addr, mask entities.Mask) int {
	network = network.Unmap()
	return rt.removeIf(func(e entities.RouteEntry) bool {
		return e.Interface == iface &&
			e.IsNetwork() &&
			e.Destination == network &&
			e.Mask == mask
	})
}

func (rt *RouteTable) removeIf(match func(entities.RouteEntry) bool) int {
	rt.mutex.Lock()
	defer rt.mutex.Unlock()

	kept := rt.entries[:0]
	removed := 0
	for _, e := range rt.entries {
		if match(e) {
			rt.keys.Remove(e.Key())
			removed++
			continue
		}
		kept = append(kept, e)
	}
	// zero the tail so dropped entries are not retained by the backing array
	for i := len(kept); i < len(rt.entries); i++ {
		rt.entries[i] = entities.RouteEntry{}
	}
	rt.entries = kept

	if removed > 0 {
		rt.purgeLocked()
	}
	return removed
}

// Clear releases every entry
func (rt *RouteTable) Clear() {
	rt.mutex.Lock()
	defer rt.mutex.Unlock()

	rt.entries = nil
	rt.keys.Clear()
	rt.purgeLocked()
}

// Routes returns a snapshot of the entries in table order
func (rt *RouteTable) Routes() []entities.RouteEntry {
	rt.mutex.RLock()
	defer rt.mutex.RUnlock()

	routes := make([]entities.RouteEntry, len(rt.entries))
	copy(routes, rt.entries)
	return routes
}

// LookupLongestPrefix returns the most specific entry covering destination.
// Equal prefix lengths prefer the lower metric, then the earlier entry.
// With oif other than AnyInterface, entries on other interfaces are skipped.
func (rt *RouteTable) LookupLongestPrefix(destination netip.Addr, oif uint32) (entities.RouteEntry, bool) {
	if !entities.IsIPv4(destination) {
		return entities.RouteEntry{}, false
	}
	destination = destination.Unmap()

	rt.mutex.RLock()
	defer rt.mutex.RUnlock()

	key := lookupKey{destination: destination, oif: oif}
	if rt.cache != nil {
		if res, ok := rt.cache.Get(key); ok {
			return res.entry, res.found
		}
	}

	var (
		best    entities.RouteEntry
		bestLen = -1
		found   bool
	)
	for _, e := range rt.entries {
		if !e.Matches(destination) {
			continue
		}
		if oif != AnyInterface && e.Interface != oif {
			continue
		}

		prefixLen := e.PrefixLen()
		if prefixLen < bestLen {
			continue
		}
		if prefixLen == bestLen && e.Metric >= best.Metric {
			continue
		}

		best, bestLen, found = e, prefixLen, true
		if prefixLen == 32 {
			break
		}
	}

	if rt.cache != nil {
		rt.cache.Add(key, lookupResult{entry: best, found: found})
	}
	return best, found
}

func (rt *RouteTable) purgeLocked() {
	if rt.cache != nil {
		rt.cache.Purge()
	}
}
