package table

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleywu/ocs-route/internal/routing/entities"
)

func addr(s string) netip.Addr {
	return netip.MustParseAddr(s)
}

func prefix(n int) entities.Mask {
	return entities.MaskFromPrefixLen(n)
}

func newTables() map[string]*RouteTable {
	return map[string]*RouteTable{
		"uncached": New(0),
		"cached":   New(16),
	}
}

func TestLongestPrefixWins(t *testing.T) {
	for name, rt := range newTables() {
		t.Run(name, func(t *testing.T) {
			rt.AddNetworkRoute(addr("10.0.0.0"), prefix(8), netip.Addr{}, 1, 1)
			rt.AddNetworkRoute(addr("10.1.0.0"), prefix(16), netip.Addr{}, 2, 1)

			entry, ok := rt.LookupLongestPrefix(addr("10.1.2.3"), AnyInterface)
			require.True(t, ok)
			assert.Equal(t, uint32(2), entry.Interface)
			assert.Equal(t, 16, entry.PrefixLen())

			entry, ok = rt.LookupLongestPrefix(addr("10.2.0.1"), AnyInterface)
			require.True(t, ok)
			assert.Equal(t, uint32(1), entry.Interface)
		})
	}
}

func TestLowerMetricWinsOnEqualPrefix(t *testing.T) {
	for name, rt := range newTables() {
		t.Run(name, func(t *testing.T) {
			rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), netip.Addr{}, 1, 5)
			rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), netip.Addr{}, 2, 3)

			entry, ok := rt.LookupLongestPrefix(addr("10.0.0.5"), AnyInterface)
			require.True(t, ok)
			assert.Equal(t, uint32(2), entry.Interface)
			assert.Equal(t, uint32(3), entry.Metric)
		})
	}
}

func TestEarliestWinsOnFullTie(t *testing.T) {
	rt := New(0)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), netip.Addr{}, 7, 2)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), netip.Addr{}, 3, 2)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), netip.Addr{}, 9, 2)

	entry, ok := rt.LookupLongestPrefix(addr("10.0.0.9"), AnyInterface)
	require.True(t, ok)
	assert.Equal(t, uint32(7), entry.Interface)
}

func TestLongerPrefixBeatsLowerMetric(t *testing.T) {
	rt := New(0)
	rt.AddNetworkRoute(addr("10.1.0.0"), prefix(16), netip.Addr{}, 2, 100)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(8), netip.Addr{}, 1, 0)
	rt.SetDefaultRoute(addr("192.168.0.1"), 3, 0)

	entry, ok := rt.LookupLongestPrefix(addr("10.1.9.9"), AnyInterface)
	require.True(t, ok)
	assert.Equal(t, uint32(2), entry.Interface)
}

func TestHostRouteAndDefault(t *testing.T) {
	rt := New(8)
	rt.SetDefaultRoute(addr("192.168.0.1"), 3, 0)
	rt.AddNetworkRoute(addr("10.0.0.7"), entities.MaskOnes, netip.Addr{}, 4, 9)
	rt.AddNetworkRoute(addr("10.0.0.7"), entities.MaskOnes, netip.Addr{}, 5, 1)

	entry, ok := rt.LookupLongestPrefix(addr("10.0.0.7"), AnyInterface)
	require.True(t, ok)
	assert.Equal(t, uint32(4), entry.Interface, "first /32 match ends the scan")

	entry, ok = rt.LookupLongestPrefix(addr("8.8.8.8"), AnyInterface)
	require.True(t, ok)
	assert.True(t, entry.IsDefault())
	assert.Equal(t, addr("192.168.0.1"), entry.Gateway)
}

func TestInterfaceFilter(t *testing.T) {
	rt := New(8)
	rt.AddNetworkRoute(addr("10.1.0.0"), prefix(16), netip.Addr{}, 2, 1)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(8), netip.Addr{}, 1, 1)

	entry, ok := rt.LookupLongestPrefix(addr("10.1.2.3"), 1)
	require.True(t, ok)
	assert.Equal(t, uint32(1), entry.Interface)

	_, ok = rt.LookupLongestPrefix(addr("10.1.2.3"), 9)
	assert.False(t, ok)

	entry, ok = rt.LookupLongestPrefix(addr("10.1.2.3"), AnyInterface)
	require.True(t, ok)
	assert.Equal(t, uint32(2), entry.Interface)
}

func TestNoRoute(t *testing.T) {
	rt := New(8)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(8), netip.Addr{}, 1, 1)

	_, ok := rt.LookupLongestPrefix(addr("11.0.0.1"), AnyInterface)
	assert.False(t, ok)
	_, ok = rt.LookupLongestPrefix(addr("2001:db8::1"), AnyInterface)
	assert.False(t, ok)
	_, ok = rt.LookupLongestPrefix(netip.Addr{}, AnyInterface)
	assert.False(t, ok)
}

func TestHostBitsInStoredNetworkIgnored(t *testing.T) {
	rt := New(0)
	rt.AddNetworkRoute(addr("10.0.0.77"), prefix(24), netip.Addr{}, 1, 0)

	_, ok := rt.LookupLongestPrefix(addr("10.0.0.5"), AnyInterface)
	assert.True(t, ok)
}

func TestDuplicateSuppression(t *testing.T) {
	rt := New(0)
	assert.True(t, rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), addr("10.0.0.1"), 1, 5))
	assert.False(t, rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), addr("10.0.0.1"), 1, 5))
	assert.Equal(t, 1, rt.RouteCount())

	// any differing field makes a distinct entry
	assert.True(t, rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), addr("10.0.0.1"), 1, 6))
	assert.True(t, rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), addr("10.0.0.2"), 1, 5))
	assert.True(t, rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), addr("10.0.0.1"), 2, 5))
	assert.True(t, rt.AddNetworkRoute(addr("10.0.0.0"), prefix(25), addr("10.0.0.1"), 1, 5))
	assert.Equal(t, 5, rt.RouteCount())

	// removing and re-adding is allowed
	_, err := rt.RemoveAt(0)
	require.NoError(t, err)
	assert.True(t, rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), addr("10.0.0.1"), 1, 5))
	assert.Equal(t, 5, rt.RouteCount())
}

func TestPositionalAccess(t *testing.T) {
	rt := New(0)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(8), netip.Addr{}, 1, 10)
	rt.AddNetworkRoute(addr("10.1.0.0"), prefix(16), netip.Addr{}, 2, 20)
	rt.AddNetworkRoute(addr("10.2.0.0"), prefix(16), netip.Addr{}, 3, 30)

	entry, err := rt.RouteAt(1)
	require.NoError(t, err)
	assert.Equal(t, addr("10.1.0.0"), entry.Destination)

	metric, err := rt.MetricAt(2)
	require.NoError(t, err)
	assert.Equal(t, uint32(30), metric)

	removed, err := rt.RemoveAt(1)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), removed.Interface)

	entry, err = rt.RouteAt(1)
	require.NoError(t, err)
	assert.Equal(t, addr("10.2.0.0"), entry.Destination, "order follows insertion after removal")

	for _, idx := range []int{-1, 2, 100} {
		_, err = rt.RouteAt(idx)
		assert.True(t, errors.Is(err, entities.ErrIndex), "index %d", idx)
		_, err = rt.MetricAt(idx)
		assert.True(t, errors.Is(err, entities.ErrIndex), "index %d", idx)
		_, err = rt.RemoveAt(idx)
		assert.True(t, errors.Is(err, entities.ErrIndex), "index %d", idx)
	}
	assert.Equal(t, 2, rt.RouteCount())
}

func TestRemoveByInterface(t *testing.T) {
	for name, rt := range newTables() {
		t.Run(name, func(t *testing.T) {
			rt.AddNetworkRoute(addr("10.0.0.0"), prefix(8), netip.Addr{}, 1, 1)
			rt.AddNetworkRoute(addr("10.1.0.0"), prefix(16), netip.Addr{}, 2, 1)
			rt.AddNetworkRoute(addr("10.1.2.0"), prefix(24), netip.Addr{}, 1, 1)
			rt.SetDefaultRoute(addr("192.168.0.1"), 1, 0)

			entry, ok := rt.LookupLongestPrefix(addr("10.1.2.3"), AnyInterface)
			require.True(t, ok)
			require.Equal(t, uint32(1), entry.Interface)

			assert.Equal(t, 3, rt.RemoveByInterface(1))
			assert.Equal(t, 1, rt.RouteCount())
			for _, e := range rt.Routes() {
				assert.NotEqual(t, uint32(1), e.Interface)
			}

			entry, ok = rt.LookupLongestPrefix(addr("10.1.2.3"), AnyInterface)
			require.True(t, ok)
			assert.Equal(t, uint32(2), entry.Interface)

			_, ok = rt.LookupLongestPrefix(addr("8.8.8.8"), AnyInterface)
			assert.False(t, ok)

			assert.Equal(t, 0, rt.RemoveByInterface(1))
		})
	}
}

func TestRemoveByNetwork(t *testing.T) {
	rt := New(0)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), netip.Addr{}, 1, 0)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), addr("10.0.0.1"), 1, 3)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(24), netip.Addr{}, 2, 0)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(16), netip.Addr{}, 1, 0)
	rt.AddNetworkRoute(addr("10.0.0.9"), entities.MaskOnes, netip.Addr{}, 1, 0)

	assert.Equal(t, 2, rt.RemoveByNetwork(1, addr("10.0.0.0"), prefix(24)))
	assert.Equal(t, 3, rt.RouteCount())

	// host routes are never removed by network
	assert.Equal(t, 0, rt.RemoveByNetwork(1, addr("10.0.0.9"), entities.MaskOnes))
	assert.Equal(t, 3, rt.RouteCount())
}

func TestClear(t *testing.T) {
	rt := New(4)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(8), netip.Addr{}, 1, 1)
	_, ok := rt.LookupLongestPrefix(addr("10.0.0.1"), AnyInterface)
	require.True(t, ok)

	rt.Clear()
	assert.Equal(t, 0, rt.RouteCount())
	_, ok = rt.LookupLongestPrefix(addr("10.0.0.1"), AnyInterface)
	assert.False(t, ok, "cache must not outlive the entries")
	assert.True(t, rt.AddNetworkRoute(addr("10.0.0.0"), prefix(8), netip.Addr{}, 1, 1))
}

func TestRoutesSnapshotIsCopy(t *testing.T) {
	rt := New(0)
	rt.AddNetworkRoute(addr("10.0.0.0"), prefix(8), netip.Addr{}, 1, 1)

	snapshot := rt.Routes()
	snapshot[0].Interface = 42

	entry, err := rt.RouteAt(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), entry.Interface)
}

func BenchmarkLookupLongestPrefix(b *testing.B) {
	rt := New(0)
	for i := 0; i < 256; i++ {
		network := entities.Uint32ToAddr(0x0a000000 | uint32(i)<<8)
		rt.AddNetworkRoute(network, prefix(24), netip.Addr{}, uint32(i%4), uint32(i))
	}
	dst := addr("10.0.200.1")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = rt.LookupLongestPrefix(dst, AnyInterface)
	}
}
