package entities

import (
	"errors"
	"fmt"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMask(t *testing.T) {
	tests := []struct {
		input     string
		prefixLen int
		dotted    string
	}{
		{"255.255.255.0", 24, "255.255.255.0"},
		{"/16", 16, "255.255.0.0"},
		{"8", 8, "255.0.0.0"},
		{"0", 0, "0.0.0.0"},
		{"32", 32, "255.255.255.255"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			m, err := ParseMask(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.prefixLen, m.PrefixLen())
			assert.Equal(t, tt.dotted, m.String())
		})
	}

	for _, bad := range []string{"", "33", "-1", "255.255.0.0.1", "abc", "255.0.255.0"} {
		_, err := ParseMask(bad)
		assert.Error(t, err, "mask %q should be rejected", bad)
	}
}

func TestMaskMatch(t *testing.T) {
	m := MaskFromPrefixLen(16)
	assert.True(t, m.IsMatch(netip.MustParseAddr("10.1.2.3"), netip.MustParseAddr("10.1.0.0")))
	assert.False(t, m.IsMatch(netip.MustParseAddr("10.2.2.3"), netip.MustParseAddr("10.1.0.0")))
	assert.Equal(t, netip.MustParseAddr("10.1.0.0"), m.Combine(netip.MustParseAddr("10.1.2.3")))
}

func TestMulticastClassification(t *testing.T) {
	assert.True(t, IsMulticast(netip.MustParseAddr("239.1.1.1")))
	assert.True(t, IsLocalMulticast(netip.MustParseAddr("224.0.0.5")))
	assert.False(t, IsLocalMulticast(netip.MustParseAddr("224.0.1.5")))
	assert.False(t, IsMulticast(netip.MustParseAddr("10.0.0.1")))
	assert.False(t, IsMulticast(netip.MustParseAddr("ff02::1")))
}

func TestRouteEntryClassification(t *testing.T) {
	host := NewNetworkRoute(netip.MustParseAddr("10.0.0.1"), MaskOnes, netip.Addr{}, 1, 0)
	gw := NewNetworkRoute(netip.MustParseAddr("10.0.0.0"), MaskFromPrefixLen(8), netip.MustParseAddr("10.0.0.254"), 1, 0)
	onLink := NewNetworkRoute(netip.MustParseAddr("10.0.0.0"), MaskFromPrefixLen(8), netip.Addr{}, 1, 0)
	def := NewDefaultRoute(netip.MustParseAddr("192.168.1.1"), 2, 10)

	assert.True(t, host.IsHost())
	assert.False(t, host.IsGateway())
	assert.Equal(t, "UHS", host.Flags())

	assert.True(t, gw.IsGateway())
	assert.True(t, gw.IsNetwork())
	assert.Equal(t, "UGS", gw.Flags())

	assert.Equal(t, "U", onLink.Flags())
	assert.Equal(t, netip.IPv4Unspecified(), onLink.Gateway)

	assert.True(t, def.IsDefault())
	assert.Equal(t, 0, def.PrefixLen())
	assert.True(t, def.Matches(netip.MustParseAddr("8.8.8.8")))
}

func TestRouteEntryKey(t *testing.T) {
	a := NewNetworkRoute(netip.MustParseAddr("10.0.0.0"), MaskFromPrefixLen(24), netip.Addr{}, 1, 5)
	b := NewNetworkRoute(netip.MustParseAddr("10.0.0.0"), MaskFromPrefixLen(24), netip.IPv4Unspecified(), 1, 5)
	c := NewNetworkRoute(netip.MustParseAddr("10.0.0.0"), MaskFromPrefixLen(24), netip.Addr{}, 1, 6)

	assert.True(t, a.Equal(b))
	assert.Equal(t, a.Key(), b.Key())
	assert.False(t, a.Equal(c))
	assert.NotEqual(t, a.Key(), c.Key())

	ks := NewKeySet()
	ks.Add(a.Key())
	ks.Add(b.Key())
	assert.Equal(t, 1, ks.Size())
	ks.Remove(a.Key())
	assert.True(t, ks.MayContain(b.Key()))
	ks.Remove(b.Key())
	assert.False(t, ks.MayContain(a.Key()))
}

func TestRouteNextHop(t *testing.T) {
	r := Route{Destination: netip.MustParseAddr("10.0.0.5"), Gateway: netip.IPv4Unspecified()}
	assert.Equal(t, r.Destination, r.NextHop())

	r.Gateway = netip.MustParseAddr("10.0.0.1")
	assert.Equal(t, r.Gateway, r.NextHop())
}

func TestRouteError(t *testing.T) {
	err := &RouteError{
		ErrorType:   ErrNoRoute,
		Destination: netip.MustParseAddr("192.168.1.1"),
	}

	assert.False(t, err.IsRetryable())
	assert.True(t, errors.Is(err, ErrNoRouteToHost))
	assert.False(t, errors.Is(err, ErrIndex))
	assert.True(t, IsNoRoute(fmt.Errorf("resolve: %w", err)))
	assert.Contains(t, err.Error(), "192.168.1.1")
}

func TestErrorTypeString(t *testing.T) {
	tests := []struct {
		errorType ErrorType
		expected  string
	}{
		{ErrNoRoute, "NoRoute"},
		{ErrMissingInterface, "MissingInterface"},
		{ErrIndexOutOfRange, "IndexOutOfRange"},
		{ErrInvalidRoute, "InvalidRoute"},
		{ErrUnknownInterface, "UnknownInterface"},
		{ErrorType(99), "UnknownError"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.errorType.String())
		})
	}
}
