package main

import (
	"bytes"
	"math"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wesleywu/ocs-route/internal/routing/circuit"
	"github.com/wesleywu/ocs-route/internal/routing/engine"
	"github.com/wesleywu/ocs-route/internal/routing/entities"
)

func TestParsePairs(t *testing.T) {
	pairs, err := parsePairs([]string{"1:2", "2:1", "3:3"})
	require.NoError(t, err)
	assert.Equal(t, []circuit.CrossConnect{{Input: 1, Output: 2}, {Input: 2, Output: 1}, {Input: 3, Output: 3}}, pairs)

	pairs, err = parsePairs(nil)
	require.NoError(t, err)
	assert.Empty(t, pairs)

	for _, bad := range []string{"1", "a:2", "1:b", "1:-2", "1:4294967296"} {
		_, err := parsePairs([]string{bad})
		assert.Error(t, err, bad)
	}
}

func TestParseAddr(t *testing.T) {
	a, err := parseAddr("::ffff:10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.1"), a)

	_, err = parseAddr("fe80::1")
	assert.Error(t, err)
	_, err = parseAddr("10.0.0")
	assert.Error(t, err)
}

func TestLookupInterface(t *testing.T) {
	oif, err := lookupInterface(-1)
	require.NoError(t, err)
	assert.Equal(t, engine.AnyInterface, oif)

	oif, err = lookupInterface(3)
	require.NoError(t, err)
	assert.Equal(t, uint32(3), oif)

	oif, err = lookupInterface(math.MaxUint32 - 1)
	require.NoError(t, err)
	assert.Equal(t, uint32(math.MaxUint32-1), oif)

	for _, v := range []int64{math.MaxUint32, math.MaxUint32 + 1, math.MaxInt64} {
		_, err := lookupInterface(v)
		assert.Error(t, err, v)
	}
}

func TestRunLookupFailsWithoutRoute(t *testing.T) {
	silentMode = true
	t.Cleanup(func() {
		silentMode = false
		outputIface = -1
	})

	// The sample default route leaves through eth3
	outputIface = -1
	require.NoError(t, runLookup(nil, []string{"203.0.113.1"}))

	outputIface = 2
	err := runLookup(nil, []string{"203.0.113.1"})
	require.Error(t, err)
	assert.True(t, entities.IsNoRoute(err))

	outputIface = math.MaxUint32
	assert.Error(t, runLookup(nil, []string{"203.0.113.1"}))
}

func TestPrintTable(t *testing.T) {
	rows := []entities.DumpRow{
		{
			Destination: netip.MustParseAddr("10.0.0.0"),
			Gateway:     netip.MustParseAddr("10.0.3.254"),
			Mask:        entities.MaskFromPrefixLen(8),
			Flags:       "UGS",
			Metric:      1,
			Interface:   3,
			IfaceName:   "eth3",
		},
		{
			Destination: netip.MustParseAddr("10.0.1.0"),
			Gateway:     netip.IPv4Unspecified(),
			Mask:        entities.MaskFromPrefixLen(24),
			Flags:       "U",
			Interface:   7,
		},
	}

	var buf bytes.Buffer
	printTable(&buf, rows)
	out := buf.String()

	assert.Contains(t, out, "Kernel IP routing table")
	assert.Contains(t, out, "Genmask")
	assert.Contains(t, out, "255.0.0.0")
	assert.Contains(t, out, "10.0.3.254")
	assert.Contains(t, out, "eth3")
	// Unnamed interfaces fall back to the index
	assert.Contains(t, out, "7")
}

func TestGateState(t *testing.T) {
	assert.Equal(t, "active", gateState(true))
	assert.Equal(t, "inactive", gateState(false))
}
