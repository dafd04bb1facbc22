package packet

import (
	"errors"
	"net/netip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	in := Header{
		Source:      netip.MustParseAddr("10.0.1.2"),
		Destination: netip.MustParseAddr("10.0.2.9"),
		TTL:         17,
		Protocol:    17,
	}
	raw, err := Encode(in, []byte("hello"))
	require.NoError(t, err)

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, in.Source, out.Source)
	assert.Equal(t, in.Destination, out.Destination)
	assert.Equal(t, uint8(17), out.TTL)
	assert.Equal(t, uint8(17), out.Protocol)
	assert.Equal(t, 20+5, out.Length)
}

func TestEncodeDefaultsTTL(t *testing.T) {
	raw, err := Encode(Header{
		Source:      netip.MustParseAddr("10.0.1.2"),
		Destination: netip.MustParseAddr("10.0.2.9"),
	}, nil)
	require.NoError(t, err)

	out, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, uint8(64), out.TTL)
}

func TestDecodeRejectsCorruptHeader(t *testing.T) {
	raw, err := Encode(Header{
		Source:      netip.MustParseAddr("10.0.1.2"),
		Destination: netip.MustParseAddr("10.0.2.9"),
	}, []byte("x"))
	require.NoError(t, err)

	raw[8]-- // TTL changed without fixing the checksum
	_, err = Decode(raw)
	assert.True(t, errors.Is(err, ErrChecksum))
}

func TestDecodeRejectsGarbage(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"short", []byte{0x45, 0, 0}},
		{"ipv6", append([]byte{0x60}, make([]byte, 39)...)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			assert.Error(t, err)
		})
	}
}

func TestEncodeRequiresIPv4(t *testing.T) {
	_, err := Encode(Header{
		Source:      netip.MustParseAddr("2001:db8::1"),
		Destination: netip.MustParseAddr("10.0.2.9"),
	}, nil)
	assert.Error(t, err)
}
