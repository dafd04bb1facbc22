// Package packet extracts the header fields the forwarding engine needs from
// raw IPv4 datagrams.
package packet

import (
	"errors"
	"fmt"
	"net"
	"net/netip"

	"github.com/google/netstack/tcpip/header"
	"github.com/gopacket/gopacket"
	"github.com/gopacket/gopacket/layers"
	"go4.org/netipx"
)

// ErrChecksum is returned for a header whose checksum does not verify
var ErrChecksum = errors.New("invalid ipv4 header checksum")

// Header holds the forwarding-relevant IPv4 header fields
type Header struct {
	Source      netip.Addr
	Destination netip.Addr
	TTL         uint8
	Protocol    uint8
	Length      int // Total length from the header
}

// Decode parses and verifies the IPv4 header at the start of raw
func Decode(raw []byte) (Header, error) {
	if len(raw) < header.IPv4MinimumSize {
		return Header{}, fmt.Errorf("packet too short: %d bytes", len(raw))
	}
	if v := raw[0] >> 4; v != 4 {
		return Header{}, fmt.Errorf("unsupported ip version %d", v)
	}

	var ip layers.IPv4
	if err := ip.DecodeFromBytes(raw, gopacket.NilDecodeFeedback); err != nil {
		return Header{}, fmt.Errorf("failed to decode ipv4 header: %w", err)
	}

	hdrLen := int(ip.IHL) * 4
	if header.Checksum(raw[:hdrLen], 0) != 0xffff {
		return Header{}, ErrChecksum
	}

	src, ok := netipx.FromStdIP(ip.SrcIP)
	if !ok {
		return Header{}, fmt.Errorf("invalid source address %v", ip.SrcIP)
	}
	dst, ok := netipx.FromStdIP(ip.DstIP)
	if !ok {
		return Header{}, fmt.Errorf("invalid destination address %v", ip.DstIP)
	}

	return Header{
		Source:      src,
		Destination: dst,
		TTL:         ip.TTL,
		Protocol:    uint8(ip.Protocol),
		Length:      int(ip.Length),
	}, nil
}

// Encode builds an IPv4 datagram with a valid checksum around payload
func Encode(h Header, payload []byte) ([]byte, error) {
	if !h.Source.Is4() || !h.Destination.Is4() {
		return nil, fmt.Errorf("ipv4 addresses required, got %s -> %s", h.Source, h.Destination)
	}

	ttl := h.TTL
	if ttl == 0 {
		ttl = 64
	}
	src := h.Source.As4()
	dst := h.Destination.As4()
	ip := &layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      ttl,
		Protocol: layers.IPProtocol(h.Protocol),
		SrcIP:    net.IP(src[:]),
		DstIP:    net.IP(dst[:]),
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, ip, gopacket.Payload(payload)); err != nil {
		return nil, fmt.Errorf("failed to serialize ipv4 packet: %w", err)
	}
	return buf.Bytes(), nil
}
