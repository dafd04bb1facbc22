package entities

import (
	"fmt"
	"math/bits"
	"net/netip"
	"strconv"
	"strings"
)

// Mask is an IPv4 network mask held in host byte order
type Mask uint32

// Mask constants
const (
	// MaskZero matches every address (default route)
	MaskZero Mask = 0
	// MaskOnes matches a single address (host route)
	MaskOnes Mask = 0xffffffff
)

// MaskFromPrefixLen builds a contiguous mask with the given number of leading ones.
// Values outside [0, 32] are clamped.
func MaskFromPrefixLen(prefixLen int) Mask {
	switch {
	case prefixLen <= 0:
		return MaskZero
	case prefixLen >= 32:
		return MaskOnes
	}
	return Mask(^uint32(0) << (32 - prefixLen))
}

// ParseMask accepts dotted-quad ("255.255.0.0"), "/16" or "16". Masks must be contiguous.
func ParseMask(s string) (Mask, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MaskZero, fmt.Errorf("empty mask")
	}

	if strings.Contains(s, ".") {
		addr, err := netip.ParseAddr(s)
		if err != nil || !addr.Is4() {
			return MaskZero, fmt.Errorf("invalid mask %q", s)
		}
		m := Mask(AddrToUint32(addr))
		if MaskFromPrefixLen(m.PrefixLen()) != m {
			return MaskZero, fmt.Errorf("non-contiguous mask %q", s)
		}
		return m, nil
	}

	n, err := strconv.Atoi(strings.TrimPrefix(s, "/"))
	if err != nil || n < 0 || n > 32 {
		return MaskZero, fmt.Errorf("invalid prefix length %q", s)
	}
	return MaskFromPrefixLen(n), nil
}

// PrefixLen returns the number of leading one bits
func (m Mask) PrefixLen() int {
	return bits.LeadingZeros32(^uint32(m))
}

// IsMatch reports whether a and b fall in the same network under m
func (m Mask) IsMatch(a, b netip.Addr) bool {
	return AddrToUint32(a)&uint32(m) == AddrToUint32(b)&uint32(m)
}

// Combine returns a with its host bits cleared
func (m Mask) Combine(a netip.Addr) netip.Addr {
	return Uint32ToAddr(AddrToUint32(a) & uint32(m))
}

// String renders the mask in dotted-quad form
func (m Mask) String() string {
	return Uint32ToAddr(uint32(m)).String()
}

// AddrToUint32 converts an IPv4 (or IPv4-mapped) address to host byte order.
// Anything else converts to 0.
func AddrToUint32(a netip.Addr) uint32 {
	a = a.Unmap()
	if !a.Is4() {
		return 0
	}
	b := a.As4()
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// Uint32ToAddr is the inverse of AddrToUint32
func Uint32ToAddr(v uint32) netip.Addr {
	return netip.AddrFrom4([4]byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)})
}

// IsIPv4 reports whether a is usable by the IPv4 forwarding path
func IsIPv4(a netip.Addr) bool {
	return a.IsValid() && a.Unmap().Is4()
}

// IsLocalMulticast reports whether a is in 224.0.0.0/24
func IsLocalMulticast(a netip.Addr) bool {
	return IsIPv4(a) && AddrToUint32(a)&0xffffff00 == 0xe0000000
}

// IsMulticast reports whether a is in 224.0.0.0/4
func IsMulticast(a netip.Addr) bool {
	return IsIPv4(a) && AddrToUint32(a)&0xf0000000 == 0xe0000000
}
