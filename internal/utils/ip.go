package utils

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/wesleywu/ocs-route/internal/routing/entities"
)

// ParseDestination parses a route destination into a network and mask.
// Accepted forms: "default", "10.1.0.0/16", "10.1.0.0/255.255.0.0",
// a bare address (host route) and the netstat shorthand "10.1" or "10.1/16".
func ParseDestination(dest string) (netip.Addr, entities.Mask, error) {
	dest = strings.TrimSpace(dest)
	if dest == "default" {
		return netip.IPv4Unspecified(), entities.MaskZero, nil
	}

	ip, maskPart, hasMask := strings.Cut(dest, "/")
	dotCount := strings.Count(ip, ".")
	if dotCount > 3 || ip == "" {
		return netip.Addr{}, 0, fmt.Errorf("unsupported destination format: %s", dest)
	}

	// Add missing octets: "1.0.1" -> "1.0.1.0"
	implied := entities.MaskOnes
	if dotCount < 3 {
		implied = entities.MaskFromPrefixLen(8 * (dotCount + 1))
		ip += strings.Repeat(".0", 3-dotCount)
	}

	network, err := netip.ParseAddr(ip)
	if err != nil || !network.Is4() {
		return netip.Addr{}, 0, fmt.Errorf("unsupported destination format: %s", dest)
	}

	mask := implied
	if hasMask {
		mask, err = entities.ParseMask(maskPart)
		if err != nil {
			return netip.Addr{}, 0, fmt.Errorf("invalid destination %s: %w", dest, err)
		}
	}
	return network, mask, nil
}

// ParseGateway parses a next hop. "", "*" and "0.0.0.0" mean on-link and
// return the zero Addr.
func ParseGateway(s string) (netip.Addr, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "*" {
		return netip.Addr{}, nil
	}
	gw, err := netip.ParseAddr(s)
	if err != nil || !entities.IsIPv4(gw) {
		return netip.Addr{}, fmt.Errorf("invalid gateway %q", s)
	}
	gw = gw.Unmap()
	if gw.IsUnspecified() {
		return netip.Addr{}, nil
	}
	return gw, nil
}
