package network

import (
	"fmt"
	"net"
	"net/netip"

	"go4.org/netipx"

	"github.com/wesleywu/ocs-route/internal/routing/entities"
)

type InterfaceInfo struct {
	ID         uint32
	Name       string
	Addresses  []InterfaceAddress
	IsUp       bool
	Forwarding bool
	IsLoopback bool
}

func (info *InterfaceInfo) HasIPv4() bool {
	return len(info.Addresses) > 0
}

func (info *InterfaceInfo) GetIPv4Addresses() []netip.Addr {
	addrs := make([]netip.Addr, 0, len(info.Addresses))
	for _, a := range info.Addresses {
		addrs = append(addrs, a.Local)
	}
	return addrs
}

func (info *InterfaceInfo) clone() InterfaceInfo {
	c := *info
	c.Addresses = append([]InterfaceAddress(nil), info.Addresses...)
	return c
}

// GetNetworkInterfaces snapshots the host interfaces with their IPv4 addresses.
// Loopback interfaces do not forward; everything else does.
func GetNetworkInterfaces() ([]InterfaceInfo, error) {
	interfaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	var result []InterfaceInfo
	for _, iface := range interfaces {
		info := InterfaceInfo{
			ID:         uint32(iface.Index),
			Name:       iface.Name,
			IsUp:       iface.Flags&net.FlagUp != 0,
			IsLoopback: iface.Flags&net.FlagLoopback != 0,
		}
		info.Forwarding = !info.IsLoopback

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok {
				continue
			}
			p, ok := netipx.FromStdIPNet(ipNet)
			if !ok || !p.Addr().Is4() {
				continue
			}
			info.Addresses = append(info.Addresses, InterfaceAddress{
				Local: p.Addr(),
				Mask:  entities.MaskFromPrefixLen(p.Bits()),
			})
		}

		result = append(result, info)
	}

	return result, nil
}

// LoadHostNode builds a StaticNode mirroring the host interfaces
func LoadHostNode() (*StaticNode, error) {
	interfaces, err := GetNetworkInterfaces()
	if err != nil {
		return nil, err
	}

	node := NewStaticNode()
	for _, info := range interfaces {
		if err := node.AddInterface(info); err != nil {
			return nil, err
		}
	}
	return node, nil
}
