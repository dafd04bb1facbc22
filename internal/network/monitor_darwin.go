package network

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// openRouteSocket opens a PF_ROUTE socket, which receives every routing message
func openRouteSocket() (int, error) {
	fd, err := unix.Socket(unix.AF_ROUTE, unix.SOCK_RAW, unix.AF_UNSPEC)
	if err != nil {
		return -1, fmt.Errorf("failed to create route socket: %w", err)
	}
	return fd, nil
}
