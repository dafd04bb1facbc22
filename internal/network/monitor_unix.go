//go:build darwin || linux

package network

import (
	"errors"
	"sync"

	"golang.org/x/sys/unix"
)

// routeSocketNotifier turns route socket messages into wake-ups. Message
// contents are not parsed; any message triggers a re-sync.
type routeSocketNotifier struct {
	fd     int
	events chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
}

func newKernelNotifier() (kernelNotifier, error) {
	fd, err := openRouteSocket()
	if err != nil {
		return nil, err
	}
	// Bounded reads let the loop observe Close
	tv := unix.Timeval{Sec: 1}
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		unix.Close(fd)
		return nil, err
	}

	n := &routeSocketNotifier{
		fd:     fd,
		events: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	n.wg.Add(1)
	go n.read()
	return n, nil
}

func (n *routeSocketNotifier) C() <-chan struct{} {
	return n.events
}

func (n *routeSocketNotifier) Close() error {
	close(n.done)
	n.wg.Wait()
	return unix.Close(n.fd)
}

func (n *routeSocketNotifier) read() {
	defer n.wg.Done()

	buffer := make([]byte, 4096)
	for {
		select {
		case <-n.done:
			return
		default:
		}

		size, err := unix.Read(n.fd, buffer)
		if err != nil {
			if isTemporary(err) {
				continue
			}
			return
		}
		if size == 0 {
			continue
		}

		// Coalesce bursts into one pending wake-up
		select {
		case n.events <- struct{}{}:
		default:
		}
	}
}

func isTemporary(err error) bool {
	return errors.Is(err, unix.EAGAIN) ||
		errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINTR) ||
		errors.Is(err, unix.ENOBUFS)
}
