package network

import (
	"fmt"
	"sync"
	"time"

	"github.com/wesleywu/ocs-route/internal/logger"
)

// kernelNotifier signals that the host interface or address state may have changed
type kernelNotifier interface {
	C() <-chan struct{}
	Close() error
}

// Watcher keeps a StaticNode in step with the host interfaces. It polls on a
// fixed interval and, where the platform supports it, also re-syncs as soon as
// the kernel reports a link or address change.
type Watcher struct {
	node         *StaticNode
	source       func() ([]InterfaceInfo, error)
	pollInterval time.Duration
	logger       *logger.Logger
	kernelEvents bool

	stopChan  chan struct{}
	wg        sync.WaitGroup
	mutex     sync.Mutex
	isRunning bool
	notifier  kernelNotifier
}

// WatcherOptions configures a Watcher
type WatcherOptions struct {
	PollInterval time.Duration // Default 2s
	Logger       *logger.Logger
	// KernelEvents enables the route socket wake-up
	KernelEvents bool
}

// NewWatcher creates a watcher feeding node from the host interfaces
func NewWatcher(node *StaticNode, opts WatcherOptions) *Watcher {
	return newWatcher(node, GetNetworkInterfaces, opts)
}

func newWatcher(node *StaticNode, source func() ([]InterfaceInfo, error), opts WatcherOptions) *Watcher {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = logger.NewNop()
	}
	return &Watcher{
		node:         node,
		source:       source,
		pollInterval: opts.PollInterval,
		logger:       log.WithComponent("watcher"),
		kernelEvents: opts.KernelEvents,
	}
}

// Start begins watching. onChange, if set, runs after every sync that changed the node.
func (w *Watcher) Start(onChange func(changes int)) error {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	if w.isRunning {
		return fmt.Errorf("watcher is already running")
	}

	var wake <-chan struct{}
	if w.kernelEvents {
		n, err := newKernelNotifier()
		if err != nil {
			w.logger.Warn("Route socket unavailable, polling only", "error", err)
		} else {
			w.notifier = n
			wake = n.C()
		}
	}

	w.stopChan = make(chan struct{})
	w.wg.Add(1)
	go w.run(wake, onChange)
	w.isRunning = true
	return nil
}

// Stop ends watching and waits for the loop to exit
func (w *Watcher) Stop() error {
	w.mutex.Lock()
	if !w.isRunning {
		w.mutex.Unlock()
		return nil
	}
	close(w.stopChan)
	w.isRunning = false
	notifier := w.notifier
	w.notifier = nil
	w.mutex.Unlock()

	w.wg.Wait()
	if notifier != nil {
		return notifier.Close()
	}
	return nil
}

func (w *Watcher) run(wake <-chan struct{}, onChange func(int)) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ticker.C:
		case <-wake:
		}

		changes, err := w.Sync()
		if err != nil {
			w.logger.Warn("Interface sync failed", "error", err)
			continue
		}
		if changes > 0 && onChange != nil {
			onChange(changes)
		}
	}
}

// Sync applies one snapshot of the host to the node and returns the number
// of changes. Address changes are applied before state changes so an
// interface coming up announces its final address set.
func (w *Watcher) Sync() (int, error) {
	current, err := w.source()
	if err != nil {
		return 0, err
	}

	changes := 0
	seen := make(map[uint32]bool, len(current))
	for _, info := range current {
		seen[info.ID] = true

		known, err := w.node.GetInterface(info.ID)
		if err != nil {
			if err := w.node.AddInterface(info); err != nil {
				return changes, err
			}
			w.logger.Info("Interface discovered", "interface", info.ID, "name", info.Name, "up", info.IsUp)
			changes++
			continue
		}

		n, err := w.syncAddresses(info.ID, known.Addresses, info.Addresses)
		changes += n
		if err != nil {
			return changes, err
		}

		if known.Forwarding != info.Forwarding {
			if err := w.node.SetForwarding(info.ID, info.Forwarding); err != nil {
				return changes, err
			}
			changes++
		}
		if known.IsUp != info.IsUp {
			if info.IsUp {
				err = w.node.SetUp(info.ID)
			} else {
				err = w.node.SetDown(info.ID)
			}
			if err != nil {
				return changes, err
			}
			changes++
		}
	}

	// Vanished interfaces stay registered but go down
	for _, id := range w.node.Interfaces() {
		if !seen[id] && w.node.IsUp(id) {
			if err := w.node.SetDown(id); err != nil {
				return changes, err
			}
			w.logger.Info("Interface vanished", "interface", id)
			changes++
		}
	}
	return changes, nil
}

func (w *Watcher) syncAddresses(iface uint32, old, current []InterfaceAddress) (int, error) {
	changes := 0
	for _, a := range old {
		if !containsAddress(current, a) {
			if err := w.node.RemoveAddress(iface, a); err != nil {
				return changes, err
			}
			changes++
		}
	}
	for _, a := range current {
		if !containsAddress(old, a) {
			if err := w.node.AddAddress(iface, a); err != nil {
				return changes, err
			}
			changes++
		}
	}
	return changes, nil
}

func containsAddress(list []InterfaceAddress, a InterfaceAddress) bool {
	for _, b := range list {
		if a == b {
			return true
		}
	}
	return false
}
