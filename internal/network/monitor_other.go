//go:build !darwin && !linux

package network

import (
	"fmt"
	"runtime"
)

func newKernelNotifier() (kernelNotifier, error) {
	return nil, fmt.Errorf("route socket not supported on %s", runtime.GOOS)
}
