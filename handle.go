package usb

import (
	"sync"
	"time"
)

const defaultTransferTimeout = 5 * time.Second

// DeviceHandle is an opened device: a driver handle and its set of claimed
// interface numbers, per §4.F. It does not record the
// auto-detach-kernel-driver setting. Device.Open and Manager.OpenWithFd run
// the pump's open_device side effect when they create a DeviceHandle;
// closing it runs the paired close_device exactly once.
type DeviceHandle struct {
	dev *Device
	raw PlatformHandle

	mu       sync.RWMutex
	claimed  map[int]struct{}
	closed   bool
	closeMu  sync.Mutex
}

func newDeviceHandle(dev *Device, raw PlatformHandle) *DeviceHandle {
	return &DeviceHandle{
		dev:     dev,
		raw:     raw,
		claimed: make(map[int]struct{}),
	}
}

// ClaimInterface claims interface n for I/O. Idempotent: if n is already in
// the claimed set, returns success without calling the driver again, per
// §4.F and invariant 2 of §8.
func (h *DeviceHandle) ClaimInterface(n int) error {
	h.mu.RLock()
	_, already := h.claimed[n]
	h.mu.RUnlock()
	if already {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, already := h.claimed[n]; already {
		return nil
	}
	if err := h.raw.ClaimInterface(n); err != nil {
		return err
	}
	h.claimed[n] = struct{}{}
	return nil
}

// ReleaseInterface releases a previously claimed interface. Releasing an
// interface not in the claimed set is a no-op.
func (h *DeviceHandle) ReleaseInterface(n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.claimed[n]; !ok {
		return nil
	}
	err := h.raw.ReleaseInterface(n)
	delete(h.claimed, n)
	return err
}

// isClaimed reports whether interface n is currently claimed. The sync
// transfer API does not call it; it claims through ensureClaimed and
// ClaimInterface, which is itself idempotent.
func (h *DeviceHandle) isClaimed(n int) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.claimed[n]
	return ok
}

// SetConfiguration implements the detach/release/reconfigure policy of
// §4.F. If v already equals the active configuration, this is a no-op
// (§8 invariant / S6: a repeated set_config issues no driver call).
func (h *DeviceHandle) SetConfiguration(v int) error {
	active, err := h.dev.raw.ActiveConfigValue()
	if err == nil && int(active) == v {
		return nil
	}

	// Step 1: disable auto-detach, with a scope guard that enables it
	// again on every exit path, whatever the setting was before, per
	// §4.F.
	if err := h.raw.SetAutoDetachKernelDriver(false); err != nil {
		return err
	}
	defer func() { _ = h.raw.SetAutoDetachKernelDriver(true) }()

	// Step 2: for each interface in the current active config, detach
	// the kernel driver if active, then release it. not_supported on
	// the kernel-driver-active query stops the loop without failing the
	// overall operation.
	if err == nil {
		if cfgs, cerr := h.dev.raw.ConfigDescriptors(); cerr == nil {
			for _, cfg := range cfgs {
				if cfg.ConfigurationValue != active {
					continue
				}
				for _, n := range cfg.Interfaces() {
					activeDriver, qerr := h.raw.KernelDriverActive(int(n))
					if qerr != nil {
						if k, ok := KindOf(qerr); ok && k == KindNotSupported {
							break
						}
						continue
					}
					if activeDriver {
						_ = h.raw.DetachKernelDriver(int(n))
					}
					_ = h.ReleaseInterface(int(n))
				}
			}
		}
	}

	// Step 3: issue the actual set_configuration.
	return h.raw.SetConfiguration(v)
}

// KernelDriverActive reports whether a kernel driver is attached to
// interface n, exposed standalone per SPEC_FULL.md's supplemented feature.
func (h *DeviceHandle) KernelDriverActive(n int) (bool, error) {
	return h.raw.KernelDriverActive(n)
}

// GetStringASCII resolves a string descriptor index to ASCII text. Index 0
// always yields the empty string without a driver round-trip, per §4.F and
// the USB spec (index 0 means "no string").
func (h *DeviceHandle) GetStringASCII(index uint8) (string, error) {
	if index == 0 {
		return "", nil
	}
	return h.raw.GetStringDescriptorASCII(index)
}

// Reset issues a device reset, per SPEC_FULL.md's supplemented feature; a
// documented recovery path after repeated pipe errors.
func (h *DeviceHandle) Reset() error {
	return h.raw.ResetDevice()
}

// Close releases every remaining claimed interface, then closes the driver
// handle exactly once and decrements the event pump's device counter, per
// §4.F. Safe to call more than once.
func (h *DeviceHandle) Close() {
	h.closeMu.Lock()
	defer h.closeMu.Unlock()
	if h.closed {
		return
	}
	h.closed = true

	h.mu.Lock()
	for n := range h.claimed {
		_ = h.raw.ReleaseInterface(n)
	}
	h.claimed = nil
	h.mu.Unlock()

	h.raw.Close()
	h.dev.mgr.pump.closeDevice()
	h.dev.clearOpened()
}
