package usb

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Manager is the process-wide lazily-initialized singleton holding the
// driver Context and the event pump handle, per §4.J.
type Manager struct {
	ctx  PlatformDriver
	pump *eventPump

	closeOnce sync.Once
}

var (
	globalOnce sync.Once
	global     *Manager
	globalErr  error

	// newDriverContext is overridden in tests to inject a fake driver so
	// the concurrency logic above the driver boundary can run without
	// cgo/libusb present.
	newDriverContext = defaultDriverContext
)

// defaultDriverContext is the constructor in use until RegisterDriver
// installs another (cmd/usbinfo installs internal/driver's libusb-backed
// context); it only returns a not_supported error.
func defaultDriverContext() (PlatformDriver, error) {
	return nil, &Error{Op: "init", Kind: KindNotSupported, Message: "no driver context registered; see cmd/usbinfo for wiring"}
}

// RegisterDriver installs the platform driver's context constructor. Called
// once, typically from an init() in the binary's main package after
// importing internal/driver, per §9's "avoid reliance on static-constructor
// hooks" guidance — the registration is explicit, not implicit.
func RegisterDriver(ctor func() (PlatformDriver, error)) {
	newDriverContext = ctor
}

// GetManager returns the process-wide Manager, initializing it on first
// use. Initialization is idempotent, per §4.J.
func GetManager() (*Manager, error) {
	globalOnce.Do(func() {
		ctx, err := newDriverContext()
		if err != nil {
			globalErr = err
			return
		}
		m := &Manager{ctx: ctx, pump: newEventPump(ctx)}
		m.pump.start()
		global = m
	})
	return global, globalErr
}

// ListDevices enumerates every currently attached device, per §6
// list_devices. Enumeration does not open any device, per §4.C.
func (m *Manager) ListDevices() ([]*Device, error) {
	raws, err := m.ctx.DeviceList()
	if err != nil {
		return nil, err
	}
	devices := make([]*Device, 0, len(raws))
	for _, r := range raws {
		devices = append(devices, newDevice(m, r))
	}
	return devices, nil
}

// OpenWithVidPid finds the first enumerated device matching vid/pid and
// opens it, returning KindNotFound if none match.
func (m *Manager) OpenWithVidPid(vid, pid uint16) (*Device, *DeviceHandle, error) {
	devices, err := m.ListDevices()
	if err != nil {
		return nil, nil, err
	}
	for _, d := range devices {
		desc, err := d.Descriptor()
		if err != nil {
			continue
		}
		if desc.VendorID == vid && desc.ProductID == pid {
			h, err := d.Open()
			if err != nil {
				return nil, nil, err
			}
			return d, h, nil
		}
	}
	return nil, nil, &Error{Op: "open_with_vid_pid", Kind: KindNotFound}
}

// OpenWithFd adopts an already-open file descriptor to a USB device node,
// per §4.C's unix-only wrap_fd and §6's open_with_fd entry point. The
// returned Device/DeviceHandle pair is wired into the event pump exactly
// like one obtained through Open, so the counted-open/counted-close
// invariant (§8 invariant 1) holds for wrapped handles too.
func (m *Manager) OpenWithFd(fd uintptr) (*Device, *DeviceHandle, error) {
	rawDev, rawHandle, err := m.ctx.WrapFD(fd)
	if err != nil {
		return nil, nil, wrapErr("open_with_fd", kindFromOpenErr(err), err)
	}
	d := newDevice(m, rawDev)
	h := newDeviceHandle(d, rawHandle)
	m.pump.openDevice()
	d.opened = h
	return d, h, nil
}

// Shutdown signals the event pump to exit, joins it, and then calls the
// driver context's exit exactly once, per §4.J. Idempotent.
func (m *Manager) Shutdown(ctx context.Context) error {
	var err error
	m.closeOnce.Do(func() {
		g, _ := errgroup.WithContext(ctx)
		g.Go(func() error {
			m.pump.stop()
			return nil
		})
		err = g.Wait()
		m.ctx.Close()
	})
	return err
}
