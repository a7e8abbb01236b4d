package usb

import "sync"

// Device is a descriptor-bearing reference to an enumerated USB device, per
// §3/§4.E. It holds the driver device reference taken at enumeration; no
// method of Device calls the driver's Unref, so that reference is not
// released when the Device becomes unreachable.
type Device struct {
	mgr *Manager
	raw PlatformDevice

	descOnce sync.Once
	desc     DeviceDescriptor
	descErr  error

	mu     sync.Mutex
	opened *DeviceHandle // lazily created, cached across Open() calls
}

func newDevice(mgr *Manager, raw PlatformDevice) *Device {
	return &Device{mgr: mgr, raw: raw}
}

// Descriptor returns the device's top-level descriptor, per §4.E.
func (d *Device) Descriptor() (DeviceDescriptor, error) {
	d.descOnce.Do(func() {
		d.desc, d.descErr = d.raw.Descriptor()
	})
	return d.desc, d.descErr
}

// ConfigList returns every configuration descriptor the device advertises.
func (d *Device) ConfigList() ([]*ConfigDescriptor, error) {
	return d.raw.ConfigDescriptors()
}

// ActiveConfig returns the descriptor of the currently selected
// configuration.
func (d *Device) ActiveConfig() (*ConfigDescriptor, error) {
	value, err := d.raw.ActiveConfigValue()
	if err != nil {
		return nil, err
	}
	configs, err := d.raw.ConfigDescriptors()
	if err != nil {
		return nil, err
	}
	for _, c := range configs {
		if c.ConfigurationValue == value {
			return c, nil
		}
	}
	return nil, &Error{Op: "active_config", Kind: KindNotFound}
}

// Speed returns the device's negotiated connection speed.
func (d *Device) Speed() Speed {
	return d.raw.Speed()
}

// MaxPacketSize looks up endpoint ep's max packet size from the active
// configuration, per SPEC_FULL.md's supplemented per-endpoint lookup.
func (d *Device) MaxPacketSize(ep uint8) (uint16, error) {
	cfg, err := d.ActiveConfig()
	if err != nil {
		return 0, err
	}
	for _, alts := range cfg.AltSettings {
		for _, alt := range alts {
			for _, e := range alt.Endpoints {
				if e.Address() == ep {
					return e.MaxPacketSize, nil
				}
			}
		}
	}
	return 0, &Error{Op: "max_packet_size", Kind: KindNotFound}
}

// Open returns this device's DeviceHandle, opening the driver handle on
// first call and reusing the cached handle on every later call, per §4.E
// ("open is the only transition that creates/returns a DeviceHandle").
func (d *Device) Open() (*DeviceHandle, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.opened != nil {
		return d.opened, nil
	}
	raw, err := d.raw.Open()
	if err != nil {
		return nil, wrapErr("open", kindFromOpenErr(err), err)
	}
	h := newDeviceHandle(d, raw)
	d.mgr.pump.openDevice()
	d.opened = h
	return h, nil
}

func kindFromOpenErr(err error) Kind {
	if k, ok := KindOf(err); ok {
		return k
	}
	return KindOther
}

// clearOpened is called by DeviceHandle.Close and clears the cached slot so a
// later Open() re-opens the driver handle, matching the driver's own
// single-open-per-handle lifetime.
func (d *Device) clearOpened() {
	d.mu.Lock()
	d.opened = nil
	d.mu.Unlock()
}
