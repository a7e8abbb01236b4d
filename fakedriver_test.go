package usb

import (
	"sync"
	"time"
)

// fakeTransfer is a PlatformTransfer double. By default Submit invokes the
// completion callback synchronously with nextResult; tests that need to
// control timing install onSubmit instead.
type fakeTransfer struct {
	buf        []byte
	timeout    time.Duration
	isoLengths []int

	submitErr  error
	nextResult CompletionResult
	onSubmit   func(f *fakeTransfer, onComplete func(CompletionResult)) error

	cancelErr error
	cancelled bool
	freed     bool
}

func (f *fakeTransfer) Buffer() []byte { return f.buf }

func (f *fakeTransfer) FillControl(buf []byte, timeout time.Duration) {
	f.buf = buf
	f.timeout = timeout
}

func (f *fakeTransfer) FillBulk(ep uint8, buf []byte, timeout time.Duration) {
	f.buf = buf
	f.timeout = timeout
}

func (f *fakeTransfer) FillInterrupt(ep uint8, buf []byte, timeout time.Duration) {
	f.buf = buf
	f.timeout = timeout
}

func (f *fakeTransfer) FillIso(ep uint8, buf []byte, packetLengths []int, timeout time.Duration) {
	f.buf = buf
	f.isoLengths = packetLengths
	f.timeout = timeout
}

func (f *fakeTransfer) Submit(onComplete func(CompletionResult)) error {
	if f.submitErr != nil {
		return f.submitErr
	}
	if f.onSubmit != nil {
		return f.onSubmit(f, onComplete)
	}
	onComplete(f.nextResult)
	return nil
}

func (f *fakeTransfer) Cancel() error {
	f.cancelled = true
	return f.cancelErr
}

func (f *fakeTransfer) Free() { f.freed = true }

// fakeHandle is a PlatformHandle double recording every call so tests can
// assert on policy (idempotent claim, detach-before-release order, and so
// on) without a real driver.
type fakeHandle struct {
	mu sync.Mutex

	claimed    map[int]bool
	claimCalls int
	claimErr   error

	releaseCalls []int

	configValue  int
	setConfigErr error

	kernelActive    map[int]bool
	kernelActiveErr error
	detached        []int

	autoDetachCalls []bool

	stringASCII map[uint8]string

	resetCalled    bool
	clearHaltCalls []uint8
	closeCalled    bool

	allocHook func(numIso int) PlatformTransfer
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{
		claimed:      make(map[int]bool),
		kernelActive: make(map[int]bool),
		stringASCII:  make(map[uint8]string),
	}
}

func (h *fakeHandle) Close() { h.closeCalled = true }

func (h *fakeHandle) ClaimInterface(n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.claimCalls++
	if h.claimErr != nil {
		return h.claimErr
	}
	h.claimed[n] = true
	return nil
}

func (h *fakeHandle) ReleaseInterface(n int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.releaseCalls = append(h.releaseCalls, n)
	delete(h.claimed, n)
	return nil
}

func (h *fakeHandle) SetConfiguration(v int) error {
	if h.setConfigErr != nil {
		return h.setConfigErr
	}
	h.configValue = v
	return nil
}

func (h *fakeHandle) KernelDriverActive(n int) (bool, error) {
	if h.kernelActiveErr != nil {
		return false, h.kernelActiveErr
	}
	return h.kernelActive[n], nil
}

func (h *fakeHandle) DetachKernelDriver(n int) error {
	h.detached = append(h.detached, n)
	return nil
}

func (h *fakeHandle) SetAutoDetachKernelDriver(enable bool) error {
	h.autoDetachCalls = append(h.autoDetachCalls, enable)
	return nil
}

func (h *fakeHandle) GetStringDescriptorASCII(index uint8) (string, error) {
	return h.stringASCII[index], nil
}

func (h *fakeHandle) ResetDevice() error {
	h.resetCalled = true
	return nil
}

func (h *fakeHandle) ClearHalt(ep uint8) error {
	h.clearHaltCalls = append(h.clearHaltCalls, ep)
	return nil
}

func (h *fakeHandle) AllocTransfer(numIsoPackets int) PlatformTransfer {
	if h.allocHook != nil {
		return h.allocHook(numIsoPackets)
	}
	return &fakeTransfer{}
}

// fakeDevice is a PlatformDevice double.
type fakeDevice struct {
	desc        DeviceDescriptor
	descErr     error
	configs     []*ConfigDescriptor
	activeValue uint8
	speed       Speed
	busNumber   int
	address     int

	openHook func() (PlatformHandle, error)
	refs     int
}

func (d *fakeDevice) Ref() PlatformDevice {
	d.refs++
	return d
}

func (d *fakeDevice) Unref() { d.refs-- }

func (d *fakeDevice) Descriptor() (DeviceDescriptor, error) { return d.desc, d.descErr }

func (d *fakeDevice) ConfigDescriptors() ([]*ConfigDescriptor, error) { return d.configs, nil }

func (d *fakeDevice) ActiveConfigValue() (uint8, error) { return d.activeValue, nil }

func (d *fakeDevice) Speed() Speed { return d.speed }

func (d *fakeDevice) BusNumber() int { return d.busNumber }

func (d *fakeDevice) Address() int { return d.address }

func (d *fakeDevice) Open() (PlatformHandle, error) {
	if d.openHook != nil {
		return d.openHook()
	}
	return newFakeHandle(), nil
}

// fakeDriver is a PlatformDriver double.
type fakeDriver struct {
	mu sync.Mutex

	devices []PlatformDevice

	handleEventsFunc  func(timeout time.Duration) error
	handleEventsCalls int

	wrapFDFunc func(fd uintptr) (PlatformDevice, PlatformHandle, error)

	closeCalled bool
}

func (f *fakeDriver) DeviceList() ([]PlatformDevice, error) { return f.devices, nil }

func (f *fakeDriver) HandleEvents(timeout time.Duration) error {
	f.mu.Lock()
	f.handleEventsCalls++
	fn := f.handleEventsFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(timeout)
	}
	return nil
}

func (f *fakeDriver) WrapFD(fd uintptr) (PlatformDevice, PlatformHandle, error) {
	if f.wrapFDFunc != nil {
		return f.wrapFDFunc(fd)
	}
	return &fakeDevice{}, newFakeHandle(), nil
}

func (f *fakeDriver) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handleEventsCalls
}

func (f *fakeDriver) Close() { f.closeCalled = true }

// singleAltConfig builds a minimal one-interface, one-endpoint config
// descriptor for tests that only need endpoint lookup to succeed.
func singleAltConfig(value uint8, ifaceNum uint8, ep EndpointDescriptor) *ConfigDescriptor {
	c := NewConfigDescriptor(value, 50, SpeedHigh, "", nil)
	c.AltSettings[ifaceNum] = []InterfaceAltSetting{{
		InterfaceNumber: ifaceNum,
		Endpoints:       []EndpointDescriptor{ep},
	}}
	return c
}
