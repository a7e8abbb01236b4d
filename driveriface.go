package usb

import "time"

// PlatformDriver is the subset of the underlying platform driver's global
// context this package depends on (§1: "the wrapped platform driver... is
// assumed"). The production implementation is internal/driver's cgo binding
// to libusb; tests substitute a fake so the hard concurrency logic in this
// package (event pump, transfer ownership, pipeline) can run without libusb.
type PlatformDriver interface {
	DeviceList() ([]PlatformDevice, error)
	// HandleEvents blocks the calling goroutine until an event arrives or
	// timeout elapses, per §4.C's handle_events_once.
	HandleEvents(timeout time.Duration) error
	// WrapFD adopts an already-open file descriptor to a USB device node
	// as a driver handle, per §4.C's unix-only wrap_fd. Implementations
	// on platforms without support for it return KindNotSupported (the
	// libusb driver supports it on Linux only).
	WrapFD(fd uintptr) (PlatformDevice, PlatformHandle, error)
	Close()
}

// PlatformDevice is one enumerated device reference (§4.E).
type PlatformDevice interface {
	Ref() PlatformDevice
	Unref()
	Descriptor() (DeviceDescriptor, error)
	ConfigDescriptors() ([]*ConfigDescriptor, error)
	ActiveConfigValue() (uint8, error)
	Speed() Speed
	BusNumber() int
	Address() int
	Open() (PlatformHandle, error)
}

// PlatformHandle is one opened device handle (§4.F).
type PlatformHandle interface {
	Close()
	ClaimInterface(n int) error
	ReleaseInterface(n int) error
	SetConfiguration(v int) error
	KernelDriverActive(n int) (bool, error)
	DetachKernelDriver(n int) error
	SetAutoDetachKernelDriver(enable bool) error
	GetStringDescriptorASCII(index uint8) (string, error)
	ResetDevice() error
	ClearHalt(ep uint8) error
	AllocTransfer(numIsoPackets int) PlatformTransfer
}

// PlatformTransfer is one allocated, reusable driver transfer slot (§4.G).
type PlatformTransfer interface {
	Buffer() []byte
	FillControl(buf []byte, timeout time.Duration)
	FillBulk(ep uint8, buf []byte, timeout time.Duration)
	FillInterrupt(ep uint8, buf []byte, timeout time.Duration)
	FillIso(ep uint8, buf []byte, packetLengths []int, timeout time.Duration)
	// Submit hands the transfer to the driver. onComplete is invoked
	// exactly once, from the event pump thread, when the transfer
	// reaches a terminal state.
	Submit(onComplete func(CompletionResult)) error
	// Cancel requests cancellation; idempotent, a no-op returning
	// KindNotFound once the transfer has already completed.
	Cancel() error
	Free()
}

// CompletionResult is what the driver reports back through a transfer's
// completion callback, per §4.G step 2 and §4.I's completion handler.
type CompletionResult struct {
	OK           bool
	Kind         Kind // meaningful only if !OK
	ActualLength int
	IsoActual    []int
	IsoStatus    []Kind
}
