package driver

/*
#include <libusb.h>
*/
import "C"

import (
	"unsafe"

	usbhost "github.com/alexpevzner/usbhost"
)

// Handle wraps a libusb_device_handle, implementing usbhost.PlatformHandle.
// Grounded on the teacher's UsbDevHandle/UsbInterface split
// (usbio_libusb.go), collapsed into one type since this package exposes
// claim/release as explicit operations rather than a single OpenUsbInterface
// call.
type Handle struct {
	ptr *C.libusb_device_handle
	dev *C.libusb_device
}

func (h *Handle) Close() {
	C.libusb_close(h.ptr)
}

func (h *Handle) ClaimInterface(n int) error {
	rc := C.libusb_claim_interface(h.ptr, C.int(n))
	if rc < 0 {
		return newLibusbErr("libusb_claim_interface", rc)
	}
	return nil
}

func (h *Handle) ReleaseInterface(n int) error {
	rc := C.libusb_release_interface(h.ptr, C.int(n))
	if rc < 0 {
		return newLibusbErr("libusb_release_interface", rc)
	}
	return nil
}

func (h *Handle) SetConfiguration(v int) error {
	rc := C.libusb_set_configuration(h.ptr, C.int(v))
	if rc < 0 {
		return newLibusbErr("libusb_set_configuration", rc)
	}
	return nil
}

func (h *Handle) KernelDriverActive(n int) (bool, error) {
	rc := C.libusb_kernel_driver_active(h.ptr, C.int(n))
	if rc < 0 {
		return false, newLibusbErr("libusb_kernel_driver_active", rc)
	}
	return rc == 1, nil
}

func (h *Handle) DetachKernelDriver(n int) error {
	rc := C.libusb_detach_kernel_driver(h.ptr, C.int(n))
	if rc < 0 && rc != C.LIBUSB_ERROR_NOT_FOUND {
		return newLibusbErr("libusb_detach_kernel_driver", rc)
	}
	return nil
}

// SetAutoDetachKernelDriver toggles libusb's own auto-detach behavior, the
// policy flag §4.F's SetConfiguration scope-guards.
func (h *Handle) SetAutoDetachKernelDriver(enable bool) error {
	v := C.int(0)
	if enable {
		v = 1
	}
	rc := C.libusb_set_auto_detach_kernel_driver(h.ptr, v)
	if rc < 0 && rc != C.LIBUSB_ERROR_NOT_SUPPORTED {
		return newLibusbErr("libusb_set_auto_detach_kernel_driver", rc)
	}
	return nil
}

func (h *Handle) GetStringDescriptorASCII(index uint8) (string, error) {
	buf := make([]byte, 256)
	rc := C.libusb_get_string_descriptor_ascii(h.ptr, C.uint8_t(index),
		(*C.uchar)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
	if rc < 0 {
		return "", newLibusbErr("libusb_get_string_descriptor_ascii", rc)
	}
	return string(buf[:rc]), nil
}

func (h *Handle) ResetDevice() error {
	rc := C.libusb_reset_device(h.ptr)
	if rc < 0 {
		return newLibusbErr("libusb_reset_device", rc)
	}
	return nil
}

func (h *Handle) ClearHalt(ep uint8) error {
	rc := C.libusb_clear_halt(h.ptr, C.uchar(ep))
	if rc < 0 {
		return newLibusbErr("libusb_clear_halt", rc)
	}
	return nil
}

func (h *Handle) AllocTransfer(numIsoPackets int) usbhost.PlatformTransfer {
	ptr := C.libusb_alloc_transfer(C.int(numIsoPackets))
	return &Transfer{ptr: ptr, handle: h.ptr, numIsoPackets: numIsoPackets}
}
