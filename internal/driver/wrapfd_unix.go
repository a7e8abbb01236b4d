//go:build linux

package driver

/*
#include <libusb.h>
*/
import "C"

import (
	usbhost "github.com/alexpevzner/usbhost"
)

// WrapFD adopts an already-open file descriptor to a USB device node via
// libusb_wrap_sys_device, per §4.C's unix-only wrap_fd and §6's
// open_with_fd. Linux-only: libusb_wrap_sys_device requires a platform
// backend that accepts a raw fd (the Linux usbfs backend); other unix
// platforms fall through to the portable "not supported" stub in
// wrapfd_other.go.
func (c *Context) WrapFD(fd uintptr) (usbhost.PlatformDevice, usbhost.PlatformHandle, error) {
	var hptr *C.libusb_device_handle
	rc := C.libusb_wrap_sys_device(c.ptr, C.intptr_t(fd), &hptr)
	if rc < 0 {
		return nil, nil, newLibusbErr("libusb_wrap_sys_device", rc)
	}
	dev := C.libusb_get_device(hptr)
	C.libusb_ref_device(dev)
	return &Device{ptr: dev}, &Handle{ptr: hptr, dev: dev}, nil
}
