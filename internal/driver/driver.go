package driver

/*
#include <libusb.h>
*/
import "C"

import (
	"time"
	"unsafe"

	usbhost "github.com/alexpevzner/usbhost"
)

// Context wraps a libusb_context, implementing usbhost.PlatformDriver. Its
// construction and the single call to libusb_exit at teardown are grounded
// on the teacher's libusbContext double-checked init (usbio_libusb.go).
type Context struct {
	ptr *C.libusb_context
}

// NewContext initializes libusb and returns the wrapped context. Intended
// to be wired in once via usbhost.RegisterDriver from a binary's main
// package; see cmd/usbinfo.
func NewContext() (*Context, error) {
	var ptr *C.libusb_context
	rc := C.libusb_init(&ptr)
	if rc < 0 {
		return nil, newLibusbErr("libusb_init", rc)
	}
	return &Context{ptr: ptr}, nil
}

// DeviceList enumerates every currently attached device, per §4.C
// device_list ("yields references; it does not open any device").
func (c *Context) DeviceList() ([]usbhost.PlatformDevice, error) {
	var list **C.libusb_device
	cnt := C.libusb_get_device_list(c.ptr, &list)
	if cnt < 0 {
		return nil, newLibusbErr("libusb_get_device_list", C.int(cnt))
	}
	// unref_devices=0: each wrapped Device takes its own reference below,
	// then the list itself (not the devices) is freed.
	defer C.libusb_free_device_list(list, 0)

	devs := unsafe.Slice((**C.libusb_device)(unsafe.Pointer(list)), int(cnt))
	out := make([]usbhost.PlatformDevice, 0, cnt)
	for _, d := range devs {
		C.libusb_ref_device(d)
		out = append(out, &Device{ptr: d})
	}
	return out, nil
}

// HandleEvents blocks for up to timeout waiting for the next libusb event,
// per §4.C handle_events_once as used by the event pump (§4.D).
func (c *Context) HandleEvents(timeout time.Duration) error {
	tv := C.struct_timeval{
		tv_sec:  C.long(timeout / time.Second),
		tv_usec: C.long((timeout % time.Second) / time.Microsecond),
	}
	rc := C.libusb_handle_events_timeout_completed(c.ptr, &tv, nil)
	if rc < 0 {
		return newLibusbErr("libusb_handle_events_timeout_completed", rc)
	}
	return nil
}

// Close calls libusb_exit exactly once, per §4.C ("exit is idempotent and
// must be the final driver call") and §4.J shutdown.
func (c *Context) Close() {
	if c.ptr != nil {
		C.libusb_exit(c.ptr)
		c.ptr = nil
	}
}
