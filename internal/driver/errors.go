// Package driver is the cgo binding to libusb-1.0: the single place this
// module calls libusb. Every other package operates against the
// usb.PlatformDriver/PlatformDevice/PlatformHandle/PlatformTransfer
// interfaces so the hard concurrency logic can be built and tested without
// libusb; this package supplies the production
// implementation of those interfaces.
package driver

/*
#cgo pkg-config: libusb-1.0
#include <libusb.h>

static inline const char *
libusb_strerror_wrapper(int code) {
	return libusb_strerror(code);
}
*/
import "C"

import (
	usbhost "github.com/alexpevzner/usbhost"
)

// libusbError pairs an operation name with a raw libusb_error return code;
// its Error text is libusb's own description of that code.
type libusbError struct {
	op   string
	code C.int
}

func (e *libusbError) Error() string {
	return e.op + ": " + C.GoString(C.libusb_strerror_wrapper(e.code))
}

func newLibusbErr(op string, rc C.int) error {
	return &usbhost.Error{Op: op, Kind: kindFromLibusbCode(rc), Message: C.GoString(C.libusb_strerror_wrapper(rc))}
}

// kindFromLibusbCode maps a `enum libusb_error` value onto the closed
// usb.Kind taxonomy, per §4.A. An unrecognized code becomes usb.KindOther.
func kindFromLibusbCode(rc C.int) usbhost.Kind {
	switch rc {
	case C.LIBUSB_SUCCESS:
		return usbhost.KindIO // never surfaced as an error; callers check rc < 0 first
	case C.LIBUSB_ERROR_IO:
		return usbhost.KindIO
	case C.LIBUSB_ERROR_INVALID_PARAM:
		return usbhost.KindInvalidParam
	case C.LIBUSB_ERROR_ACCESS:
		return usbhost.KindAccess
	case C.LIBUSB_ERROR_NO_DEVICE:
		return usbhost.KindNoDevice
	case C.LIBUSB_ERROR_NOT_FOUND:
		return usbhost.KindNotFound
	case C.LIBUSB_ERROR_BUSY:
		return usbhost.KindBusy
	case C.LIBUSB_ERROR_TIMEOUT:
		return usbhost.KindTimeout
	case C.LIBUSB_ERROR_OVERFLOW:
		return usbhost.KindOverflow
	case C.LIBUSB_ERROR_PIPE:
		return usbhost.KindPipe
	case C.LIBUSB_ERROR_INTERRUPTED:
		return usbhost.KindInterrupted
	case C.LIBUSB_ERROR_NO_MEM:
		return usbhost.KindNoMem
	case C.LIBUSB_ERROR_NOT_SUPPORTED:
		return usbhost.KindNotSupported
	default:
		return usbhost.KindOther
	}
}

// kindFromTransferStatus maps `enum libusb_transfer_status` onto usb.Kind,
// per §4.G "Completion callback" step 2.
func kindFromTransferStatus(status C.enum_libusb_transfer_status) (ok bool, kind usbhost.Kind) {
	switch status {
	case C.LIBUSB_TRANSFER_COMPLETED:
		return true, usbhost.KindIO
	case C.LIBUSB_TRANSFER_CANCELLED:
		return false, usbhost.KindCancelled
	case C.LIBUSB_TRANSFER_TIMED_OUT:
		return false, usbhost.KindTimeout
	case C.LIBUSB_TRANSFER_STALL:
		return false, usbhost.KindNotSupported
	case C.LIBUSB_TRANSFER_NO_DEVICE:
		return false, usbhost.KindNoDevice
	case C.LIBUSB_TRANSFER_OVERFLOW:
		return false, usbhost.KindOverflow
	case C.LIBUSB_TRANSFER_ERROR:
		return false, usbhost.KindIO
	default:
		return false, usbhost.KindOther
	}
}
