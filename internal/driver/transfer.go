package driver

/*
#include <libusb.h>
#include <stdlib.h>

void goTransferCallback(struct libusb_transfer *transfer);
*/
import "C"

import (
	"runtime/cgo"
	"time"
	"unsafe"

	usbhost "github.com/alexpevzner/usbhost"
)

// Transfer wraps a libusb_transfer, implementing usbhost.PlatformTransfer.
// Fill* records the submission parameters; Submit performs the actual
// libusb_fill_*_transfer + libusb_submit_transfer pair once the completion
// owner record exists, per §4.G's "Build"/"Submit protocol" split.
type Transfer struct {
	ptr    *C.libusb_transfer
	handle *C.libusb_device_handle

	kind          transferFillKind
	ep            C.uchar
	buf           []byte
	timeoutMs     C.uint
	isoLengths    []int
	numIsoPackets int
}

type transferFillKind int

const (
	fillControl transferFillKind = iota
	fillBulk
	fillInterrupt
	fillIso
)

func (t *Transfer) Buffer() []byte { return t.buf }

func (t *Transfer) FillControl(buf []byte, timeout time.Duration) {
	t.kind = fillControl
	t.buf = buf
	t.timeoutMs = C.uint(timeout.Milliseconds())
}

func (t *Transfer) FillBulk(ep uint8, buf []byte, timeout time.Duration) {
	t.kind = fillBulk
	t.ep = C.uchar(ep)
	t.buf = buf
	t.timeoutMs = C.uint(timeout.Milliseconds())
}

func (t *Transfer) FillInterrupt(ep uint8, buf []byte, timeout time.Duration) {
	t.kind = fillInterrupt
	t.ep = C.uchar(ep)
	t.buf = buf
	t.timeoutMs = C.uint(timeout.Milliseconds())
}

func (t *Transfer) FillIso(ep uint8, buf []byte, packetLengths []int, timeout time.Duration) {
	t.kind = fillIso
	t.ep = C.uchar(ep)
	t.buf = buf
	t.isoLengths = packetLengths
	t.timeoutMs = C.uint(timeout.Milliseconds())
}

// transferOwner is the owner record of §4.G "Submit protocol" step 1: it
// holds everything the exported callback needs, kept alive solely by the
// cgo.Handle stashed in the C transfer's user_data field and reclaimed
// exactly once when the callback fires.
type transferOwner struct {
	t          *Transfer
	onComplete func(usbhost.CompletionResult)
}

// Submit performs the deferred libusb_fill_*_transfer call, parks a
// transferOwner behind a runtime/cgo.Handle in user_data, and calls
// libusb_submit_transfer. On immediate failure the handle is reclaimed here
// since the driver never took ownership, per §4.G step 3.
func (t *Transfer) Submit(onComplete func(usbhost.CompletionResult)) error {
	owner := &transferOwner{t: t, onComplete: onComplete}
	h := cgo.NewHandle(owner)

	cb := C.libusb_transfer_cb_fn(unsafe.Pointer(C.goTransferCallback))
	userData := unsafe.Pointer(uintptr(h))

	var bufPtr *C.uchar
	if len(t.buf) > 0 {
		bufPtr = (*C.uchar)(unsafe.Pointer(&t.buf[0]))
	}

	switch t.kind {
	case fillControl:
		C.libusb_fill_control_transfer(t.ptr, t.handle, bufPtr, cb, userData, t.timeoutMs)
	case fillBulk:
		C.libusb_fill_bulk_transfer(t.ptr, t.handle, t.ep, bufPtr, C.int(len(t.buf)), cb, userData, t.timeoutMs)
	case fillInterrupt:
		C.libusb_fill_interrupt_transfer(t.ptr, t.handle, t.ep, bufPtr, C.int(len(t.buf)), cb, userData, t.timeoutMs)
	case fillIso:
		C.libusb_fill_iso_transfer(t.ptr, t.handle, t.ep, bufPtr, C.int(len(t.buf)),
			C.int(t.numIsoPackets), cb, userData, t.timeoutMs)
		packets := unsafe.Slice((*C.struct_libusb_iso_packet_descriptor)(unsafe.Pointer(&t.ptr.iso_packet_desc[0])), len(t.isoLengths))
		for i, l := range t.isoLengths {
			packets[i].length = C.uint(l)
		}
	}

	rc := C.libusb_submit_transfer(t.ptr)
	if rc < 0 {
		h.Delete()
		return newLibusbErr("libusb_submit_transfer", rc)
	}
	return nil
}

// Cancel requests libusb cancellation of an outstanding transfer, per §4.G
// "Cancellation". libusb_cancel_transfer on an already-completed transfer
// returns LIBUSB_ERROR_NOT_FOUND, which newLibusbErr maps to KindNotFound,
// matching invariant 5 of §8.
func (t *Transfer) Cancel() error {
	rc := C.libusb_cancel_transfer(t.ptr)
	if rc < 0 {
		return newLibusbErr("libusb_cancel_transfer", rc)
	}
	return nil
}

func (t *Transfer) Free() {
	C.libusb_free_transfer(t.ptr)
}

//export goTransferCallback
func goTransferCallback(xfer *C.libusb_transfer) {
	h := cgo.Handle(uintptr(xfer.user_data))
	owner, _ := h.Value().(*transferOwner)
	h.Delete()
	if owner == nil {
		return
	}

	ok, kind := kindFromTransferStatus(xfer.status)
	result := usbhost.CompletionResult{
		OK:           ok,
		Kind:         kind,
		ActualLength: int(xfer.actual_length),
	}

	if owner.t.kind == fillIso {
		n := int(xfer.num_iso_packets)
		packets := unsafe.Slice((*C.struct_libusb_iso_packet_descriptor)(unsafe.Pointer(&xfer.iso_packet_desc[0])), n)
		result.IsoActual = make([]int, n)
		result.IsoStatus = make([]usbhost.Kind, n)
		for i, p := range packets {
			result.IsoActual[i] = int(p.actual_length)
			if p.status != C.LIBUSB_TRANSFER_COMPLETED {
				_, result.IsoStatus[i] = kindFromTransferStatus(p.status)
			}
		}
	}

	owner.onComplete(result)
}
