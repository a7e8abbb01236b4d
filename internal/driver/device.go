package driver

/*
#include <libusb.h>
#include <stdlib.h>
*/
import "C"

import (
	"unsafe"

	usbhost "github.com/alexpevzner/usbhost"
)

// Device wraps a libusb_device, implementing usbhost.PlatformDevice. Ref
// counting and the descriptor walk are grounded on the teacher's
// libusbBuildUsbDeviceDesc (usbio_libusb.go), generalized to copy every
// interface/alt-setting/endpoint into the typed descriptor model instead of
// filtering for one printer class.
type Device struct {
	ptr *C.libusb_device
}

func (d *Device) Ref() usbhost.PlatformDevice {
	C.libusb_ref_device(d.ptr)
	return &Device{ptr: d.ptr}
}

func (d *Device) Unref() {
	C.libusb_unref_device(d.ptr)
}

func (d *Device) BusNumber() int {
	return int(C.libusb_get_bus_number(d.ptr))
}

func (d *Device) Address() int {
	return int(C.libusb_get_device_address(d.ptr))
}

func (d *Device) Speed() usbhost.Speed {
	switch C.libusb_get_device_speed(d.ptr) {
	case C.LIBUSB_SPEED_LOW:
		return usbhost.SpeedLow
	case C.LIBUSB_SPEED_FULL:
		return usbhost.SpeedFull
	case C.LIBUSB_SPEED_HIGH:
		return usbhost.SpeedHigh
	case C.LIBUSB_SPEED_SUPER:
		return usbhost.SpeedSuper
	case C.LIBUSB_SPEED_SUPER_PLUS:
		return usbhost.SpeedSuperPlus
	default:
		return usbhost.SpeedUnknown
	}
}

// Descriptor copies the device descriptor's fields into usbhost's
// immutable model, per §3/§4.B.
func (d *Device) Descriptor() (usbhost.DeviceDescriptor, error) {
	var cd C.struct_libusb_device_descriptor
	rc := C.libusb_get_device_descriptor(d.ptr, &cd)
	if rc < 0 {
		return usbhost.DeviceDescriptor{}, newLibusbErr("libusb_get_device_descriptor", rc)
	}
	return usbhost.DeviceDescriptor{
		VendorID:          uint16(cd.idVendor),
		ProductID:         uint16(cd.idProduct),
		Class:             uint8(cd.bDeviceClass),
		SubClass:          uint8(cd.bDeviceSubClass),
		Protocol:          uint8(cd.bDeviceProtocol),
		MaxPacketSize0:    uint8(cd.bMaxPacketSize0),
		USBVersion:        uint16(cd.bcdUSB),
		DeviceVersion:     uint16(cd.bcdDevice),
		ManufacturerIndex: uint8(cd.iManufacturer),
		ProductIndex:      uint8(cd.iProduct),
		SerialIndex:       uint8(cd.iSerialNumber),
		NumConfigurations: uint8(cd.bNumConfigurations),
	}, nil
}

// ActiveConfigValue returns the bConfigurationValue currently selected on
// the device, read from libusb's active configuration descriptor.
func (d *Device) ActiveConfigValue() (uint8, error) {
	var cfg *C.struct_libusb_config_descriptor
	rc := C.libusb_get_active_config_descriptor(d.ptr, &cfg)
	if rc < 0 {
		return 0, newLibusbErr("libusb_get_active_config_descriptor", rc)
	}
	defer C.libusb_free_config_descriptor(cfg)
	return uint8(cfg.bConfigurationValue), nil
}

// ConfigDescriptors walks every configuration/interface/alt-setting/
// endpoint, building the immutable descriptor tree of §3, mirroring the
// structure of libusbBuildUsbDeviceDesc (usbio_libusb.go) without its
// single-class filter.
func (d *Device) ConfigDescriptors() ([]*usbhost.ConfigDescriptor, error) {
	var devDesc C.struct_libusb_device_descriptor
	if rc := C.libusb_get_device_descriptor(d.ptr, &devDesc); rc < 0 {
		return nil, newLibusbErr("libusb_get_device_descriptor", rc)
	}
	speed := d.Speed()

	out := make([]*usbhost.ConfigDescriptor, 0, int(devDesc.bNumConfigurations))
	for i := 0; i < int(devDesc.bNumConfigurations); i++ {
		var cfg *C.struct_libusb_config_descriptor
		rc := C.libusb_get_config_descriptor(d.ptr, C.uint8_t(i), &cfg)
		if rc < 0 {
			continue
		}
		out = append(out, d.buildConfig(cfg, speed))
		C.libusb_free_config_descriptor(cfg)
	}
	return out, nil
}

func (d *Device) buildConfig(cfg *C.struct_libusb_config_descriptor, speed usbhost.Speed) *usbhost.ConfigDescriptor {
	name := d.stringIfDevice(cfg.iConfiguration)
	extra := C.GoBytes(unsafe.Pointer(cfg.extra), cfg.extra_length)
	out := usbhost.NewConfigDescriptor(uint8(cfg.bConfigurationValue), uint8(cfg.MaxPower), speed, name, extra)

	ifaces := unsafe.Slice(cfg._interface, int(cfg.bNumInterfaces))
	for _, iface := range ifaces {
		alts := unsafe.Slice(iface.altsetting, int(iface.num_altsetting))
		for _, alt := range alts {
			ifNum := uint8(alt.bInterfaceNumber)
			out.AltSettings[ifNum] = append(out.AltSettings[ifNum], d.buildAltSetting(alt))
		}
	}
	return out
}

func (d *Device) buildAltSetting(alt C.struct_libusb_interface_descriptor) usbhost.InterfaceAltSetting {
	extra := C.GoBytes(unsafe.Pointer(alt.extra), alt.extra_length)
	endpoints := unsafe.Slice(alt.endpoint, int(alt.bNumEndpoints))
	eps := make([]usbhost.EndpointDescriptor, 0, len(endpoints))
	for _, ep := range endpoints {
		eps = append(eps, buildEndpoint(ep))
	}
	return usbhost.InterfaceAltSetting{
		InterfaceNumber: uint8(alt.bInterfaceNumber),
		AltSetting:      uint8(alt.bAlternateSetting),
		Class:           uint8(alt.bInterfaceClass),
		SubClass:        uint8(alt.bInterfaceSubClass),
		Protocol:        uint8(alt.bInterfaceProtocol),
		Endpoints:       eps,
		Extra:           extra,
	}
}

func buildEndpoint(ep C.struct_libusb_endpoint_descriptor) usbhost.EndpointDescriptor {
	addr := uint8(ep.bEndpointAddress)
	attrs := uint8(ep.bmAttributes)
	return usbhost.EndpointDescriptor{
		Number:        addr & 0x0f,
		Direction:     directionOf(addr),
		TransferType:  usbhost.TransferType(attrs & 0x03),
		SyncType:      usbhost.IsoSyncType((attrs >> 2) & 0x03),
		UsageType:     usbhost.IsoUsageType((attrs >> 4) & 0x03),
		MaxPacketSize: uint16(ep.wMaxPacketSize),
		Interval:      uint8(ep.bInterval),
		Refresh:       uint8(ep.bRefresh),
		SynchAddress:  uint8(ep.bSynchAddress),
		Extra:         C.GoBytes(unsafe.Pointer(ep.extra), ep.extra_length),
	}
}

func directionOf(addr uint8) usbhost.Direction {
	if addr&0x80 != 0 {
		return usbhost.DirectionIn
	}
	return usbhost.DirectionOut
}

// stringIfDevice resolves a string index via a fresh short-lived handle.
// Device-level string resolution (before any DeviceHandle is opened) is
// intentionally best-effort per §4.B: an unresolved name is left empty,
// never an error.
func (d *Device) stringIfDevice(index C.uint8_t) string {
	if index == 0 {
		return ""
	}
	var h *C.libusb_device_handle
	if rc := C.libusb_open(d.ptr, &h); rc < 0 {
		return ""
	}
	defer C.libusb_close(h)

	buf := make([]byte, 256)
	rc := C.libusb_get_string_descriptor_ascii(h, index,
		(*C.uchar)(unsafe.Pointer(&buf[0])), C.int(len(buf)))
	if rc <= 0 {
		return ""
	}
	return string(buf[:rc])
}

// Open opens a device handle, per §4.E ("open is the only transition that
// creates/returns a DeviceHandle").
func (d *Device) Open() (usbhost.PlatformHandle, error) {
	var h *C.libusb_device_handle
	rc := C.libusb_open(d.ptr, &h)
	if rc < 0 {
		return nil, newLibusbErr("libusb_open", rc)
	}
	return &Handle{ptr: h, dev: d.ptr}, nil
}
