//go:build !linux

package driver

import usbhost "github.com/alexpevzner/usbhost"

// WrapFD has no libusb backend outside Linux's usbfs; wrap_fd is
// unix-specific per §4.C but this driver only implements it where libusb
// actually supports adopting a raw fd.
func (c *Context) WrapFD(fd uintptr) (usbhost.PlatformDevice, usbhost.PlatformHandle, error) {
	return nil, nil, &usbhost.Error{Op: "wrap_fd", Kind: usbhost.KindNotSupported}
}
