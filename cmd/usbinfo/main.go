// Command usbinfo is a thin demo CLI enumerating attached USB devices and
// printing their descriptors. It is explicitly outside the core's scope
// (§1: "the thin user-facing surface that merely forwards calls to the
// core... demo programs"); it exists only to wire the cgo driver into the
// library and exercise it end-to-end.
package main

import (
	"context"
	"fmt"
	"os"

	usbhost "github.com/alexpevzner/usbhost"
	"github.com/alexpevzner/usbhost/internal/driver"
)

func init() {
	usbhost.RegisterDriver(func() (usbhost.PlatformDriver, error) {
		return driver.NewContext()
	})
}

func main() {
	if err := run(); err != nil {
		usbhost.Log.Begin().Error("usbinfo: %s", err).Flush()
		os.Exit(1)
	}
}

func run() error {
	mgr, err := usbhost.GetManager()
	if err != nil {
		return err
	}
	defer mgr.Shutdown(context.Background())

	devices, err := mgr.ListDevices()
	if err != nil {
		return err
	}

	for _, d := range devices {
		desc, err := d.Descriptor()
		if err != nil {
			continue
		}
		fmt.Printf("%04x:%04x speed=%s configs=%d\n",
			desc.VendorID, desc.ProductID, d.Speed(), desc.NumConfigurations)

		cfgs, err := d.ConfigList()
		if err != nil {
			continue
		}
		for _, cfg := range cfgs {
			fmt.Printf("  config %d: maxpower=%dmA\n", cfg.ConfigurationValue, cfg.MaxPower())
			for _, n := range cfg.Interfaces() {
				for _, alt := range cfg.AltSettings[n] {
					fmt.Printf("    interface %d alt %d: class=%02x endpoints=%d\n",
						alt.InterfaceNumber, alt.AltSetting, alt.Class, len(alt.Endpoints))
				}
			}
		}
	}
	return nil
}
