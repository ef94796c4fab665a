// Package serialdiscovery enumerates candidate serial TNC ports via
// udev, so the KISS-over-serial backend (spec §4.4b) can offer a
// picklist instead of requiring the operator to already know
// /dev/ttyUSBn.
//
// Grounded on src/cm108.go's libudev enumerate/match-subsystem/scan
// sequence (udev_enumerate_new → udev_enumerate_add_match_subsystem
// ("sound") → udev_enumerate_scan_devices → walk the resulting list
// calling udev_device_get_devnode), ported from cgo libudev calls to
// github.com/jochenvg/go-udev's pure-Go binding, matched subsystem
// against "tty" instead of "sound" since this discovers serial TNCs
// rather than CM108 audio fobs.
package serialdiscovery

import (
	"fmt"

	"github.com/jochenvg/go-udev"
)

// Port describes one discovered serial device.
type Port struct {
	DevNode string // e.g. /dev/ttyUSB0
	Vendor  string // USB vendor id, if available
	Product string // USB product id, if available
}

// List enumerates tty subsystem devices, mirroring src/cm108.go's
// enumerate/add-match/scan/walk sequence against the "tty" subsystem.
func List() ([]Port, error) {
	u := udev.Udev{}
	e := u.NewEnumerate()
	if err := e.AddMatchSubsystem("tty"); err != nil {
		return nil, fmt.Errorf("serialdiscovery: match tty: %w", err)
	}

	devices, err := e.Devices()
	if err != nil {
		return nil, fmt.Errorf("serialdiscovery: enumerate: %w", err)
	}

	var out []Port
	for _, d := range devices {
		node := d.Devnode()
		if node == "" {
			continue
		}
		out = append(out, Port{
			DevNode: node,
			Vendor:  d.PropertyValue("ID_VENDOR_ID"),
			Product: d.PropertyValue("ID_MODEL_ID"),
		})
	}
	return out, nil
}
