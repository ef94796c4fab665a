package ptt

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// CM108Backend asserts PTT over a CM108/CM119-compatible USB audio
// fob's GPIO pin via a raw HID write, grounded directly on
// src/cm108.go's cm108_write (open /dev/hidrawN, unix.IoctlHIDGetRawInfo
// for device identification, then a 5-byte report write where byte 2
// is the output data and byte 3 is the output mask — "Hamlib writes 5
// bytes which I don't understand... writing 5 bytes works").
type CM108Backend struct {
	device string
	gpio   uint // GPIO pin number, 1-8; homebrew wiring conventionally uses pin 3
}

// NewCM108Backend drives PTT through gpio on the hidraw device (e.g.
// "/dev/hidraw1").
func NewCM108Backend(device string, gpio uint) *CM108Backend {
	return &CM108Backend{device: device, gpio: gpio}
}

func (c *CM108Backend) Assert(on bool) error {
	fd, err := os.OpenFile(c.device, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("ptt: open %s: %w", c.device, err)
	}
	defer fd.Close()

	// Identify the device so we never key an unrelated HID (keyboard,
	// mouse) that happens to share the naming scheme.
	if _, err := unix.IoctlHIDGetRawInfo(int(fd.Fd())); err != nil {
		return fmt.Errorf("ptt: HIDIOCGRAWINFO %s: %w", c.device, err)
	}

	mask := byte(1) << (c.gpio - 1)
	var data byte
	if on {
		data = mask
	}

	report := []byte{0, 0, data, mask, 0}
	n, err := fd.Write(report)
	if err != nil {
		return fmt.Errorf("ptt: write %s: %w", c.device, err)
	}
	if n != len(report) {
		return fmt.Errorf("ptt: short write to %s: %d/%d bytes", c.device, n, len(report))
	}
	return nil
}

var _ Backend = (*CM108Backend)(nil)
