package ptt

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// GPIOBackend asserts PTT by driving a GPIO line request, the
// Raspberry-Pi-style signaling src/ptt.go's header comment describes
// ("Version 0.9: Add ability to use GPIO pins on Linux") but which the
// teacher's copied Go sources never implement — github.com/warthog618/go-gpiocdev
// sits unused in the teacher's go.mod until wired here.
type GPIOBackend struct {
	line   *gpiocdev.Line
	invert bool
}

// NewGPIOBackend requests offset as an output line on the named
// gpiochip (e.g. "gpiochip0"), initially de-asserted.
func NewGPIOBackend(chip string, offset int, invert bool) (*GPIOBackend, error) {
	initial := 0
	if invert {
		initial = 1
	}
	line, err := gpiocdev.RequestLine(chip, offset,
		gpiocdev.AsOutput(initial),
		gpiocdev.WithConsumer("hamstr-link-ptt"),
	)
	if err != nil {
		return nil, fmt.Errorf("ptt: request gpio line %s:%d: %w", chip, offset, err)
	}
	return &GPIOBackend{line: line, invert: invert}, nil
}

func (g *GPIOBackend) Assert(on bool) error {
	value := 0
	if on != g.invert {
		value = 1
	}
	if err := g.line.SetValue(value); err != nil {
		return fmt.Errorf("ptt: set gpio value: %w", err)
	}
	return nil
}

func (g *GPIOBackend) Close() error {
	return g.line.Close()
}

var _ Backend = (*GPIOBackend)(nil)
