// Package ptt implements the push-to-talk backends the scheduler
// (spec §4.8) asserts/drops around each transmission. Grounded on the
// teacher's src/ptt.go, which enumerates RTS/DTR serial lines, GPIO,
// HAMLIB rig control, and CM108/CM119 USB-audio-fob HID signaling as
// alternative ways to key a radio — three of its dependency surfaces
// (golang.org/x/sys for raw ioctls, warthog618/go-gpiocdev,
// xylo04/goHamlib) are wired into one Backend interface here instead
// of the single global `ptt_set` dispatch the teacher's C heritage
// used.
package ptt

// Backend is the capability the scheduler drives before/after each
// transmission (spec §4.8): assert PTT, then later drop it. VARA
// sessions never construct one, since §4.7 forbids the adapter from
// asserting PTT directly.
type Backend interface {
	Assert(on bool) error
}

// BackendFunc adapts a plain function to Backend, useful for test
// doubles that record PTT state without touching hardware.
type BackendFunc func(on bool) error

func (f BackendFunc) Assert(on bool) error { return f(on) }
