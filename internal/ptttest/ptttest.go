// Package ptttest provides a loopback virtual TNC pair over a
// pseudo-terminal, for exercising internal/tnc's serial backend and
// internal/ptt keying without real hardware.
//
// Grounded on src/kiss.go's kisspt_open_pt (github.com/creack/pty:
// pty.Open returns a connected master/slave pair; the slave's device
// node, pts.Name(), is what a serial backend would normally be pointed
// at). Tests open the pair once and hand the master end to whichever
// side plays "the other station."
package ptttest

import (
	"fmt"
	"os"

	"github.com/creack/pty"
)

// Pair is a connected pseudo-terminal: Slave is the device node a
// serial KISS backend would dial, Master is the file descriptor a
// test drives directly to inject/observe bytes as if it were the
// physical TNC on the other end of the cable.
type Pair struct {
	Master *os.File
	Slave  *os.File
}

// Open creates a new master/slave pseudo-terminal pair, mirroring
// kisspt_open_pt's pty.Open call.
func Open() (*Pair, error) {
	master, slave, err := pty.Open()
	if err != nil {
		return nil, fmt.Errorf("ptttest: open pty: %w", err)
	}
	return &Pair{Master: master, Slave: slave}, nil
}

// Close closes both ends. Safe to call once.
func (p *Pair) Close() error {
	err1 := p.Master.Close()
	err2 := p.Slave.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// SlaveName is the device node to hand to a serial KISS backend
// configuration (e.g. config.Config.SerialPort), matching how
// kisspt_open_pt logs pt_slave.Name() as the virtual TNC's address.
func (p *Pair) SlaveName() string {
	return p.Slave.Name()
}
