package session_test

import (
	"container/list"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hamstr-radio/hamstr-link/internal/ax25"
	"github.com/hamstr-radio/hamstr-link/internal/config"
	"github.com/hamstr-radio/hamstr-link/internal/eventlog"
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
	"github.com/hamstr-radio/hamstr-link/internal/packet"
	"github.com/hamstr-radio/hamstr-link/internal/session"
)

// pipe and link mirror internal/segment's in-memory test transport: a
// full-duplex channel between an initiator and a responder side with
// no real TNC underneath.
type pipe struct {
	mu    sync.Mutex
	inbox *list.List
	cond  *sync.Cond
}

func newPipe() *pipe {
	p := &pipe{inbox: list.New()}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pipe) deliver(pkt packet.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inbox.PushBack(pkt)
	p.cond.Signal()
}

func (p *pipe) take(timeout time.Duration) (packet.Packet, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	deadline := time.Now().Add(timeout)
	for p.inbox.Len() == 0 {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return packet.Packet{}, linkerr.ErrTimeout
		}
		done := make(chan struct{})
		go func() {
			time.Sleep(remaining)
			p.mu.Lock()
			p.cond.Signal()
			p.mu.Unlock()
			close(done)
		}()
		p.cond.Wait()
		if time.Now().After(deadline) && p.inbox.Len() == 0 {
			return packet.Packet{}, linkerr.ErrTimeout
		}
	}
	front := p.inbox.Front()
	p.inbox.Remove(front)
	return front.Value.(packet.Packet), nil
}

type side struct {
	send *pipe
	recv *pipe
}

func (s side) SendPacket(p packet.Packet) error { s.send.deliver(p); return nil }
func (s side) ReceivePacket(timeout time.Duration) (packet.Packet, error) {
	return s.recv.take(timeout)
}

func newSides() (initiator, responder side) {
	a, b := newPipe(), newPipe()
	return side{send: a, recv: b}, side{send: b, recv: a}
}

func testCfg() config.Config {
	c := config.Default()
	c.LocalCallsign = "CALL1-1"
	c.RemoteCallsign = "CALL2-2"
	c.AckTimeout = 30 * time.Millisecond
	c.ConnectAckTimeout = 100 * time.Millisecond
	c.ReadyTimeout = 100 * time.Millisecond
	c.DisconnectTimeout = 100 * time.Millisecond
	c.MissingPacketsTimeout = 30 * time.Millisecond
	c.ConnectionTimeout = time.Second
	c.ConnectionAttemptTimeout = time.Second
	c.SendRetries = 3
	c.DisconnectRetry = 3
	c.MissingCycles = 3
	c.MissingReissues = 3
	return c
}

// TestMinimalRequestRoundTrip covers spec §8 scenario S1: connect,
// request, single-packet response, disconnect.
func TestMinimalRequestRoundTrip(t *testing.T) {
	initSide, respSide := newSides()
	cfg := testCfg()
	local, _ := ax25.ParseCallsign(cfg.LocalCallsign)
	remote, _ := ax25.ParseCallsign(cfg.RemoteCallsign)

	initLog := eventlog.NewBus()
	respLog := eventlog.NewBus()

	respDone := make(chan error, 1)
	go func() {
		resp, err := session.Accept(respSide, remote, local, cfg, respLog)
		if err != nil {
			respDone <- err
			return
		}
		respDone <- resp.Serve(func(kind byte, params []byte) ([]byte, error) {
			return []byte("hello from responder"), nil
		})
	}()

	init := session.NewInitiator(initSide, local, remote, cfg, initLog)
	require.NoError(t, init.Connect(context.Background()))

	payload, err := init.RequestPayload(1, nil)
	require.NoError(t, err)
	require.Equal(t, "hello from responder", string(payload))
	require.Equal(t, session.PhaseDelivered, init.Phase())

	require.NoError(t, init.Close())
	require.NoError(t, init.Close()) // idempotent, spec §8 invariant 6

	require.NoError(t, <-respDone)
}
