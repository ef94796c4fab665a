package segment_test

import (
	"container/list"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hamstr-radio/hamstr-link/internal/eventlog"
	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
	"github.com/hamstr-radio/hamstr-link/internal/packet"
	"github.com/hamstr-radio/hamstr-link/internal/segment"
)

// pipe is an in-memory, optionally-lossy segment.Transport used to
// drive the sender and receiver against each other without any real
// TNC. Each side reads from its own inbox and writes to the peer's.
type pipe struct {
	mu     sync.Mutex
	inbox  *list.List
	cond   *sync.Cond
	drop   func(p packet.Packet) bool
	closed bool
}

func newPipe(drop func(packet.Packet) bool) *pipe {
	p := &pipe{inbox: list.New(), drop: drop}
	p.cond = sync.NewCond(&p.mu)
	return p
}

func (p *pipe) deliver(pkt packet.Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.drop != nil && p.drop(pkt) {
		return
	}
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
		waitCh := make(chan struct{})
		go func() {
			time.Sleep(remaining)
			p.mu.Lock()
			p.cond.Signal()
			p.mu.Unlock()
			close(waitCh)
		}()
		p.cond.Wait()
		select {
		case <-waitCh:
		default:
		}
		if time.Now().After(deadline) && p.inbox.Len() == 0 {
			return packet.Packet{}, linkerr.ErrTimeout
		}
	}
	front := p.inbox.Front()
	p.inbox.Remove(front)
	return front.Value.(packet.Packet), nil
}

// link is a pair of pipes forming a full-duplex channel: sendSide's
// writes land in recvSide's inbox and vice versa.
type link struct {
	toReceiver *pipe
	toSender   *pipe
}

func newLink(dropToReceiver func(packet.Packet) bool) *link {
	return &link{
		toReceiver: newPipe(dropToReceiver),
		toSender:   newPipe(nil),
	}
}

type senderSide struct{ l *link }

func (s senderSide) SendPacket(p packet.Packet) error {
	s.l.toReceiver.deliver(p)
	return nil
}

func (s senderSide) ReceivePacket(timeout time.Duration) (packet.Packet, error) {
	return s.l.toSender.take(timeout)
}

type receiverSide struct{ l *link }

func (r receiverSide) SendPacket(p packet.Packet) error {
	r.l.toSender.deliver(p)
	return nil
}

func (r receiverSide) ReceivePacket(timeout time.Duration) (packet.Packet, error) {
	return r.l.toReceiver.take(timeout)
}

func testConfig() segment.Config {
	return segment.Config{
		AckTimeout:            50 * time.Millisecond,
		SendRetries:           3,
		MissingCycles:         5,
		MissingPacketsTimeout: 50 * time.Millisecond,
		MissingReissueLimit:   5,
		NoPacketTimeout:       2 * time.Second,
		BaudRate:              1200,
	}
}

func runExchange(t *testing.T, bodies [][]byte, dropToReceiver func(packet.Packet) bool) ([]byte, error) {
	t.Helper()
	got, _, recvErr, sendErr := runExchangeFull(t, bodies, dropToReceiver, testConfig(), testConfig())
	if sendErr != nil {
		return nil, sendErr
	}
	return got, recvErr
}

func runExchangeFull(t *testing.T, bodies [][]byte, dropToReceiver func(packet.Packet) bool, sendCfg, recvCfg segment.Config) (got []byte, recvDone bool, recvErr, sendErr error) {
	t.Helper()
	l := newLink(dropToReceiver)
	sendLog := eventlog.NewBus()
	recvLog := eventlog.NewBus()

	done := make(chan struct{})
	go func() {
		got, recvErr = segment.Receive(receiverSide{l}, recvLog, "sess0001", packet.TypeNote, recvCfg)
		close(done)
	}()

	sendErr = segment.Send(senderSide{l}, sendLog, "sess0001", packet.TypeNote, bodies, sendCfg)
	<-done
	return got, true, recvErr, sendErr
}

func concat(bodies [][]byte) []byte {
	var out []byte
	for _, b := range bodies {
		out = append(out, b...)
	}
	return out
}

func TestSendReceiveRoundTrip(t *testing.T) {
	bodies := [][]byte{[]byte("hello "), []byte("world "), []byte("over packet radio")}
	got, err := runExchange(t, bodies, nil)
	require.NoError(t, err)
	require.Equal(t, concat(bodies), got)
}

// TestReassemblyOrderIndependent covers spec §8 invariant: a receiver
// that gets data packets in an arbitrary order still reassembles the
// original byte sequence, because placement is keyed by seq, not
// arrival order.
func TestReassemblyOrderIndependent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		bodies := make([][]byte, n)
		in := make([]packet.Packet, n)
		for i := range bodies {
			bodies[i] = rapid.SliceOfN(rapid.Byte(), 1, 6).Draw(rt, "body")
			in[i] = packet.Packet{SessionID: "sess0001", Type: packet.TypeNote, Seq: uint16(i + 1), Total: uint16(n), Body: bodies[i]}
		}
		in = rapid.Permutation(in).Draw(rt, "order")
		in = append(in, packet.Packet{SessionID: "sess0001", Type: packet.TypeDone, Seq: 1, Total: 1})

		tr := &scriptedTransport{in: in}
		got, err := segment.Receive(tr, eventlog.NewBus(), "sess0001", packet.TypeNote, testConfig())
		require.NoError(t, err)
		require.Equal(t, concat(bodies), got)
	})
}

// scriptedTransport replays a fixed inbound packet sequence and
// records every packet sent back, for tests that need to hand-craft
// exactly what the receiver sees (e.g. an injected duplicate) without
// a live sender on the other end.
type scriptedTransport struct {
	mu   sync.Mutex
	in   []packet.Packet
	pos  int
	Sent []packet.Packet
}

func (s *scriptedTransport) SendPacket(p packet.Packet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Sent = append(s.Sent, p)
	return nil
}

func (s *scriptedTransport) ReceivePacket(timeout time.Duration) (packet.Packet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.in) {
		return packet.Packet{}, linkerr.ErrTimeout
	}
	p := s.in[s.pos]
	s.pos++
	return p, nil
}

// TestDuplicateDataTolerated covers spec §8 invariant: a receiver that
// sees the same sequence number twice (e.g. a sender retry racing a
// slow ACK) stores it once, keeps acking the duplicate, and still
// reassembles the correct payload.
func TestDuplicateDataTolerated(t *testing.T) {
	p1 := packet.Packet{SessionID: "sess0001", Type: packet.TypeNote, Seq: 1, Total: 2, Body: []byte("alpha")}
	p2 := packet.Packet{SessionID: "sess0001", Type: packet.TypeNote, Seq: 2, Total: 2, Body: []byte("bravo")}
	done := packet.Packet{SessionID: "sess0001", Type: packet.TypeDone, Seq: 1, Total: 1}

	tr := &scriptedTransport{in: []packet.Packet{p1, p1, p2, done}}
	got, err := segment.Receive(tr, eventlog.NewBus(), "sess0001", packet.TypeNote, testConfig())
	require.NoError(t, err)
	require.Equal(t, []byte("alphabravo"), got)

	ackCount := 0
	for _, p := range tr.Sent {
		if p.Type == packet.TypeAck {
			ackCount++
		}
	}
	require.Equal(t, 3, ackCount, "every data packet, including the duplicate, is acked")
}

// TestMissingPacketRecovered covers a lost first transmission: the
// first copy of data packet seq=1 never reaches the receiver, the
// sender's ACK timeout retransmits it, and the message still completes
// correctly.
func TestMissingPacketRecovered(t *testing.T) {
	var mu sync.Mutex
	droppedOnce := false
	drop := func(p packet.Packet) bool {
		mu.Lock()
		defer mu.Unlock()
		if p.Type == packet.TypeNote && p.Seq == 1 && !droppedOnce {
			droppedOnce = true
			return true
		}
		return false
	}

	bodies := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	got, err := runExchange(t, bodies, drop)
	require.NoError(t, err)
	require.Equal(t, concat(bodies), got)
}

// TestSendIncompleteAfterBudget covers spec §8: a sequence that never
// reaches the receiver (every copy dropped in flight) exhausts the
// sender's MISSING_CYCLES budget and is reported as incomplete rather
// than retried forever.
func TestSendIncompleteAfterBudget(t *testing.T) {
	dropAlways := func(p packet.Packet) bool {
		return p.Type == packet.TypeNote && p.Seq == 2
	}

	bodies := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	_, err := runExchange(t, bodies, dropAlways)
	require.Error(t, err)

	incomplete, ok := err.(*linkerr.IncompleteTransmissionError)
	require.True(t, ok, "expected *linkerr.IncompleteTransmissionError, got %T: %v", err, err)
	require.Equal(t, []int{2}, incomplete.Missing)
}

// TestReceiveIncompleteAfterBudget covers spec §8: when the receiver's
// own PKT_MISSING reissue budget is tighter than the sender's
// MISSING_CYCLES budget, the receiver gives up and reports which
// sequence it never got, independently of how long the sender keeps
// trying.
func TestReceiveIncompleteAfterBudget(t *testing.T) {
	dropAlways := func(p packet.Packet) bool {
		return p.Type == packet.TypeNote && p.Seq == 2
	}

	sendCfg := testConfig()
	sendCfg.MissingCycles = 8
	recvCfg := testConfig()
	recvCfg.MissingReissueLimit = 1

	bodies := [][]byte{[]byte("one"), []byte("two"), []byte("three")}
	_, _, recvErr, _ := runExchangeFull(t, bodies, dropAlways, sendCfg, recvCfg)
	require.Error(t, recvErr)

	incomplete, ok := recvErr.(*linkerr.ReceiveIncompleteError)
	require.True(t, ok, "expected *linkerr.ReceiveIncompleteError, got %T: %v", recvErr, recvErr)
	require.Equal(t, []int{2}, incomplete.Missing)
}
