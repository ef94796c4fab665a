package tnc

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hamstr-radio/hamstr-link/internal/kiss"
)

func TestKISSTCP_SendReceive(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverConn := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			serverConn <- c
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	backend := NewKISSTCP(addr.IP.String(), addr.Port)
	require.NoError(t, backend.Connect(context.Background()))
	defer backend.Disconnect()

	srv := <-serverConn
	defer srv.Close()

	// Client -> server: backend.SendFrame KISS-encodes; server decodes raw.
	require.NoError(t, backend.SendFrame([]byte{0xAA, 0xBB}))
	buf := make([]byte, 64)
	srv.SetReadDeadline(time.Now().Add(time.Second))
	n, err := srv.Read(buf)
	require.NoError(t, err)

	dec := kiss.NewDecoder()
	frames, err := dec.Feed(buf[:n])
	require.NoError(t, err)
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0xAA, 0xBB}, frames[0][1:])

	// Server -> client: write a raw KISS frame, expect ReceiveFrame to
	// surface the decoded AX.25 payload.
	encoded := kiss.Encode(0, []byte{0x01, 0x02, 0x03})
	_, err = srv.Write(encoded)
	require.NoError(t, err)

	got, err := backend.ReceiveFrame(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, got[1:])
}

func TestKISSTCP_ReceiveTimesOut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		c, _ := ln.Accept()
		if c != nil {
			defer c.Close()
			time.Sleep(200 * time.Millisecond)
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	backend := NewKISSTCP(addr.IP.String(), addr.Port)
	require.NoError(t, backend.Connect(context.Background()))
	defer backend.Disconnect()

	_, err = backend.ReceiveFrame(20 * time.Millisecond)
	assert.Error(t, err)
}
