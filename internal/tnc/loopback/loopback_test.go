package loopback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPair_SendReceive(t *testing.T) {
	a, b := Pair()
	require.NoError(t, a.Connect(context.Background()))
	require.NoError(t, b.Connect(context.Background()))

	require.NoError(t, a.SendFrame([]byte("hello")))
	got, err := b.ReceiveFrame(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), got)
}

func TestPair_ReceiveTimesOut(t *testing.T) {
	a, b := Pair()
	_ = a
	_, err := b.ReceiveFrame(10 * time.Millisecond)
	assert.Error(t, err)
}

func TestDropNext(t *testing.T) {
	a, b := Pair()
	a.DropNext()
	require.NoError(t, a.SendFrame([]byte("lost")))
	require.NoError(t, a.SendFrame([]byte("kept")))

	got, err := b.ReceiveFrame(time.Second)
	require.NoError(t, err)
	assert.Equal(t, []byte("kept"), got)
}

func TestSetPTT(t *testing.T) {
	a, _ := Pair()
	assert.False(t, a.PTTOn())
	require.NoError(t, a.SetPTT(true))
	assert.True(t, a.PTTOn())
}
