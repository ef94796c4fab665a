package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestMarshalUnmarshal_RoundTrip(t *testing.T) {
	p := Packet{SessionID: "deadbeef", Type: TypeResponse, Seq: 2, Total: 3, Body: []byte("hello world")}
	raw, err := Marshal(p)
	require.NoError(t, err)

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, p.SessionID, got.SessionID)
	assert.Equal(t, p.Type, got.Type)
	assert.Equal(t, p.Seq, got.Seq)
	assert.Equal(t, p.Total, got.Total)
	assert.Equal(t, p.Body, got.Body)
}

func TestUnmarshal_BadCRCIsSilentlyDetectable(t *testing.T) {
	p := Packet{SessionID: "deadbeef", Type: TypeNote, Seq: 1, Total: 1, Body: []byte("x")}
	raw, err := Marshal(p)
	require.NoError(t, err)

	raw[len(raw)-1] ^= 0xFF

	_, err = Unmarshal(raw)
	require.Error(t, err)
	assert.True(t, IsBadCRC(err))
}

func TestControlBodies(t *testing.T) {
	assert.Equal(t, []byte("ACK|42"), AckBody(42))
	seq, err := ParseAckBody([]byte("ACK|42"))
	require.NoError(t, err)
	assert.Equal(t, uint16(42), seq)

	assert.Equal(t, []byte("PKT_MISSING|1,3,4"), PktMissingBody([]int{4, 1, 3}))
	missing, err := ParsePktMissingBody([]byte("PKT_MISSING|1,3,4"))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 4}, missing)
}

func TestRoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		sid := randHexSessionID(t)
		seq := rapid.Uint16().Draw(t, "seq")
		total := rapid.Uint16().Draw(t, "total")
		body := rapid.SliceOf(rapid.Byte()).Draw(t, "body")

		p := Packet{SessionID: sid, Type: TypeNote, Seq: seq, Total: total, Body: body}
		raw, err := Marshal(p)
		require.NoError(t, err)

		got, err := Unmarshal(raw)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	})
}

func randHexSessionID(t *rapid.T) string {
	const hexDigits = "0123456789abcdef"
	b := make([]byte, SessionIDLen)
	for i := range b {
		b[i] = hexDigits[rapid.IntRange(0, 15).Draw(t, "hexDigit")]
	}
	return string(b)
}

func TestSingleBitFlipInBodyFailsCRC(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		body := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "body")
		p := Packet{SessionID: "deadbeef", Type: TypeNote, Seq: 1, Total: 1, Body: body}
		raw, err := Marshal(p)
		require.NoError(t, err)

		byteIdx := rapid.IntRange(headerLen, len(raw)-crcLen-1).Draw(t, "byteIdx")
		bitIdx := rapid.IntRange(0, 7).Draw(t, "bitIdx")
		raw[byteIdx] ^= 1 << bitIdx

		_, err = Unmarshal(raw)
		require.Error(t, err)
		assert.True(t, IsBadCRC(err))
	})
}
