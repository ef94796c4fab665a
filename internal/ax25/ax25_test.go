package ax25

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
)

func TestParseCallsign(t *testing.T) {
	c, err := ParseCallsign("call1-7")
	require.NoError(t, err)
	assert.Equal(t, Callsign{Call: "CALL1", SSID: 7}, c)
	assert.Equal(t, "CALL1-7", c.String())

	c2, err := ParseCallsign("NOSSID")
	require.NoError(t, err)
	assert.Equal(t, "NOSSID", c2.String())

	_, err = ParseCallsign("TOOLONGCALL")
	assert.Error(t, err)

	_, err = ParseCallsign("CALL-16")
	assert.Error(t, err)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	dest, _ := ParseCallsign("CALL2-2")
	src, _ := ParseCallsign("CALL1-1")

	raw, err := Encode(Frame{Dest: dest, Src: src, Payload: []byte("hello")})
	require.NoError(t, err)

	got, err := Decode(raw)
	require.NoError(t, err)
	assert.Equal(t, dest, got.Dest)
	assert.Equal(t, src, got.Src)
	assert.Equal(t, []byte("hello"), got.Payload)
}

func TestDecode_BadFCS(t *testing.T) {
	dest, _ := ParseCallsign("CALL2-2")
	src, _ := ParseCallsign("CALL1-1")
	raw, _ := Encode(Frame{Dest: dest, Src: src, Payload: []byte("hello")})

	raw[len(raw)-1] ^= 0xFF // corrupt the FCS trailer

	_, err := Decode(raw)
	assert.True(t, errors.Is(err, linkerr.ErrBadFCS))
}

func TestDecode_Truncated(t *testing.T) {
	_, err := Decode([]byte{1, 2, 3})
	assert.True(t, errors.Is(err, linkerr.ErrTruncated))
}

func TestFrame_SingleBitFlipFailsFCS(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), 1, 64).Draw(t, "payload")
		dest, _ := ParseCallsign("CALL2-2")
		src, _ := ParseCallsign("CALL1-1")

		raw, err := Encode(Frame{Dest: dest, Src: src, Payload: payload})
		require.NoError(t, err)

		byteIdx := rapid.IntRange(0, len(raw)-1).Draw(t, "byteIdx")
		bitIdx := rapid.IntRange(0, 7).Draw(t, "bitIdx")
		raw[byteIdx] ^= 1 << bitIdx

		_, err = Decode(raw)
		assert.Error(t, err) // either bad FCS or, if it hit the trailer's own bit, still fails verification
	})
}
