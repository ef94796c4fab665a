package kiss

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/hamstr-radio/hamstr-link/internal/linkerr"
)

func TestDecode_SplitAcrossFeeds(t *testing.T) {
	frame := Encode(0, []byte{0x01, 0x02, 0x03})

	d := NewDecoder()
	var got [][]byte
	for i := range frame {
		out, err := d.Feed(frame[i : i+1])
		require.NoError(t, err)
		got = append(got, out...)
	}

	require.Len(t, got, 1)
	assert.Equal(t, byte(0x00), got[0][0]) // channel 0, KISS_CMD_DATA_FRAME
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, got[0][1:])
}

func TestDecode_DropsEmptySegments(t *testing.T) {
	d := NewDecoder()
	// Back-to-back FENDs with nothing between them, like a keep-alive
	// idle line, must not surface as frames.
	out, err := d.Feed([]byte{FEND, FEND, FEND})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestDecode_InvalidEscape(t *testing.T) {
	d := NewDecoder()
	_, err := d.Feed([]byte{FEND, FESC, 0x42, FEND})
	require.Error(t, err)
	var escErr *linkerr.InvalidEscapeError
	require.True(t, errors.As(err, &escErr))
	assert.Equal(t, byte(0x42), escErr.Got)
}

func TestEncode_EscapesSpecialBytes(t *testing.T) {
	out := Encode(0, []byte{FEND, FESC, 0x10})
	assert.Equal(t, FEND, int(out[0]))
	assert.Equal(t, FEND, int(out[len(out)-1]))
	assert.Equal(t, []byte{FEND, CmdDataFrame, FESC, TFEND, FESC, TFESC, 0x10, FEND}, out)
}

func TestRoundTrip_Property(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOf(rapid.Byte()).Draw(t, "payload")
		channel := rapid.UintRange(0, 15).Draw(t, "channel")

		encoded := Encode(byte(channel), payload)

		d := NewDecoder()
		frames, err := d.Feed(encoded)
		require.NoError(t, err)
		require.Len(t, frames, 1)

		gotChannel := frames[0][0] >> 4
		assert.Equal(t, byte(channel), gotChannel)
		assert.Equal(t, payload, frames[0][1:])
	})
}

func TestRoundTrip_MultipleFramesOneFeed(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 8).Draw(t, "n")
		var all []byte
		var payloads [][]byte
		for i := 0; i < n; i++ {
			p := rapid.SliceOfN(rapid.Byte(), 0, 32).Draw(t, "p")
			payloads = append(payloads, p)
			all = append(all, Encode(0, p)...)
		}

		d := NewDecoder()
		frames, err := d.Feed(all)
		require.NoError(t, err)
		require.Len(t, frames, n)
		for i, p := range payloads {
			assert.Equal(t, p, frames[i][1:])
		}
	})
}
