package forward

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFrameRoundTrip(t *testing.T) {
	frame := Frame{
		Tag:  "app.web",
		Time: 1714558200.5,
		Record: map[string]interface{}{
			"message": "user logged in",
			"level":   "info",
		},
	}

	encoded, err := EncodeFrame(frame)
	assert.NoError(t, err)

	buffer := bytes.NewBuffer(encoded)
	frames, invalid, err := DecodeFrames(buffer)
	assert.NoError(t, err)
	assert.Zero(t, invalid)
	assert.Len(t, frames, 1)
	assert.Equal(t, "app.web", frames[0].Tag)
	assert.Equal(t, "user logged in", frames[0].Record["message"])
	assert.Zero(t, buffer.Len())
}

func TestDecodeFrames_PartialFrameStaysBuffered(t *testing.T) {
	encoded, err := EncodeFrame(Frame{Tag: "t", Record: map[string]interface{}{"k": "v"}})
	assert.NoError(t, err)

	buffer := bytes.NewBuffer(encoded[:len(encoded)-3])
	frames, invalid, err := DecodeFrames(buffer)
	assert.NoError(t, err)
	assert.Zero(t, invalid)
	assert.Empty(t, frames)
	assert.Equal(t, len(encoded)-3, buffer.Len())

	buffer.Write(encoded[len(encoded)-3:])
	frames, _, err = DecodeFrames(buffer)
	assert.NoError(t, err)
	assert.Len(t, frames, 1)
}

func TestDecodeFrames_MultipleFramesInOneRead(t *testing.T) {
	buffer := &bytes.Buffer{}
	for i := 0; i < 3; i++ {
		encoded, err := EncodeFrame(Frame{Tag: "batch", Record: map[string]interface{}{"seq": i}})
		assert.NoError(t, err)
		buffer.Write(encoded)
	}

	frames, invalid, err := DecodeFrames(buffer)
	assert.NoError(t, err)
	assert.Zero(t, invalid)
	assert.Len(t, frames, 3)
}

func TestDecodeFrames_SkipsMalformedPayload(t *testing.T) {
	buffer := &bytes.Buffer{}
	garbage := []byte{0xc1, 0xff, 0x00}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(garbage)))
	buffer.Write(prefix[:])
	buffer.Write(garbage)

	good, err := EncodeFrame(Frame{Tag: "ok", Record: map[string]interface{}{"message": "fine"}})
	assert.NoError(t, err)
	buffer.Write(good)

	frames, invalid, err := DecodeFrames(buffer)
	assert.NoError(t, err)
	assert.Equal(t, 1, invalid)
	assert.Len(t, frames, 1)
	assert.Equal(t, "ok", frames[0].Tag)
}

func TestDecodeFrames_OversizedPrefixIsFatal(t *testing.T) {
	buffer := &bytes.Buffer{}
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], MaxFrameSize+1)
	buffer.Write(prefix[:])

	_, _, err := DecodeFrames(buffer)
	assert.Error(t, err)
}

func TestFrame_Event(t *testing.T) {
	frame := Frame{
		Tag:    "app.worker",
		Time:   1714558200,
		Record: map[string]interface{}{"message": "done"},
	}

	event := frame.Event(time.Now().UTC())
	assert.Equal(t, "app.worker", event.Tag)
	assert.Equal(t, time.Unix(1714558200, 0).UTC(), event.ReceivedAt)
	assert.Equal(t, "done", event.Fields["message"])

	fallback := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	event = Frame{Tag: "t"}.Event(fallback)
	assert.Equal(t, fallback, event.ReceivedAt)
}
