package forward

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/logsift/logsift/internal/collector/model"
	"github.com/vmihailenco/msgpack/v5"
)

// MaxFrameSize bounds a single forward frame. A peer announcing a larger
// payload is malformed or hostile and gets disconnected.
const MaxFrameSize = 4 * 1024 * 1024

// Frame is one forwarded record: a routing tag, an epoch-seconds timestamp
// and the structured record itself. Frames travel length-prefixed on the
// wire: a 4-byte big-endian payload length followed by the msgpack payload.
type Frame struct {
	Tag    string                 `msgpack:"tag"`
	Time   float64                `msgpack:"time"`
	Record map[string]interface{} `msgpack:"record"`
}

// Event converts a frame into a raw collector event. The record fields are
// handed to the normalizer untouched.
func (f Frame) Event(now time.Time) model.RawEvent {
	receivedAt := now
	if f.Time > 0 {
		seconds := int64(f.Time)
		nanos := int64((f.Time - float64(seconds)) * float64(time.Second))
		receivedAt = time.Unix(seconds, nanos).UTC()
	}
	return model.RawEvent{
		Tag:        f.Tag,
		Fields:     f.Record,
		ReceivedAt: receivedAt,
	}
}

// EncodeFrame serializes a frame with its length prefix.
func EncodeFrame(frame Frame) ([]byte, error) {
	payload, err := msgpack.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal forward frame: %w", err)
	}
	if len(payload) > MaxFrameSize {
		return nil, fmt.Errorf("forward frame of %d bytes exceeds limit", len(payload))
	}
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out[:4], uint32(len(payload)))
	copy(out[4:], payload)
	return out, nil
}

// DecodeFrames drains every complete frame from the buffer, leaving partial
// trailing data in place for the next read. Frames that fail to unmarshal
// are skipped and counted; an oversized length prefix is unrecoverable
// because the stream can no longer be framed.
func DecodeFrames(buffer *bytes.Buffer) (frames []Frame, invalid int, err error) {
	for buffer.Len() >= 4 {
		length := binary.BigEndian.Uint32(buffer.Bytes()[:4])
		if length > MaxFrameSize {
			return frames, invalid, fmt.Errorf("forward frame of %d bytes exceeds limit", length)
		}
		if buffer.Len() < 4+int(length) {
			break
		}
		buffer.Next(4)
		payload := buffer.Next(int(length))

		var frame Frame
		if err := msgpack.Unmarshal(payload, &frame); err != nil {
			invalid++
			continue
		}
		frames = append(frames, frame)
	}
	return frames, invalid, nil
}
