// Package topin implements the byte-level frame codec for the TOPIN 2G
// tracker protocol.
//
// TCP read boundaries carry no meaning: the decoder buffers partial reads
// and reassembles whole frames. The length byte sent by devices is counted
// inconsistently between opcodes, so framing relies on the start and stop
// markers, using per-opcode structure to delimit the payloads that can
// themselves contain the 0x0D 0x0A pair.
package topin

import (
	"errors"
	"fmt"

	"github.com/fcode09/topin-tracker/pkg/topin/protocol"
	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

// ErrFrame is the sentinel wrapped by all framing errors. The connection is
// closed when the stream can no longer be framed.
var ErrFrame = errors.New("frame error")

// Frame is one reassembled protocol frame.
type Frame struct {
	// Opcode is the protocol opcode byte.
	Opcode byte

	// Payload is the frame body after the opcode, before the stop marker.
	Payload []byte

	// Length is the advisory length byte as received. Devices count it
	// inconsistently; it is recorded but not trusted.
	Length byte

	// Raw is the complete frame including markers.
	Raw []byte
}

// Decoder reassembles frames from a TCP byte stream. It is not safe for
// concurrent use; each connection owns one.
type Decoder struct {
	strict bool
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithStrictMode makes the decoder reject leading garbage instead of
// discarding bytes until the next start marker.
func WithStrictMode(strict bool) DecoderOption {
	return func(d *Decoder) { d.strict = strict }
}

// NewDecoder creates a stream decoder.
func NewDecoder(opts ...DecoderOption) *Decoder {
	d := &Decoder{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// DecodeStream extracts as many whole frames as the buffer holds and returns
// the unconsumed residue. The caller appends further reads to the residue and
// calls again. A non-nil error means the stream is unrecoverable and the
// connection should be closed; frames decoded before the error are still
// returned, and the residue holds the bytes that could not be framed so the
// caller can log them.
func (d *Decoder) DecodeStream(buf []byte) ([]Frame, []byte, error) {
	var frames []Frame

	for {
		start := findStartMarker(buf)
		if start < 0 {
			// No start marker: keep at most one trailing 0x78 that may be
			// the first half of a marker split across reads.
			if len(buf) > 0 && buf[len(buf)-1] == protocol.StartByte {
				return frames, buf[len(buf)-1:], nil
			}
			return frames, nil, nil
		}
		if start > 0 {
			if d.strict {
				return frames, buf, fmt.Errorf("%w: %d bytes of leading garbage", ErrFrame, start)
			}
			buf = buf[start:]
		}

		frame, consumed, err := d.frameAt(buf)
		if err != nil {
			return frames, buf, err
		}
		if consumed == 0 {
			// Incomplete frame: wait for more bytes.
			return frames, buf, nil
		}
		frames = append(frames, frame)
		buf = buf[consumed:]
	}
}

// frameAt tries to delimit one frame at the start of buf, which is known to
// begin with the start marker. consumed == 0 means more bytes are needed.
func (d *Decoder) frameAt(buf []byte) (Frame, int, error) {
	const headerSize = protocol.StartMarkerSize + protocol.LengthFieldSize + protocol.OpcodeSize
	if len(buf) < headerSize {
		return Frame{}, 0, nil
	}

	length := buf[2]
	opcode := buf[3]

	payloadLen, known, err := d.expectedPayloadLen(opcode, buf[headerSize:])
	if err != nil {
		return Frame{}, 0, err
	}

	var end int // index of the first stop byte
	if known {
		end = headerSize + payloadLen
		if len(buf) < end+protocol.StopMarkerSize {
			return Frame{}, 0, nil
		}
		if buf[end] != protocol.StopByte1 || buf[end+1] != protocol.StopByte2 {
			return Frame{}, 0, fmt.Errorf("%w: opcode 0x%02X: bad trailer 0x%02X%02X",
				ErrFrame, opcode, buf[end], buf[end+1])
		}
	} else if payloadLen < 0 {
		// Structured payload, not enough bytes yet to size it.
		return Frame{}, 0, nil
	} else {
		end = findStopMarker(buf, headerSize)
		if end < 0 {
			if len(buf) > protocol.MaxFrameSize {
				return Frame{}, 0, fmt.Errorf("%w: no trailer within %d bytes", ErrFrame, protocol.MaxFrameSize)
			}
			return Frame{}, 0, nil
		}
	}

	consumed := end + protocol.StopMarkerSize
	raw := make([]byte, consumed)
	copy(raw, buf[:consumed])

	return Frame{
		Opcode:  opcode,
		Payload: raw[headerSize:end],
		Length:  length,
		Raw:     raw,
	}, consumed, nil
}

// expectedPayloadLen returns the payload size for opcodes whose binary
// payloads may embed the stop marker. known is false for opcodes delimited by
// trailer scan. A negative size with known true means the payload is
// structured but still incomplete.
func (d *Decoder) expectedPayloadLen(opcode byte, payload []byte) (int, bool, error) {
	switch opcode {
	case protocol.OpcodeGPSPositioning, protocol.OpcodeGPSOfflinePositioning:
		return protocol.GPSPayloadSize, true, nil

	case protocol.OpcodeWifiOfflinePositioning, protocol.OpcodeWifiPositioning:
		// Layout: count(1) ts(6) wifi(7*N) count(1) mcc(2) mnc(1) cells(5*M)
		if len(payload) < 1 {
			return -1, true, nil
		}
		nWifi, err := types.DecimalValue(payload[0])
		if err != nil {
			return 0, true, fmt.Errorf("%w: opcode 0x%02X: %v", ErrFrame, opcode, err)
		}
		gsmCountIdx := 7 + 7*nWifi
		if len(payload) <= gsmCountIdx {
			return -1, true, nil
		}
		nGSM := int(payload[gsmCountIdx])
		return gsmCountIdx + 1 + 3 + 5*nGSM, true, nil

	default:
		return 0, false, nil
	}
}

func findStartMarker(buf []byte) int {
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == protocol.StartByte && buf[i+1] == protocol.StartByte {
			return i
		}
	}
	return -1
}

func findStopMarker(buf []byte, from int) int {
	for i := from; i+1 < len(buf); i++ {
		if buf[i] == protocol.StopByte1 && buf[i+1] == protocol.StopByte2 {
			return i
		}
	}
	return -1
}
