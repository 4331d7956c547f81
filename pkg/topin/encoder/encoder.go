// Package encoder builds the server reply frames of the TOPIN protocol.
//
// The length byte of a reply is not always the payload length: several
// opcodes expect values that only observed device behaviour explains. Those
// quirks are kept behind per-reply length policies instead of conditionals
// spread through the engine:
//
//	IgnoreDatetime  - subtract the 6 timestamp bytes from the length
//	IgnoreSeparator - subtract the ',' separator byte from the length
//	ForceLength(v)  - use v verbatim (GPS and Wi-Fi replies expect 0)
package encoder

import (
	"strconv"
	"time"

	"github.com/fcode09/topin-tracker/pkg/topin/protocol"
	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

// Option adjusts the length byte of a built frame.
type Option func(*lengthPolicy)

type lengthPolicy struct {
	ignoreDatetime  bool
	ignoreSeparator bool
	forced          bool
	forcedValue     byte
}

// IgnoreDatetime excludes a 6-byte embedded timestamp from the length byte.
func IgnoreDatetime() Option {
	return func(p *lengthPolicy) { p.ignoreDatetime = true }
}

// IgnoreSeparator excludes an embedded ',' separator from the length byte.
func IgnoreSeparator() Option {
	return func(p *lengthPolicy) { p.ignoreSeparator = true }
}

// ForceLength sets the length byte verbatim.
func ForceLength(v byte) Option {
	return func(p *lengthPolicy) { p.forced = true; p.forcedValue = v }
}

// Encoder builds reply frames. The zero value is ready to use.
type Encoder struct{}

// New creates an Encoder.
func New() *Encoder {
	return &Encoder{}
}

// Build assembles a complete frame: markers, length byte per policy, opcode
// and content.
func (e *Encoder) Build(opcode byte, content []byte, opts ...Option) []byte {
	var policy lengthPolicy
	for _, opt := range opts {
		opt(&policy)
	}

	length := len(content) + 1
	if policy.ignoreDatetime && length >= 6 {
		length -= 6
	}
	if policy.ignoreSeparator && length >= 1 {
		length--
	}
	if policy.forced {
		length = int(policy.forcedValue)
	}

	frame := make([]byte, 0, protocol.MinFrameSize+len(content))
	frame = append(frame, protocol.StartByte, protocol.StartByte)
	frame = append(frame, byte(length))
	frame = append(frame, opcode)
	frame = append(frame, content...)
	frame = append(frame, protocol.StopByte1, protocol.StopByte2)
	return frame
}

// LoginResponse acknowledges a login. Devices expect the literal frame
// 78 78 05 01 01 0D 0A, so the length byte is pinned.
func (e *Encoder) LoginResponse() []byte {
	return e.Build(protocol.OpcodeLogin, []byte{0x01}, ForceLength(0x05))
}

// TimeResponse carries the current server UTC time over 7 decimal-coded
// bytes: YY YY MM DD HH MM SS.
func (e *Encoder) TimeResponse(t time.Time) []byte {
	return e.Build(protocol.OpcodeTime, types.EncodeServerTime(t))
}

// GPSResponse echoes the 6 timestamp bytes of a GPS fix. The device expects
// a zero length byte.
func (e *Encoder) GPSResponse(opcode byte, timestamp [6]byte) []byte {
	return e.Build(opcode, timestamp[:], ForceLength(0))
}

// WifiStage1Response echoes the 6 timestamp bytes of a Wi-Fi/LBS scan as-is,
// again with a zero length byte.
func (e *Encoder) WifiStage1Response(opcode byte, timestamp [6]byte) []byte {
	return e.Build(opcode, timestamp[:], ForceLength(0))
}

// WifiStage2Response carries the resolved position as ASCII
// "<±lat>,<±lng>", each coordinate rounded to six fractional digits with an
// explicit sign. When the lookup failed both fields are empty and the
// payload degenerates to the lone ',' separator.
func (e *Encoder) WifiStage2Response(opcode byte, coords *types.Coordinates) []byte {
	var lat, lng string
	if coords != nil {
		lat = formatSignedCoordinate(coords.Latitude)
		lng = formatSignedCoordinate(coords.Longitude)
	}

	content := make([]byte, 0, len(lat)+1+len(lng))
	content = append(content, []byte(lat)...)
	content = append(content, ',')
	content = append(content, []byte(lng)...)
	return e.Build(opcode, content, ForceLength(0))
}

// formatSignedCoordinate renders a coordinate with six fractional digits and
// a mandatory sign: 48.8566 -> "+48.856600".
func formatSignedCoordinate(v float64) string {
	s := strconv.FormatFloat(v, 'f', 6, 64)
	if v >= 0 {
		s = "+" + s
	}
	return s
}

// UploadIntervalResponse echoes the two interval bytes the device reported.
func (e *Encoder) UploadIntervalResponse(interval [2]byte) []byte {
	return e.Build(protocol.OpcodePositionUploadInterval, interval[:])
}

// GenericResponse acknowledges an opcode with an empty content frame.
func (e *Encoder) GenericResponse(opcode byte) []byte {
	return e.Build(opcode, nil)
}
