package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/fcode09/topin-tracker/pkg/topin"
	"github.com/fcode09/topin-tracker/pkg/topin/packet"
	"github.com/fcode09/topin-tracker/pkg/topin/protocol"
	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

// GPSParser parses GPS fixes (opcodes 0x10 and 0x11, identical layout).
type GPSParser struct {
	BaseParser
}

// NewGPSParser creates a parser for one of the two GPS opcodes.
func NewGPSParser(opcode byte, name string) *GPSParser {
	return &GPSParser{BaseParser: NewBaseParser(opcode, name)}
}

// Parse implements Parser.
// Payload structure (18 bytes):
//   - DateTime: 6 bytes, plain binary components, all-zero when the clock
//     is unset
//   - Length/satellites: 1 byte (high nibble: length indicator, low: satellites)
//   - Latitude: 4 bytes big-endian, seconds-of-angle times 30000
//   - Longitude: 4 bytes, same scaling
//   - Speed: 1 byte (km/h)
//   - Course/status flags: 2 bytes
func (p *GPSParser) Parse(f topin.Frame) (packet.Packet, error) {
	if len(f.Payload) != protocol.GPSPayloadSize {
		return nil, fmt.Errorf("%s: %w: payload must be %d bytes, got %d",
			p.Name(), ErrDecode, protocol.GPSPayloadSize, len(f.Payload))
	}

	dt, err := types.DateTimeFromBinary(f.Payload[0:6])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", p.Name(), ErrDecode, err)
	}

	infoByte := f.Payload[6]
	latRaw := binary.BigEndian.Uint32(f.Payload[7:11])
	lonRaw := binary.BigEndian.Uint32(f.Payload[11:15])
	speed := f.Payload[15]

	course, err := types.CourseStatusFromBytes(f.Payload[16:18])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", p.Name(), ErrDecode, err)
	}

	pkt := &packet.GPSPacket{
		BasePacket:      base(f),
		DateTime:        dt,
		LengthIndicator: infoByte >> 4,
		Satellites:      infoByte & 0x0F,
		Coordinates:     types.CoordinatesFromRaw(latRaw, lonRaw, course),
		Speed:           speed,
		Course:          course,
	}
	if err := pkt.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w: %v", p.Name(), ErrDecode, err)
	}
	return pkt, nil
}

func init() {
	MustRegister(NewGPSParser(protocol.OpcodeGPSPositioning, "GPS Positioning"))
	MustRegister(NewGPSParser(protocol.OpcodeGPSOfflinePositioning, "GPS Offline Positioning"))
}
