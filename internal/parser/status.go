package parser

import (
	"fmt"

	"github.com/fcode09/topin-tracker/pkg/topin"
	"github.com/fcode09/topin-tracker/pkg/topin/packet"
	"github.com/fcode09/topin-tracker/pkg/topin/protocol"
)

// StatusParser parses status reports (opcode 0x13).
type StatusParser struct {
	BaseParser
}

// NewStatusParser creates a status parser.
func NewStatusParser() *StatusParser {
	return &StatusParser{BaseParser: NewBaseParser(protocol.OpcodeStatus, "Status")}
}

// Parse implements Parser.
// Payload structure (4 or 5 bytes):
//   - Battery: 1 byte
//   - Software version: 1 byte
//   - Status upload interval: 1 byte
//   - Signal strength: 1 byte, optional
func (p *StatusParser) Parse(f topin.Frame) (packet.Packet, error) {
	n := len(f.Payload)
	if n != 4 && n != 5 {
		return nil, fmt.Errorf("status: %w: payload must be 4 or 5 bytes, got %d", ErrDecode, n)
	}

	pkt := &packet.StatusPacket{
		BasePacket:           base(f),
		Battery:              f.Payload[0],
		SoftwareVersion:      f.Payload[1],
		StatusUploadInterval: f.Payload[2],
	}
	if n == 5 {
		pkt.SignalStrength = f.Payload[3]
		pkt.HasSignalStrength = true
	}
	return pkt, nil
}

func init() {
	MustRegister(NewStatusParser())
}
