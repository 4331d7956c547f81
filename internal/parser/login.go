package parser

import (
	"encoding/hex"
	"fmt"

	"github.com/fcode09/topin-tracker/pkg/topin"
	"github.com/fcode09/topin-tracker/pkg/topin/packet"
	"github.com/fcode09/topin-tracker/pkg/topin/protocol"
)

// LoginParser parses login packets (opcode 0x01).
type LoginParser struct {
	BaseParser
}

// NewLoginParser creates a login parser.
func NewLoginParser() *LoginParser {
	return &LoginParser{BaseParser: NewBaseParser(protocol.OpcodeLogin, "Login")}
}

// Parse implements Parser.
// Payload structure:
//   - IMEI: 8 bytes, 16 BCD nibbles of which the first is a zero pad
//   - Software version: 1 byte
func (p *LoginParser) Parse(f topin.Frame) (packet.Packet, error) {
	if len(f.Payload) < protocol.LoginPayloadSize {
		return nil, fmt.Errorf("login: %w: payload too short: %d bytes (need %d)",
			ErrDecode, len(f.Payload), protocol.LoginPayloadSize)
	}

	// The device sends 16 nibbles; dropping the leading pad nibble leaves
	// the 15-digit IMEI.
	imei := hex.EncodeToString(f.Payload[:8])[1:]

	pkt := &packet.LoginPacket{
		BasePacket:      base(f),
		IMEI:            imei,
		SoftwareVersion: f.Payload[8],
	}
	if err := pkt.Validate(); err != nil {
		return nil, fmt.Errorf("login: %w: %v", ErrDecode, err)
	}
	return pkt, nil
}

func init() {
	MustRegister(NewLoginParser())
}
