package parser

import (
	"encoding/binary"
	"fmt"

	"github.com/fcode09/topin-tracker/pkg/topin"
	"github.com/fcode09/topin-tracker/pkg/topin/packet"
	"github.com/fcode09/topin-tracker/pkg/topin/protocol"
	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

// WifiLBSParser parses Wi-Fi + LBS scans (opcodes 0x17 and 0x69).
type WifiLBSParser struct {
	BaseParser
}

// NewWifiLBSParser creates a parser for one of the two Wi-Fi/LBS opcodes.
func NewWifiLBSParser(opcode byte, name string) *WifiLBSParser {
	return &WifiLBSParser{BaseParser: NewBaseParser(opcode, name)}
}

// Parse implements Parser.
// Payload structure (variable):
//   - Hotspot count: 1 byte, decimal coded
//   - DateTime: 6 bytes, BCD
//   - Hotspots: count * 7 bytes (BSSID 6, RSSI 1, negated)
//   - Tower count: 1 byte
//   - MCC: 2 bytes, MNC: 1 byte
//   - Towers: count * 5 bytes (LAC 2, Cell ID 2, RSSI 1, negated)
func (p *WifiLBSParser) Parse(f topin.Frame) (packet.Packet, error) {
	payload := f.Payload
	if len(payload) < 11 {
		return nil, fmt.Errorf("%s: %w: payload too short: %d bytes", p.Name(), ErrDecode, len(payload))
	}

	nWifi, err := types.DecimalValue(payload[0])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: hotspot count: %v", p.Name(), ErrDecode, err)
	}

	dt, err := types.DateTimeFromBytes(payload[1:7])
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", p.Name(), ErrDecode, err)
	}

	offset := 7
	if len(payload) < offset+7*nWifi+4 {
		return nil, fmt.Errorf("%s: %w: payload truncated after %d hotspots", p.Name(), ErrDecode, nWifi)
	}

	evidence := types.Evidence{}
	for i := 0; i < nWifi; i++ {
		entry := payload[offset : offset+7]
		evidence.Wifi = append(evidence.Wifi, types.WifiAccessPoint{
			BSSID: types.FormatBSSID(entry[:6]),
			RSSI:  -int(entry[6]),
		})
		offset += 7
	}

	nGSM := int(payload[offset])
	offset++
	evidence.MCC = int(binary.BigEndian.Uint16(payload[offset : offset+2]))
	evidence.MNC = int(payload[offset+2])
	offset += 3

	if len(payload) < offset+5*nGSM {
		return nil, fmt.Errorf("%s: %w: payload truncated after %d towers", p.Name(), ErrDecode, nGSM)
	}
	for i := 0; i < nGSM; i++ {
		entry := payload[offset : offset+5]
		evidence.Cells = append(evidence.Cells, types.GSMCell{
			LAC:    binary.BigEndian.Uint16(entry[0:2]),
			CellID: binary.BigEndian.Uint16(entry[2:4]),
			RSSI:   -int(entry[4]),
		})
		offset += 5
	}

	return &packet.WifiLBSPacket{
		BasePacket: base(f),
		DateTime:   dt,
		Evidence:   evidence,
	}, nil
}

func init() {
	MustRegister(NewWifiLBSParser(protocol.OpcodeWifiOfflinePositioning, "WiFi Offline Positioning"))
	MustRegister(NewWifiLBSParser(protocol.OpcodeWifiPositioning, "WiFi Positioning"))
}
