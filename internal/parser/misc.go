package parser

import (
	"fmt"

	"github.com/fcode09/topin-tracker/pkg/topin"
	"github.com/fcode09/topin-tracker/pkg/topin/packet"
	"github.com/fcode09/topin-tracker/pkg/topin/protocol"
)

// TimeParser parses time synchronisation requests (opcode 0x30, empty
// payload).
type TimeParser struct {
	BaseParser
}

func NewTimeParser() *TimeParser {
	return &TimeParser{BaseParser: NewBaseParser(protocol.OpcodeTime, "Time")}
}

func (p *TimeParser) Parse(f topin.Frame) (packet.Packet, error) {
	return &packet.TimePacket{BasePacket: base(f)}, nil
}

// HibernationParser parses hibernation notices (opcode 0x14).
type HibernationParser struct {
	BaseParser
}

func NewHibernationParser() *HibernationParser {
	return &HibernationParser{BaseParser: NewBaseParser(protocol.OpcodeHibernation, "Hibernation")}
}

func (p *HibernationParser) Parse(f topin.Frame) (packet.Packet, error) {
	return &packet.HibernationPacket{BasePacket: base(f)}, nil
}

// SetupParser parses synchronous setup requests (opcode 0x57).
type SetupParser struct {
	BaseParser
}

func NewSetupParser() *SetupParser {
	return &SetupParser{BaseParser: NewBaseParser(protocol.OpcodeSetup, "Setup")}
}

func (p *SetupParser) Parse(f topin.Frame) (packet.Packet, error) {
	return &packet.SetupPacket{BasePacket: base(f)}, nil
}

// UploadIntervalParser parses upload interval reports (opcode 0x98).
type UploadIntervalParser struct {
	BaseParser
}

func NewUploadIntervalParser() *UploadIntervalParser {
	return &UploadIntervalParser{BaseParser: NewBaseParser(protocol.OpcodePositionUploadInterval, "Position Upload Interval")}
}

func (p *UploadIntervalParser) Parse(f topin.Frame) (packet.Packet, error) {
	if len(f.Payload) < protocol.IntervalPayloadSize {
		return nil, fmt.Errorf("position_upload_interval: %w: payload must be 2 bytes, got %d",
			ErrDecode, len(f.Payload))
	}
	pkt := &packet.UploadIntervalPacket{BasePacket: base(f)}
	copy(pkt.IntervalRaw[:], f.Payload[:2])
	return pkt, nil
}

// EventParser covers the reply-less opcodes that are decoded only far enough
// to be logged.
type EventParser struct {
	BaseParser
}

func NewEventParser(opcode byte, name string) *EventParser {
	return &EventParser{BaseParser: NewBaseParser(opcode, name)}
}

func (p *EventParser) Parse(f topin.Frame) (packet.Packet, error) {
	return &packet.EventPacket{BasePacket: base(f), Payload: f.Payload}, nil
}

func init() {
	MustRegister(NewTimeParser())
	MustRegister(NewHibernationParser())
	MustRegister(NewSetupParser())
	MustRegister(NewUploadIntervalParser())

	MustRegister(NewEventParser(protocol.OpcodeSupervision, "Supervision"))
	MustRegister(NewEventParser(protocol.OpcodeHeartbeat, "Heartbeat"))
	MustRegister(NewEventParser(protocol.OpcodeReset, "Reset"))
	MustRegister(NewEventParser(protocol.OpcodeWhitelistTotal, "Whitelist Total"))
	MustRegister(NewEventParser(protocol.OpcodeStopAlarm, "Stop Alarm"))
	MustRegister(NewEventParser(protocol.OpcodeSynchronousWhitelist, "Synchronous Whitelist"))
	MustRegister(NewEventParser(protocol.OpcodeRestorePassword, "Restore Password"))
	MustRegister(NewEventParser(protocol.OpcodeManualPositioning, "Manual Positioning"))
	MustRegister(NewEventParser(protocol.OpcodeBatteryCharge, "Battery Charge"))
	MustRegister(NewEventParser(protocol.OpcodeChargerConnected, "Charger Connected"))
	MustRegister(NewEventParser(protocol.OpcodeChargerDisconnected, "Charger Disconnected"))
	MustRegister(NewEventParser(protocol.OpcodeVibrationReceived, "Vibration Received"))
}
