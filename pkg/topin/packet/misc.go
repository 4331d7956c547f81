package packet

import "fmt"

// TimePacket is a time synchronisation request (opcode 0x30, empty payload).
type TimePacket struct {
	BasePacket
}

// HibernationPacket announces the device is going to sleep (opcode 0x14).
// The server closes the connection on receipt.
type HibernationPacket struct {
	BasePacket
}

// SetupPacket is a device-initiated request for configuration (opcode 0x57).
type SetupPacket struct {
	BasePacket
}

// UploadIntervalPacket reports a position upload interval changed over SMS
// (opcode 0x98). The reply echoes the two interval bytes.
type UploadIntervalPacket struct {
	BasePacket

	// IntervalRaw is echoed verbatim in the acknowledgement.
	IntervalRaw [2]byte
}

// Interval returns the reported interval in seconds.
func (p *UploadIntervalPacket) Interval() uint16 {
	return uint16(p.IntervalRaw[0])<<8 | uint16(p.IntervalRaw[1])
}

func (p *UploadIntervalPacket) String() string {
	return fmt.Sprintf("UploadIntervalPacket{Interval: %ds}", p.Interval())
}

// EventPacket covers the reply-less opcodes that only get logged:
// supervision, heartbeat, reset, whitelist, stop alarm, manual positioning,
// battery and charger events, vibration.
type EventPacket struct {
	BasePacket

	// Payload is kept for the traffic log; its layout is not decoded.
	Payload []byte
}
