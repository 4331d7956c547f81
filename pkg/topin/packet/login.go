package packet

import "fmt"

// LoginPacket is the first packet a device sends after connecting
// (opcode 0x01). It identifies the device by IMEI and reports the firmware
// version.
type LoginPacket struct {
	BasePacket

	// IMEI is the 15-digit device identity.
	IMEI string

	// SoftwareVersion is the firmware version byte.
	SoftwareVersion uint8
}

// Validate checks the IMEI is a 15-digit string.
func (p *LoginPacket) Validate() error {
	if len(p.IMEI) != 15 {
		return &ValidationError{Field: "IMEI", Reason: fmt.Sprintf("want 15 digits, got %d", len(p.IMEI))}
	}
	for _, r := range p.IMEI {
		if r < '0' || r > '9' {
			return &ValidationError{Field: "IMEI", Reason: "non-digit character"}
		}
	}
	return nil
}

func (p *LoginPacket) String() string {
	return fmt.Sprintf("LoginPacket{IMEI: %s, SwVersion: %d}", p.IMEI, p.SoftwareVersion)
}
