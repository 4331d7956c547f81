package packet

import "fmt"

// StatusPacket is a periodic status report (opcode 0x13). The signal
// strength byte is optional; some firmware revisions omit it.
type StatusPacket struct {
	BasePacket

	Battery              uint8
	SoftwareVersion      uint8
	StatusUploadInterval uint8

	SignalStrength    uint8
	HasSignalStrength bool
}

func (p *StatusPacket) String() string {
	if p.HasSignalStrength {
		return fmt.Sprintf("StatusPacket{Battery: %d, SwVersion: %d, Interval: %d, Signal: %d}",
			p.Battery, p.SoftwareVersion, p.StatusUploadInterval, p.SignalStrength)
	}
	return fmt.Sprintf("StatusPacket{Battery: %d, SwVersion: %d, Interval: %d}",
		p.Battery, p.SoftwareVersion, p.StatusUploadInterval)
}
