package encoder

import (
	"github.com/fcode09/topin-tracker/pkg/topin/protocol"
)

// SetupConfig holds the configuration a device receives in reply to a
// synchronous setup request (opcode 0x57): upload cadence, alarm clocks,
// do-not-disturb windows, a GPS-on window and up to three SOS phone numbers.
type SetupConfig struct {
	// UploadIntervalSeconds is the position upload cadence.
	UploadIntervalSeconds uint16

	// BinarySwitch packs eight feature flags into one byte.
	BinarySwitch byte

	// Alarms are three 3-byte alarm clock slots.
	Alarms [3][3]byte

	// DNDSwitch enables the do-not-disturb windows below.
	DNDSwitch byte

	// DNDTimes are three 3-byte do-not-disturb slots.
	DNDTimes [3][3]byte

	// GPSTimeSwitch enables the GPS-on window.
	GPSTimeSwitch byte
	GPSTimeStart  uint16
	GPSTimeStop   uint16

	// PhoneNumbers are up to three ASCII SOS numbers, joined on the wire by
	// a 0x3B separator.
	PhoneNumbers [3]string
}

// DefaultSetupConfig returns the stock configuration: a 768 second upload
// interval, switch byte 0b00110001, everything else zeroed and no phone
// numbers.
func DefaultSetupConfig() SetupConfig {
	return SetupConfig{
		UploadIntervalSeconds: 0x0300,
		BinarySwitch:          0b00110001,
	}
}

// SetupResponse builds the reply to a setup request from cfg, with the
// default length byte.
func (e *Encoder) SetupResponse(cfg SetupConfig) []byte {
	content := make([]byte, 0, 32)
	content = append(content, byte(cfg.UploadIntervalSeconds>>8), byte(cfg.UploadIntervalSeconds))
	content = append(content, cfg.BinarySwitch)
	for _, a := range cfg.Alarms {
		content = append(content, a[:]...)
	}
	content = append(content, cfg.DNDSwitch)
	for _, d := range cfg.DNDTimes {
		content = append(content, d[:]...)
	}
	content = append(content, cfg.GPSTimeSwitch)
	content = append(content, byte(cfg.GPSTimeStart>>8), byte(cfg.GPSTimeStart))
	content = append(content, byte(cfg.GPSTimeStop>>8), byte(cfg.GPSTimeStop))
	for i, n := range cfg.PhoneNumbers {
		if i > 0 {
			content = append(content, 0x3B)
		}
		content = append(content, []byte(n)...)
	}
	return e.Build(protocol.OpcodeSetup, content)
}
