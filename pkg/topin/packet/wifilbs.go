package packet

import (
	"fmt"

	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

// WifiLBSPacket is a Wi-Fi + cell tower scan (opcodes 0x17 and 0x69). The
// device expects a timestamp echo; 0x69 additionally expects the resolved
// position in a second reply.
type WifiLBSPacket struct {
	BasePacket

	// DateTime is the device UTC timestamp, BCD coded on the wire.
	DateTime types.DateTime

	// Evidence holds the scanned hotspots, towers and carrier.
	Evidence types.Evidence
}

func (p *WifiLBSPacket) String() string {
	return fmt.Sprintf("WifiLBSPacket{Time: %s, Wifi: %d, Cells: %d, MCC: %d, MNC: %d}",
		p.DateTime.Time, len(p.Evidence.Wifi), len(p.Evidence.Cells), p.Evidence.MCC, p.Evidence.MNC)
}
