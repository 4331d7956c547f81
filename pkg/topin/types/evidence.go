package types

import (
	"fmt"
	"strings"
)

// WifiAccessPoint is one scanned Wi-Fi hotspot: a BSSID and its signal
// strength in dBm (always negative).
type WifiAccessPoint struct {
	BSSID string
	RSSI  int
}

// GSMCell is one observed GSM tower.
type GSMCell struct {
	LAC    uint16
	CellID uint16
	RSSI   int
}

// Evidence is the rolling radio environment a device reported in its latest
// Wi-Fi/LBS frame: scanned hotspots, nearby towers and the serving carrier.
// It is reset before every Wi-Fi/LBS frame is parsed.
type Evidence struct {
	Wifi  []WifiAccessPoint
	Cells []GSMCell
	MCC   int
	MNC   int
}

// HasWifi reports whether at least one hotspot was scanned.
func (e Evidence) HasWifi() bool {
	return len(e.Wifi) > 0
}

// Fingerprint returns a stable key identifying this radio environment. Two
// frames carrying the same towers and hotspots produce the same fingerprint,
// which makes repeated scans from a stationary device cacheable.
func (e Evidence) Fingerprint() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d/%d", e.MCC, e.MNC)
	for _, c := range e.Cells {
		fmt.Fprintf(&sb, "|c%d:%d:%d", c.LAC, c.CellID, c.RSSI)
	}
	for _, w := range e.Wifi {
		fmt.Fprintf(&sb, "|w%s:%d", w.BSSID, w.RSSI)
	}
	return sb.String()
}

// FormatBSSID renders 6 MAC address bytes in the colon-separated form the
// geolocation backend expects.
func FormatBSSID(b []byte) string {
	parts := make([]string, len(b))
	for i, x := range b {
		parts[i] = fmt.Sprintf("%02x", x)
	}
	return strings.Join(parts, ":")
}
