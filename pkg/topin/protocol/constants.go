// Package protocol defines the opcode registry and framing constants of the
// TOPIN 2G tracker protocol.
//
// Every packet on the wire is framed as:
//
//	0x78 0x78 | length | opcode | payload | 0x0D 0x0A
//
// The length byte is unreliable on inbound packets (observed devices count it
// inconsistently per opcode), so the decoder treats it as advisory. Outbound
// packets compute it per the policy table in pkg/topin/encoder.
package protocol

// Opcodes of the TOPIN protocol. The set is closed; anything else is an
// unknown opcode and is logged and ignored.
const (
	// Login and session control
	OpcodeLogin       = 0x01 // Login packet - BCD IMEI + software version
	OpcodeSupervision = 0x05 // Supervision packet
	OpcodeHeartbeat   = 0x08 // Heartbeat keep-alive
	OpcodeHibernation = 0x14 // Device announces sleep; server drops the connection
	OpcodeReset       = 0x15 // Factory reset notification

	// Positioning
	OpcodeGPSPositioning         = 0x10 // Real-time GPS fix
	OpcodeGPSOfflinePositioning  = 0x11 // Stored (offline) GPS fix, same layout as 0x10
	OpcodeWifiOfflinePositioning = 0x17 // Stored Wi-Fi + LBS scan, stage-1 reply only
	OpcodeWifiPositioning        = 0x69 // Real-time Wi-Fi + LBS scan, two-stage reply
	OpcodeManualPositioning      = 0x80 // Position requested by button press

	// Status and monitoring
	OpcodeStatus              = 0x13 // Battery / software version / upload interval
	OpcodeBatteryCharge       = 0x81 // Battery charge report
	OpcodeChargerConnected    = 0x82 // Charger plugged in
	OpcodeChargerDisconnected = 0x83 // Charger removed
	OpcodeVibrationReceived   = 0x94 // Vibration alarm

	// Configuration
	OpcodeTime                   = 0x30 // Time synchronisation request
	OpcodeStopAlarm              = 0x56 // Stop alarm request
	OpcodeSetup                  = 0x57 // Synchronous setup request
	OpcodePositionUploadInterval = 0x98 // Device reports SMS-changed upload interval

	// Whitelist management
	OpcodeWhitelistTotal       = 0x16 // Whitelist total number
	OpcodeSynchronousWhitelist = 0x58 // Synchronous whitelist data
	OpcodeRestorePassword      = 0x67 // Restore password
)

// Frame markers.
const (
	StartByte = 0x78 // Repeated twice at the start of every frame
	StopByte1 = 0x0D
	StopByte2 = 0x0A
)

// Framing sizes in bytes.
const (
	StartMarkerSize = 2
	LengthFieldSize = 1
	OpcodeSize      = 1
	StopMarkerSize  = 2

	// MinFrameSize is the smallest well-formed frame: start(2) + length(1) +
	// opcode(1) + stop(2).
	MinFrameSize = StartMarkerSize + LengthFieldSize + OpcodeSize + StopMarkerSize

	// MaxFrameSize bounds frame reassembly. The length field is a single byte,
	// so payloads beyond 255 bytes plus overhead are not representable.
	MaxFrameSize = 255 + StartMarkerSize + LengthFieldSize + StopMarkerSize
)

// Fixed payload sizes for opcodes with binary payloads. The decoder uses
// these to delimit frames whose payloads may contain the 0x0D 0x0A byte pair.
const (
	GPSPayloadSize      = 18 // timestamp(6) + len/sat(1) + lat(4) + lon(4) + speed(1) + flags(2)
	LoginPayloadSize    = 9  // BCD IMEI(8) + software version(1)
	IntervalPayloadSize = 2
)

// opcodeNames maps every known opcode to its symbolic name. Immutable after
// initialisation.
var opcodeNames = map[byte]string{
	OpcodeLogin:                  "login",
	OpcodeSupervision:            "supervision",
	OpcodeHeartbeat:              "heartbeat",
	OpcodeGPSPositioning:         "gps_positioning",
	OpcodeGPSOfflinePositioning:  "gps_offline_positioning",
	OpcodeStatus:                 "status",
	OpcodeHibernation:            "hibernation",
	OpcodeReset:                  "reset",
	OpcodeWhitelistTotal:         "whitelist_total",
	OpcodeWifiOfflinePositioning: "wifi_offline_positioning",
	OpcodeTime:                   "time",
	OpcodeStopAlarm:              "stop_alarm",
	OpcodeSetup:                  "setup",
	OpcodeSynchronousWhitelist:   "synchronous_whitelist",
	OpcodeRestorePassword:        "restore_password",
	OpcodeWifiPositioning:        "wifi_positioning",
	OpcodeManualPositioning:      "manual_positioning",
	OpcodeBatteryCharge:          "battery_charge",
	OpcodeChargerConnected:       "charger_connected",
	OpcodeChargerDisconnected:    "charger_disconnected",
	OpcodeVibrationReceived:      "vibration_received",
	OpcodePositionUploadInterval: "position_upload_interval",
}

// OpcodeName returns the symbolic name for an opcode, or "unknown" if the
// opcode is not part of the registry.
func OpcodeName(opcode byte) string {
	if name, ok := opcodeNames[opcode]; ok {
		return name
	}
	return "unknown"
}

// IsKnownOpcode reports whether the opcode is part of the closed registry.
func IsKnownOpcode(opcode byte) bool {
	_, ok := opcodeNames[opcode]
	return ok
}

// Positioning method labels used in location log rows.
const (
	MethodGPS        = "GPS"
	MethodLBSGSM     = "LBS-GSM"
	MethodLBSGSMWifi = "LBS-GSM-WIFI"
	MethodLBS        = "LBS"
)

// Validity values for position records.
const (
	ValidityInvalid = 0 // No usable fix (or geolocation failure)
	ValidityValid   = 1 // Valid fix
	ValidityNoClock = 2 // Valid fix but the device clock was not yet set
)
