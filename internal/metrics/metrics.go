// Package metrics exposes Prometheus instrumentation for the tracker
// server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FramesIn counts reassembled inbound frames per opcode name.
	FramesIn = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topin_frames_in_total",
		Help: "Inbound frames by opcode.",
	}, []string{"opcode"})

	// FramesOut counts reply frames written to devices.
	FramesOut = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "topin_frames_out_total",
		Help: "Outbound reply frames.",
	})

	// FrameErrors counts connections dropped for unframeable streams.
	FrameErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "topin_frame_errors_total",
		Help: "Framing errors that closed a connection.",
	})

	// DecodeErrors counts payloads that failed to decode.
	DecodeErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "topin_decode_errors_total",
		Help: "Payload decode errors that closed a connection.",
	})

	// UnknownOpcodes counts frames with opcodes outside the registry.
	UnknownOpcodes = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "topin_unknown_opcodes_total",
		Help: "Frames ignored because the opcode is unknown.",
	})

	// GeolocationLookups counts geolocation outcomes: cached, ok or error.
	GeolocationLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topin_geolocation_lookups_total",
		Help: "Geolocation lookups by outcome.",
	}, []string{"outcome"})

	// ActiveConnections tracks currently connected devices.
	ActiveConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "topin_active_connections",
		Help: "Open device connections.",
	})
)

func init() {
	prometheus.MustRegister(
		FramesIn,
		FramesOut,
		FrameErrors,
		DecodeErrors,
		UnknownOpcodes,
		GeolocationLookups,
		ActiveConnections,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
