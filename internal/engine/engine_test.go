package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fcode09/topin-tracker/internal/geolocate"
	"github.com/fcode09/topin-tracker/internal/logsink"
	"github.com/fcode09/topin-tracker/internal/parser"
	"github.com/fcode09/topin-tracker/pkg/topin"
	"github.com/fcode09/topin-tracker/pkg/topin/types"
)

// frameRecorder collects reply frames in order.
type frameRecorder struct {
	frames [][]byte
}

func (r *frameRecorder) WriteFrame(frame []byte) error {
	r.frames = append(r.frames, frame)
	return nil
}

func (r *frameRecorder) hexFrames() []string {
	out := make([]string, len(r.frames))
	for i, f := range r.frames {
		out[i] = hex.EncodeToString(f)
	}
	return out
}

type trafficRow struct {
	peerIP, imei, direction, hexPayload string
}

type positionRow struct {
	peerIP, imei string
	rec          logsink.PositionRecord
}

// memorySink records log rows instead of writing files.
type memorySink struct {
	traffic   []trafficRow
	positions []positionRow
}

func (s *memorySink) Info(peerIP, imei, direction, hexPayload string) error {
	s.traffic = append(s.traffic, trafficRow{peerIP, imei, direction, hexPayload})
	return nil
}

func (s *memorySink) Location(peerIP, imei string, rec logsink.PositionRecord) error {
	s.positions = append(s.positions, positionRow{peerIP, imei, rec})
	return nil
}

func (s *memorySink) Close() error { return nil }

// stubLocator returns a fixed position or error.
type stubLocator struct {
	pos geolocate.Position
	err error

	calls    int
	evidence types.Evidence
}

func (l *stubLocator) Locate(_ context.Context, ev types.Evidence) (geolocate.Position, error) {
	l.calls++
	l.evidence = ev
	return l.pos, l.err
}

var testClock = time.Date(2024, 1, 15, 8, 30, 45, 0, time.UTC)

func newTestEngine(locator geolocate.Locator, sink logsink.Sink) *Engine {
	return New(locator, sink, log.New(io.Discard, "", 0),
		WithClock(func() time.Time { return testClock }))
}

// decodeOne runs a hex frame through the stream decoder.
func decodeOne(t *testing.T, frameHex string) topin.Frame {
	t.Helper()
	buf, err := hex.DecodeString(frameHex)
	require.NoError(t, err)

	frames, residue, err := topin.NewDecoder().DecodeStream(buf)
	require.NoError(t, err)
	require.Len(t, frames, 1)
	require.Empty(t, residue)
	return frames[0]
}

func login(t *testing.T, e *Engine, sess *Session, w FrameWriter) {
	t.Helper()
	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "78780d010359339075016807420d0a"))
	require.NoError(t, err)
	require.True(t, keepAlive)
}

func TestHandleFrame_Login(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}

	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "78780d010359339075016807420d0a"))
	require.NoError(t, err)
	assert.True(t, keepAlive)

	assert.Equal(t, "359339075016807", sess.IMEI)
	assert.Equal(t, uint8(0x42), sess.SoftwareVersion)
	assert.Equal(t, StateActive, sess.State)
	assert.Equal(t, []string{"78780501010d0a"}, w.hexFrames())

	// Both rows carry the freshly learned IMEI.
	require.Len(t, sink.traffic, 2)
	assert.Equal(t, trafficRow{"10.0.0.7", "359339075016807", "IN", "78780d010359339075016807420d0a"}, sink.traffic[0])
	assert.Equal(t, trafficRow{"10.0.0.7", "359339075016807", "OUT", "78780501010d0a"}, sink.traffic[1])
}

func TestHandleFrame_RejectsFrameBeforeLogin(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}

	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "787801300d0a"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.False(t, keepAlive)
	assert.Equal(t, StateClosing, sess.State)
	assert.Empty(t, w.frames)

	// The offending frame still gets its IN row.
	require.Len(t, sink.traffic, 1)
	assert.Equal(t, "IN", sink.traffic[0].direction)
}

func TestHandleFrame_TimeSync(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "787801300d0a"))
	require.NoError(t, err)
	assert.True(t, keepAlive)
	assert.Equal(t, "78780830202401150830450d0a", w.hexFrames()[1])
}

func TestHandleFrame_GPSFix(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "78781210"+"18010f0a1e2dc5027bb200060cc8400f0c1a"+"0d0a"))
	require.NoError(t, err)
	assert.True(t, keepAlive)

	// Reply echoes the device timestamp with a zero length byte.
	assert.Equal(t, "7878001018010f0a1e2d0d0a", w.hexFrames()[1])

	require.Len(t, sink.positions, 1)
	row := sink.positions[0]
	assert.Equal(t, "359339075016807", row.imei)
	assert.Equal(t, "GPS", row.rec.Method)
	assert.Equal(t, 0, row.rec.Validity)
	assert.Equal(t, "5", row.rec.NbSat)
	assert.Equal(t, "23.144960", row.rec.Latitude)
	assert.Equal(t, "-56.389440", row.rec.Longitude)
	assert.Equal(t, "0.0", row.rec.Accuracy)
	assert.Equal(t, "15", row.rec.Speed)
	assert.Equal(t, "26", row.rec.Heading)

	wantTime := time.Date(2024, 1, 15, 10, 30, 45, 0, time.UTC).Local().Format("2006/01/02 15:04:05")
	assert.Equal(t, wantTime, row.rec.Datetime)

	// The session keeps the fix as its last known position.
	require.NotNil(t, sess.LastPosition)
	assert.Equal(t, row.rec, *sess.LastPosition)
}

func TestHandleFrame_GPSFixWithUnsetClock(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "78781211"+"000000000000c5027bb200060cc8401e141a"+"0d0a"))
	require.NoError(t, err)
	assert.True(t, keepAlive)

	// Raw zeros are echoed even though the row carries server time.
	assert.Equal(t, "78780011"+"000000000000"+"0d0a", w.hexFrames()[1])

	require.Len(t, sink.positions, 1)
	row := sink.positions[0]
	assert.Equal(t, 2, row.rec.Validity)
	assert.Equal(t, testClock.Local().Format("2006/01/02 15:04:05"), row.rec.Datetime)
}

func TestHandleFrame_Hibernation(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "787801140d0a"))
	require.NoError(t, err)
	assert.False(t, keepAlive)
	assert.Equal(t, StateClosing, sess.State)
	assert.Len(t, w.frames, 1) // only the login ack
}

const wifiFrameHex = "78781f69" +
	"02" + "180115103045" +
	"aabbccddeeff50" + "1122334455663c" +
	"01" + "00f2" + "02" + "1234567828" +
	"0d0a"

func TestHandleFrame_WifiPositioning(t *testing.T) {
	sink := &memorySink{}
	locator := &stubLocator{pos: geolocate.Position{Latitude: 48.8566, Longitude: 2.3522, Accuracy: 42}}
	e := newTestEngine(locator, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	keepAlive, err := e.HandleFrame(context.Background(), sess, w, decodeOne(t, wifiFrameHex))
	require.NoError(t, err)
	assert.True(t, keepAlive)

	// Stage 1 first, then the resolved position.
	frames := w.hexFrames()
	require.Len(t, frames, 3)
	assert.Equal(t, "78780069"+"180115103045"+"0d0a", frames[1])
	assert.Equal(t, "78780069"+hex.EncodeToString([]byte("+48.856600,+2.352200"))+"0d0a", frames[2])

	assert.Equal(t, 1, locator.calls)
	assert.Len(t, locator.evidence.Wifi, 2)
	assert.Len(t, locator.evidence.Cells, 1)
	assert.Equal(t, 242, locator.evidence.MCC)

	require.Len(t, sink.positions, 1)
	row := sink.positions[0]
	assert.Equal(t, "LBS-GSM-WIFI", row.rec.Method)
	assert.Equal(t, 1, row.rec.Validity)
	assert.Equal(t, "48.856600", row.rec.Latitude)
	assert.Equal(t, "2.352200", row.rec.Longitude)
	assert.Equal(t, "42.0", row.rec.Accuracy)
	assert.Empty(t, row.rec.NbSat)
	assert.Empty(t, row.rec.Speed)

	// The scan's radio environment and the resolved row stay on the session.
	assert.Len(t, sess.Evidence.Wifi, 2)
	assert.Equal(t, 242, sess.Evidence.MCC)
	require.NotNil(t, sess.LastPosition)
	assert.Equal(t, row.rec, *sess.LastPosition)
}

func TestHandleFrame_WifiPositioning_NoHotspots(t *testing.T) {
	sink := &memorySink{}
	locator := &stubLocator{pos: geolocate.Position{Latitude: 48.8566, Longitude: 2.3522, Accuracy: 150}}
	e := newTestEngine(locator, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	frameHex := "78781269" + "00" + "180115103045" + "01" + "00f2" + "02" + "1234567828" + "0d0a"
	_, err := e.HandleFrame(context.Background(), sess, w, decodeOne(t, frameHex))
	require.NoError(t, err)

	require.Len(t, sink.positions, 1)
	assert.Equal(t, "LBS-GSM", sink.positions[0].rec.Method)
}

func TestHandleFrame_WifiPositioning_LookupFails(t *testing.T) {
	sink := &memorySink{}
	locator := &stubLocator{err: errors.New("quota exceeded")}
	e := newTestEngine(locator, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	keepAlive, err := e.HandleFrame(context.Background(), sess, w, decodeOne(t, wifiFrameHex))
	require.NoError(t, err)
	assert.True(t, keepAlive)

	// Stage 1 is already on the wire; stage 2 degrades to the lone comma.
	frames := w.hexFrames()
	require.Len(t, frames, 3)
	assert.Equal(t, "78780069"+"180115103045"+"0d0a", frames[1])
	assert.Equal(t, "787800692c0d0a", frames[2])

	require.Len(t, sink.positions, 1)
	row := sink.positions[0]
	assert.Equal(t, "LBS", row.rec.Method)
	assert.Equal(t, 0, row.rec.Validity)
	assert.Empty(t, row.rec.Datetime)
	assert.Empty(t, row.rec.Latitude)
	assert.Empty(t, row.rec.Longitude)

	// A failed lookup keeps the evidence but yields no last known position.
	assert.Len(t, sess.Evidence.Wifi, 2)
	assert.Nil(t, sess.LastPosition)
}

func TestHandleFrame_WifiOfflinePositioning_StageOneOnly(t *testing.T) {
	sink := &memorySink{}
	locator := &stubLocator{pos: geolocate.Position{Latitude: 48.8566, Longitude: 2.3522}}
	e := newTestEngine(locator, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	frameHex := "78781217" + "00" + "180115103045" + "01" + "00f2" + "02" + "1234567828" + "0d0a"
	keepAlive, err := e.HandleFrame(context.Background(), sess, w, decodeOne(t, frameHex))
	require.NoError(t, err)
	assert.True(t, keepAlive)

	frames := w.hexFrames()
	require.Len(t, frames, 2)
	assert.Equal(t, "78780017"+"180115103045"+"0d0a", frames[1])

	assert.Zero(t, locator.calls)
	assert.Empty(t, sink.positions)

	// Offline scans still refresh the session's radio evidence.
	require.Len(t, sess.Evidence.Cells, 1)
	assert.Equal(t, 242, sess.Evidence.MCC)
}

func TestHandleFrame_Status(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "78780613"+"64420f00"+"0d0a"))
	require.NoError(t, err)
	assert.True(t, keepAlive)
	assert.Len(t, w.frames, 1) // status has no reply
}

func TestHandleFrame_UploadInterval(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "78780398"+"0300"+"0d0a"))
	require.NoError(t, err)
	assert.True(t, keepAlive)
	assert.Equal(t, "787803980300"+"0d0a", w.hexFrames()[1])
}

func TestHandleFrame_Setup(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "787801570d0a"))
	require.NoError(t, err)
	assert.True(t, keepAlive)

	reply := w.frames[1]
	assert.Equal(t, byte(0x1E), reply[2])
	assert.Equal(t, byte(0x57), reply[3])
}

func TestHandleFrame_UnknownOpcodeIgnored(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	keepAlive, err := e.HandleFrame(context.Background(), sess, w,
		decodeOne(t, "787801430d0a"))
	require.NoError(t, err)
	assert.True(t, keepAlive)
	assert.Len(t, w.frames, 1)

	// Unknown frames still produce their IN row.
	last := sink.traffic[len(sink.traffic)-1]
	assert.Equal(t, "IN", last.direction)
	assert.Equal(t, "787801430d0a", last.hexPayload)
}

func TestHandleFrame_DecodeErrorClosesSession(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	short := topin.Frame{
		Opcode:  0x10,
		Payload: []byte{0x18, 0x01},
		Raw:     []byte{0x78, 0x78, 0x03, 0x10, 0x18, 0x01, 0x0D, 0x0A},
	}
	keepAlive, err := e.HandleFrame(context.Background(), sess, w, short)
	require.Error(t, err)
	assert.ErrorIs(t, err, parser.ErrDecode)
	assert.False(t, keepAlive)
	assert.Equal(t, StateClosing, sess.State)
}

func TestHandleFrame_EventOpcodesLogOnly(t *testing.T) {
	sink := &memorySink{}
	e := newTestEngine(geolocate.Disabled{}, sink)
	sess := NewSession("10.0.0.7")
	w := &frameRecorder{}
	login(t, e, sess, w)

	for _, frameHex := range []string{"787801080d0a", "787801800d0a", "787801940d0a"} {
		keepAlive, err := e.HandleFrame(context.Background(), sess, w, decodeOne(t, frameHex))
		require.NoError(t, err, frameHex)
		assert.True(t, keepAlive, frameHex)
	}
	assert.Len(t, w.frames, 1)
}
