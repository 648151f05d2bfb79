package rpc

import (
	"testing"

	"github.com/stretchr/testify/require"

	"embedcore-go/rpc/checksum"
	"embedcore-go/status"
)

// pipeComm is a scriptable transport: transmitted frames are captured,
// received bytes are drained from a staged buffer.
type pipeComm struct {
	sent  [][]byte
	stage []byte
}

func (p *pipeComm) Transmit(data []byte) uint32 {
	p.sent = append(p.sent, append([]byte(nil), data...))
	return uint32(len(data))
}

func (p *pipeComm) Receive(out []byte) uint32 {
	n := copy(out, p.stage)
	p.stage = p.stage[n:]
	return uint32(n)
}

type dispatchCapture struct {
	headers  []Header
	payloads [][]byte
}

func (d *dispatchCapture) fn(h *Header, payload []byte) {
	d.headers = append(d.headers, *h)
	d.payloads = append(d.payloads, append([]byte(nil), payload...))
}

func newCtx(t *testing.T, rec *dispatchCapture, crc checksum.Handler) (*Context, *pipeComm) {
	t.Helper()
	var c Context
	cmds := []Command{{ID: 0x01, Fn: rec.fn}}
	require.NoError(t, c.Init(cmds, make([]byte, 1024), make([]byte, 1024)))
	comm := &pipeComm{}
	c.SetComm(comm)
	if crc != nil {
		c.SetCrc(crc)
	}
	return &c, comm
}

func TestRequestWireFormat(t *testing.T) {
	var rec dispatchCapture
	c, comm := newCtx(t, &rec, nil)

	payload := []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03}
	require.NoError(t, c.CreateRequest(0x01, payload))
	require.Equal(t, 1, c.PendingTx())
	require.Equal(t, 1, c.PendingRecords())

	c.Run() // transmits the front frame
	require.Len(t, comm.sent, 1)
	want := []byte{
		0xCA, 0xFE, // sync
		0x00, 0x01, // uuid
		0x00,       // type = request
		0x00,       // encrypted
		0x00, 0x01, // cmd id
		0x00, 0x00, 0x00, 0x08, // payload size
		0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03,
	}
	require.Equal(t, want, comm.sent[0])
	require.Equal(t, 0, c.PendingTx())
}

func TestFramingRoundTripByteAtATime(t *testing.T) {
	var clientCap, serverCap dispatchCapture
	client, clientComm := newCtx(t, &clientCap, nil)
	server, serverComm := newCtx(t, &serverCap, nil)

	payload := []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03}
	require.NoError(t, client.CreateRequest(0x01, payload))
	client.Run()
	require.Len(t, clientComm.sent, 1)

	// Feed the request into the server one byte at a time.
	for _, b := range clientComm.sent[0] {
		serverComm.stage = append(serverComm.stage[:0], b)
		server.Run()
	}
	require.Len(t, serverCap.headers, 1)
	require.Equal(t, TypeRequest, serverCap.headers[0].Type)
	require.Equal(t, uint16(0x01), serverCap.headers[0].CmdID)
	require.Equal(t, uint16(1), serverCap.headers[0].UUID)
	require.Equal(t, payload, serverCap.payloads[0])

	// Server answers with the request's uuid; the client settles its
	// record and dispatches the response.
	require.NoError(t, server.CreateResponse(0x01, serverCap.headers[0].UUID, []byte{0x00, 0x00, 0x00, 0x05}))
	server.Run()
	require.Len(t, serverComm.sent, 1)

	clientComm.stage = serverComm.sent[0]
	client.Run()
	require.Len(t, clientCap.headers, 1)
	require.Equal(t, TypeResponse, clientCap.headers[0].Type)
	require.Equal(t, []byte{0x00, 0x00, 0x00, 0x05}, clientCap.payloads[0])
	require.Equal(t, 0, client.PendingRecords())
}

func TestCrcRoundTripAndCorruptionDetection(t *testing.T) {
	var clientCap, serverCap dispatchCapture
	client, clientComm := newCtx(t, &clientCap, checksum.Sum16{})
	server, serverComm := newCtx(t, &serverCap, checksum.Sum16{})

	var serverErrs []ErrorCode
	server.SetErrorCallback(func(code ErrorCode) { serverErrs = append(serverErrs, code) })

	payload := []byte{0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00, 0x03}
	require.NoError(t, client.CreateRequest(0x01, payload))
	client.Run()
	frame := clientComm.sent[0]
	require.Len(t, frame, HeaderSize+len(payload)+2)

	// Intact frame dispatches.
	serverComm.stage = append([]byte(nil), frame...)
	server.Run()
	require.Len(t, serverCap.headers, 1)
	require.Empty(t, serverErrs)

	// Corrupting payload byte offset 12 kills the dispatch with exactly
	// one crc_failed report.
	bad := append([]byte(nil), frame...)
	bad[12] ^= 0xFF
	serverComm.stage = bad
	server.Run()
	require.Len(t, serverCap.headers, 1, "corrupt frame must not dispatch")
	require.Equal(t, []ErrorCode{ErrCrcFailed}, serverErrs)

	// The parser resynchronised: the next good frame still dispatches.
	require.NoError(t, client.CreateRequest(0x01, payload))
	client.Run()
	serverComm.stage = clientComm.sent[1]
	server.Run()
	require.Len(t, serverCap.headers, 2)
}

func TestGarbageBeforeSyncIsSkipped(t *testing.T) {
	var rec dispatchCapture
	c, comm := newCtx(t, &rec, nil)
	var errs []ErrorCode
	c.SetErrorCallback(func(code ErrorCode) { errs = append(errs, code) })

	var peerCap dispatchCapture
	peer, peerComm := newCtx(t, &peerCap, nil)
	require.NoError(t, peer.CreateRequest(0x01, []byte{0xAB}))
	peer.Run()

	comm.stage = append([]byte{0x13, 0x37, 0x42}, peerComm.sent[0]...)
	c.Run()
	require.Len(t, rec.headers, 1)
	require.Equal(t, []byte{0xAB}, rec.payloads[0])
	require.Contains(t, errs, ErrWrongSyncBytes)
}

func TestWrongMsgTypeResyncs(t *testing.T) {
	var rec dispatchCapture
	c, comm := newCtx(t, &rec, nil)
	var errs []ErrorCode
	c.SetErrorCallback(func(code ErrorCode) { errs = append(errs, code) })

	comm.stage = []byte{0xCA, 0xFE, 0x00, 0x01, 0x07} // type 7 is invalid
	c.Run()
	require.Equal(t, []ErrorCode{ErrWrongMsgType}, errs)
	require.Len(t, rec.headers, 0)
}

func TestUnknownCommandReported(t *testing.T) {
	var rec dispatchCapture
	c, comm := newCtx(t, &rec, nil)
	var errs []ErrorCode
	c.SetErrorCallback(func(code ErrorCode) { errs = append(errs, code) })

	var peerCap dispatchCapture
	peer, peerComm := newCtx(t, &peerCap, nil)
	require.NoError(t, peer.CreateRequest(0x99, nil))
	peer.Run()

	comm.stage = peerComm.sent[0]
	c.Run()
	require.Equal(t, []ErrorCode{ErrUnknownCmd}, errs)
	require.Len(t, rec.headers, 0)
}

func TestRecordTableExhaustion(t *testing.T) {
	var rec dispatchCapture
	c, _ := newCtx(t, &rec, nil)

	for i := 0; i < numRecords; i++ {
		require.NoError(t, c.CreateRequest(0x01, nil))
	}
	err := c.CreateRequest(0x01, nil)
	require.Equal(t, status.Fail, status.Of(err))
	require.Equal(t, numRecords, c.PendingRecords())
}

func TestRxOverflowReleasesReservations(t *testing.T) {
	var rec dispatchCapture
	var c Context
	require.NoError(t, c.Init([]Command{{ID: 1, Fn: rec.fn}}, make([]byte, 1024), make([]byte, 96)))
	comm := &pipeComm{}
	c.SetComm(comm)
	var errs []ErrorCode
	c.SetErrorCallback(func(code ErrorCode) { errs = append(errs, code) })

	var peerCap dispatchCapture
	peer, peerComm := newCtx(t, &peerCap, nil)
	require.NoError(t, peer.CreateRequest(0x01, make([]byte, 512)))
	peer.Run()

	comm.stage = peerComm.sent[0]
	c.Run()
	require.Contains(t, errs, ErrQueueReserveFailed)
	require.Len(t, rec.headers, 0)

	// Nothing leaked: a frame that fits still parses afterwards.
	require.NoError(t, peer.CreateRequest(0x01, []byte{1, 2}))
	peer.Run()
	comm.stage = peerComm.sent[1]
	c.Run()
	require.Len(t, rec.headers, 1)
}

func TestUnsolicitedResponseDropped(t *testing.T) {
	var rec dispatchCapture
	c, comm := newCtx(t, &rec, nil)

	var peerCap dispatchCapture
	peer, peerComm := newCtx(t, &peerCap, nil)
	require.NoError(t, peer.CreateResponse(0x01, 0x42, []byte{1}))
	peer.Run()

	comm.stage = peerComm.sent[0]
	c.Run()
	require.Len(t, rec.headers, 0, "response with unknown uuid must be dropped")
}
