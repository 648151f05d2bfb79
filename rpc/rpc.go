// Package rpc implements a length-prefixed request/response protocol over a
// byte transport: marshalling into a TX queue, a streaming unmarshal state
// machine feeding an RX queue, command dispatch, and an outstanding-request
// table.
//
// Wire format, all multi-byte fields big-endian:
//
//	sync(2)=0xCAFE | uuid(2) | type(1) | encrypted(1) | cmd_id(2) | payload_size(4) | payload | [crc]
//
// The crc trailer is present iff a checksum handler is installed and covers
// the payload only.
package rpc

import (
	"github.com/sirupsen/logrus"

	"embedcore-go/osal"
	"embedcore-go/queue"
	"embedcore-go/rpc/checksum"
	"embedcore-go/status"
)

var log = logrus.WithField("mod", "rpc")

// SyncWord anchors frame re-synchronisation.
const SyncWord uint16 = 0xCAFE

// HeaderSize is the fixed wire header size in bytes.
const HeaderSize = 12

// MsgType discriminates frames.
type MsgType uint8

const (
	TypeRequest MsgType = iota
	TypeResponse
	TypeEvent
	numTypes
)

// ErrorCode identifies a protocol error surfaced through the error
// callback. The parser resynchronises automatically after every one.
type ErrorCode string

const (
	ErrWrongSyncBytes     ErrorCode = "wrong_sync_bytes"
	ErrWrongMsgType       ErrorCode = "wrong_msg_type"
	ErrUnknownCmd         ErrorCode = "unknown_cmd"
	ErrCrcFailed          ErrorCode = "crc_failed"
	ErrQueueReserveFailed ErrorCode = "queue_reserve_failed"
)

// ErrorCallback receives protocol errors. Optional.
type ErrorCallback func(code ErrorCode)

// Header is the parsed frame header.
type Header struct {
	UUID        uint16
	Type        MsgType
	Encrypted   bool
	CmdID       uint16
	PayloadSize uint32
}

// CommandHandler processes one dispatched frame. payload is borrowed from
// the RX queue and valid only during the call.
type CommandHandler func(h *Header, payload []byte)

// Command binds an id to its handler.
type Command struct {
	ID uint16
	Fn CommandHandler
}

// CommInterface is the byte transport. Transmit returns the number of
// bytes consumed; Receive fills out and returns the number of bytes
// produced, where a short count means no more bytes are available now.
type CommInterface interface {
	Transmit(data []byte) uint32
	Receive(out []byte) uint32
}

// numRecords bounds outstanding requests per context.
const numRecords = 4

// record tracks one outstanding request.
type record struct {
	uuid      uint16
	timestamp uint32 // ticks at creation
	available bool
}

// Context is one RPC endpoint. Initialise with Init, then set the comm
// interface before the first Run.
type Context struct {
	tx, rx   queue.Queue
	commands []Command
	crc      checksum.Handler
	comm     CommInterface
	errCb    ErrorCallback
	nextUUID uint16
	records  [numRecords]record
	um       unmarshaler

	// RecordTimeoutMs is how long an outstanding request record lives
	// before it is recycled regardless of cause. TickHz is the installed
	// OSAL's tick rate, used to convert. With no OSAL backend the timeout
	// scan is a no-op.
	RecordTimeoutMs uint32
	TickHz          uint32
}

// Init wires the command table and creates the TX/RX queues over the given
// buffers.
func (c *Context) Init(commands []Command, txBuf, rxBuf []byte) error {
	if len(commands) == 0 {
		return status.ArgInvalid
	}
	if err := c.tx.Init(txBuf); err != nil {
		return err
	}
	if err := c.rx.Init(rxBuf); err != nil {
		return err
	}
	c.commands = commands
	c.nextUUID = 0
	for i := range c.records {
		c.records[i] = record{available: true}
	}
	c.um.reset()
	if c.RecordTimeoutMs == 0 {
		c.RecordTimeoutMs = 3000
	}
	if c.TickHz == 0 {
		c.TickHz = 1000
	}
	return nil
}

// SetCrc installs the checksum handler; both endpoints must install the
// same one. Install before any traffic.
func (c *Context) SetCrc(h checksum.Handler) { c.crc = h }

// SetComm installs the byte transport.
func (c *Context) SetComm(comm CommInterface) { c.comm = comm }

// SetErrorCallback installs the protocol-error callback.
func (c *Context) SetErrorCallback(cb ErrorCallback) { c.errCb = cb }

// Ready reports whether the context can carry traffic.
func (c *Context) Ready() bool {
	return c.tx.Ready() && c.rx.Ready() && len(c.commands) > 0
}

func (c *Context) reportError(code ErrorCode) {
	log.Warnf("protocol error: %s", code)
	if c.errCb != nil {
		c.errCb(code)
	}
}

func (c *Context) crcSize() int {
	if c.crc == nil {
		return 0
	}
	return c.crc.Size()
}

func (c *Context) findCommand(id uint16) *Command {
	for i := range c.commands {
		if c.commands[i].ID == id {
			return &c.commands[i]
		}
	}
	return nil
}

// takeRecord claims a free outstanding-request record, nil when none.
func (c *Context) takeRecord(uuid uint16) *record {
	for i := range c.records {
		if c.records[i].available {
			c.records[i] = record{uuid: uuid, timestamp: osal.TickCount(), available: false}
			return &c.records[i]
		}
	}
	return nil
}

// settleRecord releases the record tracking uuid, reporting whether one
// existed.
func (c *Context) settleRecord(uuid uint16) bool {
	for i := range c.records {
		if !c.records[i].available && c.records[i].uuid == uuid {
			c.records[i].available = true
			return true
		}
	}
	return false
}

// Run performs one pump turn: drain the transport through the unmarshal
// state machine, dispatch at most one received message, transmit at most
// one pending frame, and recycle timed-out records. Call it periodically
// from a task worker or the superloop.
func (c *Context) Run() {
	if !c.Ready() {
		return
	}
	c.pumpReceive()
	c.dispatchOne()
	c.pumpTransmit()
	c.recycleRecords()
}

func (c *Context) pumpReceive() {
	if c.comm == nil {
		return
	}
	var buf [32]byte
	for {
		n := c.comm.Receive(buf[:])
		for _, b := range buf[:n] {
			c.um.feed(c, b)
		}
		if int(n) < len(buf) {
			return
		}
	}
}

func (c *Context) dispatchOne() {
	if c.rx.Len() < 2 {
		return
	}
	front, err := c.rx.Front()
	if err != nil || len(front) != HeaderSize {
		return
	}
	h := parseHeader(front)

	if h.Type == TypeResponse {
		if !c.settleRecord(h.UUID) {
			// Unsolicited response: drop the pair.
			_ = c.rx.PopFront()
			_ = c.rx.PopFront()
			return
		}
	}

	cmd := c.findCommand(h.CmdID)
	_ = c.rx.PopFront()
	payload, err := c.rx.Front()
	if err != nil {
		return
	}
	if cmd != nil {
		cmd.Fn(&h, payload)
	} else {
		c.reportError(ErrUnknownCmd)
	}
	_ = c.rx.PopFront()
}

func (c *Context) pumpTransmit() {
	if c.comm == nil || c.tx.Len() == 0 {
		return
	}
	frame, err := c.tx.Front()
	if err != nil {
		return
	}
	c.comm.Transmit(frame)
	_ = c.tx.PopFront()
}

// recycleRecords frees records older than RecordTimeoutMs so a lost
// response cannot pin the table forever.
func (c *Context) recycleRecords() {
	if !osal.Installed() {
		return
	}
	now := osal.TickCount()
	limit := uint32(uint64(c.RecordTimeoutMs) * uint64(c.TickHz) / 1000)
	for i := range c.records {
		if !c.records[i].available && now-c.records[i].timestamp > limit {
			log.Warnf("request uuid %d timed out", c.records[i].uuid)
			c.records[i].available = true
		}
	}
}

// PendingTx returns the number of frames awaiting transmission.
func (c *Context) PendingTx() int { return c.tx.Len() }

// PendingRecords returns the number of outstanding request records.
func (c *Context) PendingRecords() int {
	n := 0
	for i := range c.records {
		if !c.records[i].available {
			n++
		}
	}
	return n
}
