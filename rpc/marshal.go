// marshal.go — the send path: header serialisation and frame assembly into
// the TX queue.
package rpc

import (
	"encoding/binary"

	"embedcore-go/status"
)

func serializeHeader(buf []byte, h *Header) {
	binary.BigEndian.PutUint16(buf[0:2], SyncWord)
	binary.BigEndian.PutUint16(buf[2:4], h.UUID)
	buf[4] = byte(h.Type)
	if h.Encrypted {
		buf[5] = 1
	} else {
		buf[5] = 0
	}
	binary.BigEndian.PutUint16(buf[6:8], h.CmdID)
	binary.BigEndian.PutUint32(buf[8:12], h.PayloadSize)
}

func parseHeader(buf []byte) Header {
	return Header{
		UUID:        binary.BigEndian.Uint16(buf[2:4]),
		Type:        MsgType(buf[4]),
		Encrypted:   buf[5] != 0,
		CmdID:       binary.BigEndian.Uint16(buf[6:8]),
		PayloadSize: binary.BigEndian.Uint32(buf[8:12]),
	}
}

// createMessage reserves one TX element for the whole frame, serialises
// header, payload and crc trailer into it, and commits.
func (c *Context) createMessage(h *Header, payload []byte) error {
	total := HeaderSize + len(payload) + c.crcSize()
	r, err := c.tx.Reserve(total)
	if err != nil {
		return err
	}
	frame := r.Bytes()
	serializeHeader(frame, h)
	copy(frame[HeaderSize:], payload)
	if c.crc != nil {
		c.crc.Calculate(payload, frame[HeaderSize+len(payload):])
	}
	return r.Commit()
}

// CreateRequest marshals a request frame and claims an outstanding-request
// record for its uuid. Fails with status.Fail when the record table or the
// TX queue is exhausted; the record is rolled back on a queue failure.
func (c *Context) CreateRequest(cmdID uint16, payload []byte) error {
	if !c.Ready() {
		return status.ArgInvalid
	}
	c.nextUUID++
	rec := c.takeRecord(c.nextUUID)
	if rec == nil {
		c.nextUUID--
		log.Warn("no free request record")
		return status.Fail
	}
	h := Header{
		UUID:        c.nextUUID,
		Type:        TypeRequest,
		CmdID:       cmdID,
		PayloadSize: uint32(len(payload)),
	}
	if err := c.createMessage(&h, payload); err != nil {
		rec.available = true
		return err
	}
	return nil
}

// CreateResponse marshals a response frame echoing the request's uuid. No
// record is claimed.
func (c *Context) CreateResponse(cmdID uint16, uuid uint16, payload []byte) error {
	if !c.Ready() {
		return status.ArgInvalid
	}
	h := Header{
		UUID:        uuid,
		Type:        TypeResponse,
		CmdID:       cmdID,
		PayloadSize: uint32(len(payload)),
	}
	return c.createMessage(&h, payload)
}

// CreateEvent marshals an unsolicited event frame.
func (c *Context) CreateEvent(cmdID uint16, payload []byte) error {
	if !c.Ready() {
		return status.ArgInvalid
	}
	c.nextUUID++
	h := Header{
		UUID:        c.nextUUID,
		Type:        TypeEvent,
		CmdID:       cmdID,
		PayloadSize: uint32(len(payload)),
	}
	return c.createMessage(&h, payload)
}
