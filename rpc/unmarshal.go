// unmarshal.go — the receive path: a streaming state machine fed one byte
// at a time. Every queue reservation taken while parsing is either
// committed on message success or released on failure, so no RX bytes leak
// across resynchronisation.
package rpc

import "embedcore-go/queue"

type parseState uint8

const (
	stateSync parseState = iota
	stateUUID
	stateMsgType
	stateEncryptFlag
	stateCmdID
	statePayloadSize
	statePayload
	stateCRC
)

type unmarshaler struct {
	state parseState
	accum uint32 // multi-byte field accumulator
	count int    // bytes consumed in the current field

	hdr        Header
	hdrRes     *queue.Reserved
	payloadRes *queue.Reserved
	crcRes     *queue.Reserved
	hdrIdx     int
	payloadIdx int
	crcIdx     int
}

func (u *unmarshaler) reset() {
	if u.hdrRes != nil {
		_ = u.hdrRes.Release()
	}
	if u.payloadRes != nil {
		_ = u.payloadRes.Release()
	}
	if u.crcRes != nil {
		_ = u.crcRes.Release()
	}
	*u = unmarshaler{}
}

// abort releases all in-flight reservations and resynchronises.
func (u *unmarshaler) abort(c *Context, code ErrorCode) {
	u.reset()
	c.reportError(code)
}

// put appends one raw byte to the header element under construction.
func (u *unmarshaler) put(b byte) {
	u.hdrRes.Bytes()[u.hdrIdx] = b
	u.hdrIdx++
}

func (u *unmarshaler) feed(c *Context, b byte) {
	switch u.state {
	case stateSync:
		u.accum = (u.accum<<8 | uint32(b)) & 0xFFFF
		if u.count < 2 {
			u.count++
		}
		if u.count < 2 {
			return
		}
		if uint16(u.accum) != SyncWord {
			if u.count == 2 {
				u.count++ // report once per garbage run
				c.reportError(ErrWrongSyncBytes)
			}
			return
		}
		res, err := c.rx.Reserve(HeaderSize)
		if err != nil {
			u.reset()
			c.reportError(ErrQueueReserveFailed)
			return
		}
		*u = unmarshaler{state: stateUUID, hdrRes: res}
		u.put(0xCA)
		u.put(0xFE)

	case stateUUID:
		u.accum = u.accum<<8 | uint32(b)
		u.put(b)
		u.count++
		if u.count == 2 {
			u.hdr.UUID = uint16(u.accum)
			u.next(stateMsgType)
		}

	case stateMsgType:
		if b >= uint8(numTypes) {
			u.abort(c, ErrWrongMsgType)
			return
		}
		u.hdr.Type = MsgType(b)
		u.put(b)
		u.next(stateEncryptFlag)

	case stateEncryptFlag:
		u.hdr.Encrypted = b != 0
		u.put(b)
		u.next(stateCmdID)

	case stateCmdID:
		u.accum = u.accum<<8 | uint32(b)
		u.put(b)
		u.count++
		if u.count == 2 {
			u.hdr.CmdID = uint16(u.accum)
			u.next(statePayloadSize)
		}

	case statePayloadSize:
		u.accum = u.accum<<8 | uint32(b)
		u.put(b)
		u.count++
		if u.count < 4 {
			return
		}
		u.hdr.PayloadSize = u.accum
		res, err := c.rx.Reserve(int(u.hdr.PayloadSize))
		if err != nil {
			u.abort(c, ErrQueueReserveFailed)
			return
		}
		u.payloadRes = res
		u.next(statePayload)
		if u.hdr.PayloadSize == 0 {
			u.finishPayload(c)
		}

	case statePayload:
		u.payloadRes.Bytes()[u.payloadIdx] = b
		u.payloadIdx++
		if uint32(u.payloadIdx) == u.hdr.PayloadSize {
			u.finishPayload(c)
		}

	case stateCRC:
		u.crcRes.Bytes()[u.crcIdx] = b
		u.crcIdx++
		if u.crcIdx == c.crc.Size() {
			u.finishCRC(c)
		}
	}
}

func (u *unmarshaler) next(s parseState) {
	u.state = s
	u.accum = 0
	u.count = 0
}

// finishPayload runs once the payload bytes are complete: with a checksum
// handler installed it opens the crc field, otherwise it commits the
// message.
func (u *unmarshaler) finishPayload(c *Context) {
	if c.crc != nil {
		res, err := c.rx.Reserve(c.crc.Size())
		if err != nil {
			u.abort(c, ErrQueueReserveFailed)
			return
		}
		u.crcRes = res
		u.next(stateCRC)
		return
	}
	u.commit()
}

// finishCRC verifies the trailer. The crc element itself is released in
// both outcomes; it only ever carries scratch bytes.
func (u *unmarshaler) finishCRC(c *Context) {
	ok := c.crc.Verify(u.payloadRes.Bytes(), u.crcRes.Bytes())
	_ = u.crcRes.Release()
	u.crcRes = nil
	if !ok {
		u.abort(c, ErrCrcFailed)
		return
	}
	u.commit()
}

// commit publishes header and payload back-to-back into the RX queue and
// returns to sync hunting.
func (u *unmarshaler) commit() {
	_ = u.hdrRes.Commit()
	_ = u.payloadRes.Commit()
	u.hdrRes = nil
	u.payloadRes = nil
	*u = unmarshaler{}
}
