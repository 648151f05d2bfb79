// Package loopback provides an in-memory transport pair for exercising the
// RPC framer without hardware: two endpoints whose TX and RX sides are
// cross-wired byte rings.
package loopback

import "embedcore-go/x/bytering"

// Endpoint is one side of the pair. It implements rpc.CommInterface.
type Endpoint struct {
	tx *bytering.Ring
	rx *bytering.Ring
}

// NewPair returns two cross-wired endpoints, each direction backed by a
// ring of the given power-of-two size.
func NewPair(size int) (*Endpoint, *Endpoint) {
	ab := bytering.New(size)
	ba := bytering.New(size)
	return &Endpoint{tx: ab, rx: ba}, &Endpoint{tx: ba, rx: ab}
}

// Transmit pushes data towards the peer, returning the number of bytes
// accepted.
func (e *Endpoint) Transmit(data []byte) uint32 {
	return uint32(e.tx.TryWriteFrom(data))
}

// Receive pulls whatever the peer has sent, returning the number of bytes
// produced.
func (e *Endpoint) Receive(out []byte) uint32 {
	return uint32(e.rx.TryReadInto(out))
}

// Pending returns bytes queued towards this endpoint.
func (e *Endpoint) Pending() int { return e.rx.Available() }
