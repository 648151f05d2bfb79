// Package datamodel maintains a fixed table of typed data points whose
// storage comes from a caller-supplied buffer, publishing a change event on
// an owned event bus whenever a point's value actually changes. The event
// code is the data point index; the payload is the new value bytes.
package datamodel

import (
	"bytes"

	"github.com/sirupsen/logrus"

	"embedcore-go/eventbus"
	"embedcore-go/status"
	"embedcore-go/x/staticmem"
)

var log = logrus.WithField("mod", "datamodel")

// PointInvalid is the reserved index sentinel; no point may use it.
const PointInvalid = ^uint32(0)

// PointType tags the value stored at a data point.
type PointType uint8

const (
	TypeBool PointType = iota
	TypeUint8
	TypeUint16
	TypeUint32
	TypeInt8
	TypeInt16
	TypeInt32
	TypeFloat
	TypeDouble
	TypeString
	TypeBlob
)

// fixedSize returns the storage size for fixed-width types, 0 for
// variable-size ones (string, blob).
func fixedSize(t PointType) int {
	switch t {
	case TypeBool, TypeUint8, TypeInt8:
		return 1
	case TypeUint16, TypeInt16:
		return 2
	case TypeUint32, TypeInt32, TypeFloat:
		return 4
	case TypeDouble:
		return 8
	default:
		return 0
	}
}

// PointDef declares one data point. Size is required for TypeString and
// TypeBlob (the maximum value size) and ignored for fixed-width types.
type PointDef struct {
	Index uint32
	Type  PointType
	Size  int
}

type point struct {
	def  PointDef
	data []byte // allocated storage, full capacity
	used int    // bytes of data currently meaningful
	set  bool   // written at least once
}

// DataModel owns the point table and its change bus. Initialise with Init.
type DataModel struct {
	points []point
	mem    staticmem.MemList
	bus    eventbus.Bus
}

// Init allocates storage for every declared point from dataBuf and creates
// the change-event bus over eventBuf.
func (d *DataModel) Init(defs []PointDef, dataBuf, eventBuf []byte) error {
	if len(defs) == 0 || len(dataBuf) == 0 || len(eventBuf) == 0 {
		return status.ArgInvalid
	}
	if err := d.mem.Init(dataBuf); err != nil {
		return err
	}
	if err := d.bus.Init(eventBuf); err != nil {
		return err
	}
	d.points = d.points[:0]
	for _, def := range defs {
		if def.Index == PointInvalid {
			return status.ArgInvalid
		}
		size := fixedSize(def.Type)
		if size == 0 {
			size = def.Size
		}
		if size <= 0 {
			return status.ArgInvalid
		}
		data := d.mem.Alloc(size)
		if data == nil {
			log.Warnf("data point %d: storage exhausted", def.Index)
			return status.Fail
		}
		d.points = append(d.points, point{def: def, data: data})
	}
	return nil
}

func (d *DataModel) find(index uint32) *point {
	for i := range d.points {
		if d.points[i].def.Index == index {
			return &d.points[i]
		}
	}
	return nil
}

// Set stores a new value and queues a change event when the value differs
// from the stored one. The type must match the declaration.
func (d *DataModel) Set(index uint32, data []byte, t PointType) error {
	p := d.find(index)
	if p == nil || t != p.def.Type || len(data) == 0 {
		return status.ArgInvalid
	}
	if want := fixedSize(t); want != 0 && len(data) != want {
		return status.ArgInvalid
	}
	if len(data) > len(p.data) {
		return status.ArgInvalid
	}
	if p.set && p.used == len(data) && bytes.Equal(p.data[:p.used], data) {
		return nil // unchanged, no event
	}
	copy(p.data, data)
	p.used = len(data)
	p.set = true
	return d.bus.Send(index, data)
}

// Get copies the stored value into out. out must be at least the stored
// size; the copied length is returned.
func (d *DataModel) Get(index uint32, out []byte, t PointType) (int, error) {
	p := d.find(index)
	if p == nil || t != p.def.Type {
		return 0, status.ArgInvalid
	}
	if !p.set {
		return 0, status.Fail
	}
	if len(out) < p.used {
		return 0, status.ArgInvalid
	}
	copy(out, p.data[:p.used])
	return p.used, nil
}

// Listen attaches a listener to the change bus. Every change is delivered
// to every listener; the event code carries the point index.
func (d *DataModel) Listen(l *eventbus.Listener) error { return d.bus.Subscribe(l) }

// Unlisten detaches a listener.
func (d *DataModel) Unlisten(l *eventbus.Listener) { d.bus.Unsubscribe(l) }

// Run delivers one pending change event to the listeners.
func (d *DataModel) Run() { d.bus.Run() }

// PendingChanges returns the number of undelivered change events.
func (d *DataModel) PendingChanges() int { return d.bus.Pending() }
