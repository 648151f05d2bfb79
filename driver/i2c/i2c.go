// Package i2c is the binding layer for I²C bus drivers. It follows the
// same descriptor/instance/ownership pattern as driver/uart, with
// bus-specific addressing in the vtable and an owned event bus on each
// descriptor for publishing peripheral events to subscribers.
package i2c

import (
	"sync"

	"github.com/sirupsen/logrus"

	"embedcore-go/driver"
	"embedcore-go/eventbus"
	"embedcore-go/status"
	"embedcore-go/x/ilist"
)

var log = logrus.WithField("mod", "i2c")

// Peripheral event codes published on the descriptor's event bus and
// reported through instance callbacks.
const (
	EventTxCmplt uint8 = iota
	EventTxErr
	EventRxCmplt
	EventRxErr
	EventTimeout
)

// Config is the live bus configuration held in the descriptor.
type Config struct {
	SpeedHz  uint32
	AddrBits uint8 // 7 or 10
}

// HWInterface is the contract a hardware I²C driver implements.
type HWInterface interface {
	Initialize(index uint8) error
	Deinitialize(index uint8) error
	SyncTransmit(index uint8, addr uint16, tx []byte, timeoutMillis uint32) error
	SyncReceive(index uint8, addr uint16, rx []byte, timeoutMillis uint32) error
	Probe(index uint8, addr uint16, timeoutMillis uint32) error
	UpdateConfig(index uint8) error
}

// AsyncHW is the optional asynchronous capability; completion is reported
// through Driver.CompleteAsync.
type AsyncHW interface {
	AsyncTransmit(index uint8, addr uint16, tx []byte) error
	AsyncReceive(index uint8, addr uint16, rx []byte) error
}

// Driver is one registered I²C descriptor. Its events field is the descriptor-owned
// bus for peripheral events; create it with InitEvents and pump it with
// ProcessEvents from the owning task.
type Driver struct {
	node ilist.Node[Driver]

	Common driver.Common
	Config Config
	Index  uint8
	HW     HWInterface

	events eventbus.Bus
}

// InitEvents creates the descriptor's event bus over buf.
func (d *Driver) InitEvents(buf []byte) error { return d.events.Init(buf) }

// PublishEvent queues a peripheral event for subscribed listeners.
// Hardware drivers call it alongside CompleteAsync for events that concern
// more parties than the current owner.
func (d *Driver) PublishEvent(event uint8, data []byte) error {
	if !d.events.Ready() {
		return status.Fail
	}
	return d.events.Send(uint32(event), data)
}

// ProcessEvents delivers one pending peripheral event to the listeners.
func (d *Driver) ProcessEvents() { d.events.Run() }

// CompleteAsync reports an asynchronous completion: it invokes the owning
// instance's callback, then releases the ownership lock.
func (d *Driver) CompleteAsync(event uint8, p1, p2 any) {
	if owner := d.Common.Owner(); owner != nil && owner.Callback != nil {
		owner.Callback(event, p1, p2)
	}
	d.Common.ForceUnlock()
}

var (
	regMu   sync.Mutex
	drivers ilist.List[Driver]
)

// RegisterHWDriver appends a descriptor to the registry.
func RegisterHWDriver(d *Driver) error {
	if d == nil || d.HW == nil || d.Common.Name == "" {
		return status.ArgInvalid
	}
	regMu.Lock()
	defer regMu.Unlock()
	d.node.Init(d)
	drivers.PushTail(&d.node)
	log.Infof("registered hw driver %s (%s)", d.Common.Name, d.Common.Version)
	return nil
}

// UnregisterHWDriver unlinks a descriptor from the registry.
func UnregisterHWDriver(d *Driver) {
	if d == nil {
		return
	}
	regMu.Lock()
	defer regMu.Unlock()
	d.node.Unlink()
}

func findDriver(name string) *Driver {
	regMu.Lock()
	defer regMu.Unlock()
	var found *Driver
	drivers.Each(func(d *Driver) bool {
		if d.Common.Name == name {
			found = d
			return false
		}
		return true
	})
	return found
}

// Instance is a caller-owned handle bound to one registered driver.
type Instance struct {
	inst     driver.Instance
	drv      *Driver
	listener eventbus.Listener
}

// Register binds the instance to the driver registered under name. cb
// receives async completions; listen, when non-nil, is subscribed to the
// descriptor's peripheral event bus.
func (i *Instance) Register(name string, cb driver.Callback, listen eventbus.ListenerFunc) error {
	d := findDriver(name)
	if d == nil {
		log.Warnf("driver %q not found", name)
		return status.DrvNotFound
	}
	i.drv = d
	i.inst.Callback = cb
	if listen != nil {
		if err := i.listener.Init(listen); err != nil {
			i.drv = nil
			i.inst.Callback = nil
			return err
		}
		if err := d.events.Subscribe(&i.listener); err != nil {
			i.drv = nil
			i.inst.Callback = nil
			return err
		}
	}
	return nil
}

// Unregister clears the binding and detaches the event listener.
func (i *Instance) Unregister() {
	if i.drv != nil {
		i.drv.events.Unsubscribe(&i.listener)
	}
	i.drv = nil
	i.inst.Callback = nil
}

func (i *Instance) acquire() (*Driver, error) {
	if i.drv == nil {
		return nil, status.DrvNotFound
	}
	if err := i.drv.Common.Lock(&i.inst); err != nil {
		return nil, err
	}
	return i.drv, nil
}

func (i *Instance) call(op func(d *Driver) error) error {
	d, err := i.acquire()
	if err != nil {
		return err
	}
	defer d.Common.Unlock(&i.inst)
	return op(d)
}

func (i *Instance) callAsync(op func(d *Driver, hw AsyncHW) error) error {
	d, err := i.acquire()
	if err != nil {
		return err
	}
	hw, ok := d.HW.(AsyncHW)
	if !ok {
		d.Common.Unlock(&i.inst)
		return status.InfNotExist
	}
	if err := op(d, hw); err != nil {
		d.Common.Unlock(&i.inst)
		return err
	}
	return nil
}

// Initialize brings the bus up.
func (i *Instance) Initialize() error {
	return i.call(func(d *Driver) error { return d.HW.Initialize(d.Index) })
}

// Deinitialize shuts the bus down.
func (i *Instance) Deinitialize() error {
	return i.call(func(d *Driver) error { return d.HW.Deinitialize(d.Index) })
}

// SyncTransmit writes tx to the device at addr, blocking up to
// timeoutMillis.
func (i *Instance) SyncTransmit(addr uint16, tx []byte, timeoutMillis uint32) error {
	return i.call(func(d *Driver) error { return d.HW.SyncTransmit(d.Index, addr, tx, timeoutMillis) })
}

// SyncReceive reads len(rx) bytes from the device at addr.
func (i *Instance) SyncReceive(addr uint16, rx []byte, timeoutMillis uint32) error {
	return i.call(func(d *Driver) error { return d.HW.SyncReceive(d.Index, addr, rx, timeoutMillis) })
}

// Probe checks for a device at addr.
func (i *Instance) Probe(addr uint16, timeoutMillis uint32) error {
	return i.call(func(d *Driver) error { return d.HW.Probe(d.Index, addr, timeoutMillis) })
}

// AsyncTransmit starts a write and returns immediately.
func (i *Instance) AsyncTransmit(addr uint16, tx []byte) error {
	return i.callAsync(func(d *Driver, hw AsyncHW) error { return hw.AsyncTransmit(d.Index, addr, tx) })
}

// AsyncReceive starts a read and returns immediately.
func (i *Instance) AsyncReceive(addr uint16, rx []byte) error {
	return i.callAsync(func(d *Driver, hw AsyncHW) error { return hw.AsyncReceive(d.Index, addr, rx) })
}

// GetConfig returns the live configuration record inside the descriptor.
func (i *Instance) GetConfig() (*Config, error) {
	d, err := i.acquire()
	if err != nil {
		return nil, err
	}
	defer d.Common.Unlock(&i.inst)
	return &d.Config, nil
}

// UpdateConfig asks the hardware to re-apply the current configuration.
func (i *Instance) UpdateConfig() error {
	return i.call(func(d *Driver) error { return d.HW.UpdateConfig(d.Index) })
}
