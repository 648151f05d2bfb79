// Package spi is the binding layer for SPI bus drivers: the shared
// descriptor/instance/ownership pattern with full-duplex transfers and
// chip-select handling in the vtable, plus a descriptor-owned event bus
// for peripheral events.
package spi

import (
	"sync"

	"github.com/sirupsen/logrus"

	"embedcore-go/driver"
	"embedcore-go/eventbus"
	"embedcore-go/status"
	"embedcore-go/x/ilist"
)

var log = logrus.WithField("mod", "spi")

// Peripheral event codes.
const (
	EventXferCmplt uint8 = iota
	EventXferErr
	EventTimeout
)

// Mode is the SPI clock mode (CPOL/CPHA combination 0-3).
type Mode uint8

// Config is the live bus configuration held in the descriptor.
type Config struct {
	SpeedHz uint32
	Mode    Mode
}

// HWInterface is the contract a hardware SPI driver implements. cs selects
// the chip-select line for the transfer.
type HWInterface interface {
	Initialize(index uint8) error
	Deinitialize(index uint8) error
	SyncTransfer(index uint8, cs uint8, tx, rx []byte, timeoutMillis uint32) error
	UpdateConfig(index uint8) error
}

// AsyncHW is the optional asynchronous capability; completion is reported
// through Driver.CompleteAsync.
type AsyncHW interface {
	AsyncTransfer(index uint8, cs uint8, tx, rx []byte) error
}

// Driver is one registered SPI descriptor.
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
func (d *Driver) PublishEvent(event uint8, data []byte) error {
	if !d.events.Ready() {
		return status.Fail
	}
	return d.events.Send(uint32(event), data)
}

// ProcessEvents delivers one pending peripheral event to the listeners.
func (d *Driver) ProcessEvents() { d.events.Run() }

// CompleteAsync reports an asynchronous completion and releases the
// ownership lock.
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

// Register binds the instance to the driver registered under name.
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

// Initialize brings the bus up.
func (i *Instance) Initialize() error {
	return i.call(func(d *Driver) error { return d.HW.Initialize(d.Index) })
}

// Deinitialize shuts the bus down.
func (i *Instance) Deinitialize() error {
	return i.call(func(d *Driver) error { return d.HW.Deinitialize(d.Index) })
}

// SyncTransfer runs a full-duplex transfer on chip-select cs, blocking up
// to timeoutMillis. Either tx or rx may be nil for half-duplex use.
func (i *Instance) SyncTransfer(cs uint8, tx, rx []byte, timeoutMillis uint32) error {
	return i.call(func(d *Driver) error { return d.HW.SyncTransfer(d.Index, cs, tx, rx, timeoutMillis) })
}

// AsyncTransfer starts a transfer and returns immediately; completion
// arrives on the instance callback.
func (i *Instance) AsyncTransfer(cs uint8, tx, rx []byte) error {
	d, err := i.acquire()
	if err != nil {
		return err
	}
	hw, ok := d.HW.(AsyncHW)
	if !ok {
		d.Common.Unlock(&i.inst)
		return status.InfNotExist
	}
	if err := hw.AsyncTransfer(d.Index, cs, tx, rx); err != nil {
		d.Common.Unlock(&i.inst)
		return err
	}
	return nil
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
