// Package uart is the binding layer between applications and registered
// UART hardware drivers. Hardware ports register a Driver descriptor;
// applications bind an Instance to a descriptor by name and call the
// high-level API, which serialises access through the descriptor's
// single-owner lock.
package uart

import (
	"sync"

	"github.com/sirupsen/logrus"

	"embedcore-go/driver"
	"embedcore-go/status"
	"embedcore-go/x/ilist"
)

var log = logrus.WithField("mod", "uart")

// Completion event codes reported through the instance callback.
const (
	EventTxCmplt uint8 = iota
	EventTxErr
	EventRxCmplt
	EventRxErr
	EventTimeout
)

// Parity selection.
type Parity uint8

const (
	ParityNone Parity = iota
	ParityOdd
	ParityEven
)

// StopBits selection.
type StopBits uint8

const (
	OneStopBit StopBits = iota
	OneAndHalfStopBits
	TwoStopBits
)

// Config is the live port configuration held in the descriptor.
type Config struct {
	Baudrate uint32
	Parity   Parity
	StopBits StopBits
	ByteSize uint8
}

// HWInterface is the contract a hardware UART driver implements. index
// selects the hardware port for descriptors that multiplex several. All
// operations return the shared driver status set.
type HWInterface interface {
	Initialize(index uint8) error
	Deinitialize(index uint8) error
	SyncTransmit(index uint8, tx []byte, timeoutMillis uint32) error
	SyncReceive(index uint8, rx []byte, timeoutMillis uint32) error
	UpdateConfig(index uint8) error
}

// AsyncHW is the optional asynchronous capability. Drivers that do not
// implement it fail async calls with status.InfNotExist.
//
// Asynchronous operations return immediately; the hardware driver reports
// completion through Driver.CompleteAsync, which also releases the
// ownership lock.
type AsyncHW interface {
	AsyncTransmit(index uint8, tx []byte) error
	AsyncReceive(index uint8, rx []byte) error
}

// Driver is one registered UART descriptor.
type Driver struct {
	node ilist.Node[Driver]

	Common driver.Common
	Config Config
	Index  uint8
	HW     HWInterface
}

// CompleteAsync reports an asynchronous completion: it invokes the owning
// instance's callback, then releases the ownership lock. Hardware drivers
// call it exactly once per accepted async operation.
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

// RegisterHWDriver appends a descriptor to the registry. Name uniqueness is
// not enforced; lookup returns the first match.
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
	inst driver.Instance
	drv  *Driver
}

// Register binds the instance to the driver registered under name and
// stores the completion callback. Fails with status.DrvNotFound when no
// such driver exists; the instance is left untouched in that case.
func (i *Instance) Register(name string, cb driver.Callback) error {
	d := findDriver(name)
	if d == nil {
		log.Warnf("driver %q not found", name)
		return status.DrvNotFound
	}
	i.drv = d
	i.inst.Callback = cb
	return nil
}

// Unregister clears the binding.
func (i *Instance) Unregister() {
	i.drv = nil
	i.inst.Callback = nil
}

// acquire runs the shared per-call preamble: bound check, ownership lock.
func (i *Instance) acquire() (*Driver, error) {
	if i.drv == nil {
		return nil, status.DrvNotFound
	}
	if err := i.drv.Common.Lock(&i.inst); err != nil {
		return nil, err
	}
	return i.drv, nil
}

// call wraps a synchronous vtable operation: acquire, dispatch, release.
func (i *Instance) call(op func(d *Driver) error) error {
	d, err := i.acquire()
	if err != nil {
		return err
	}
	defer d.Common.Unlock(&i.inst)
	return op(d)
}

// callAsync dispatches an asynchronous vtable operation. On success the
// driver stays locked until CompleteAsync runs; on failure (including a
// hardware driver without the async capability) the lock is released
// immediately.
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

// Initialize brings the hardware port up.
func (i *Instance) Initialize() error {
	return i.call(func(d *Driver) error { return d.HW.Initialize(d.Index) })
}

// Deinitialize shuts the hardware port down.
func (i *Instance) Deinitialize() error {
	return i.call(func(d *Driver) error { return d.HW.Deinitialize(d.Index) })
}

// AsyncTransmit starts a transmission and returns immediately. Completion
// arrives on the instance callback with EventTxCmplt or EventTxErr.
func (i *Instance) AsyncTransmit(tx []byte) error {
	return i.callAsync(func(d *Driver, hw AsyncHW) error { return hw.AsyncTransmit(d.Index, tx) })
}

// AsyncReceive starts a reception and returns immediately. Completion
// arrives on the instance callback with EventRxCmplt or EventRxErr.
func (i *Instance) AsyncReceive(rx []byte) error {
	return i.callAsync(func(d *Driver, hw AsyncHW) error { return hw.AsyncReceive(d.Index, rx) })
}

// SyncTransmit blocks for up to timeoutMillis.
func (i *Instance) SyncTransmit(tx []byte, timeoutMillis uint32) error {
	return i.call(func(d *Driver) error { return d.HW.SyncTransmit(d.Index, tx, timeoutMillis) })
}

// SyncReceive blocks for up to timeoutMillis.
func (i *Instance) SyncReceive(rx []byte, timeoutMillis uint32) error {
	return i.call(func(d *Driver) error { return d.HW.SyncReceive(d.Index, rx, timeoutMillis) })
}

// GetConfig returns the live configuration record inside the descriptor.
// The pointer is handed out under the ownership lock; treat it as read-only
// once other instances may run.
func (i *Instance) GetConfig() (*Config, error) {
	d, err := i.acquire()
	if err != nil {
		return nil, err
	}
	defer d.Common.Unlock(&i.inst)
	return &d.Config, nil
}

// UpdateConfig asks the hardware to re-apply the descriptor's current
// configuration values.
func (i *Instance) UpdateConfig() error {
	return i.call(func(d *Driver) error { return d.HW.UpdateConfig(d.Index) })
}
