// Package driver holds the pieces shared by every driver binding layer:
// the common descriptor record with its single-owner lock, and the
// per-caller instance handle. Concrete peripheral layers (driver/uart,
// driver/i2c, driver/spi) build their registries and vtables on top.
package driver

import "embedcore-go/status"

// Callback is the per-instance completion callback for asynchronous
// operations: an event code plus two operation-specific parameters.
type Callback func(event uint8, p1, p2 any)

// Common is the driver-side record every descriptor embeds: identity plus
// the 1-token ownership lock. At most one instance owns a driver at any
// moment; operations that cannot acquire the lock fail with status.Busy.
type Common struct {
	Name    string
	Version string

	owner *Instance
}

// Instance binds one caller to a registered driver and carries the caller's
// completion callback. The concrete layers wrap it with typed accessors.
type Instance struct {
	Callback Callback
}

// Lock acquires the descriptor for inst. Re-acquisition by the current
// owner succeeds; any other live owner means status.Busy.
func (c *Common) Lock(inst *Instance) error {
	if inst == nil {
		return status.ArgInvalid
	}
	if c.owner != nil && c.owner != inst {
		return status.Busy
	}
	c.owner = inst
	return nil
}

// Unlock releases the descriptor if inst is the current owner.
func (c *Common) Unlock(inst *Instance) {
	if c.owner == inst {
		c.owner = nil
	}
}

// ForceUnlock releases the descriptor regardless of owner. Hardware layers
// call it from their completion path after the owner's callback has run.
func (c *Common) ForceUnlock() { c.owner = nil }

// Owner returns the instance currently holding the driver, nil when free.
func (c *Common) Owner() *Instance { return c.owner }
