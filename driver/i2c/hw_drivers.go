// hw_drivers.go — HWInterface adapter over a tinygo.org/x/drivers I²C bus.
// Platform code configures the underlying machine bus; this adapter only
// forwards transfers, so Initialize/UpdateConfig are no-ops.
package i2c

import (
	drv "tinygo.org/x/drivers"

	"embedcore-go/status"
)

// DriversHW adapts a drv.I2C bus to the synchronous HWInterface. The
// drivers abstraction has no per-transfer deadline, so timeoutMillis is
// advisory here.
type DriversHW struct {
	Bus drv.I2C
}

func (h *DriversHW) Initialize(uint8) error   { return nil }
func (h *DriversHW) Deinitialize(uint8) error { return nil }
func (h *DriversHW) UpdateConfig(uint8) error { return nil }

func (h *DriversHW) SyncTransmit(_ uint8, addr uint16, tx []byte, _ uint32) error {
	if err := h.Bus.Tx(addr, tx, nil); err != nil {
		return status.ErrGeneric
	}
	return nil
}

func (h *DriversHW) SyncReceive(_ uint8, addr uint16, rx []byte, _ uint32) error {
	if err := h.Bus.Tx(addr, nil, rx); err != nil {
		return status.ErrGeneric
	}
	return nil
}

// Probe issues an empty write; a NACK surfaces as an error from the bus.
func (h *DriversHW) Probe(_ uint8, addr uint16, _ uint32) error {
	if err := h.Bus.Tx(addr, nil, nil); err != nil {
		return status.ErrGeneric
	}
	return nil
}
