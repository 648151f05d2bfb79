// hw_drivers.go — HWInterface adapter over a tinygo.org/x/drivers SPI bus.
// Chip-select is handled by the platform (single-device buses); cs is
// ignored here.
package spi

import (
	drv "tinygo.org/x/drivers"

	"embedcore-go/status"
)

// DriversHW adapts a drv.SPI bus to the synchronous HWInterface.
type DriversHW struct {
	Bus drv.SPI
}

func (h *DriversHW) Initialize(uint8) error   { return nil }
func (h *DriversHW) Deinitialize(uint8) error { return nil }
func (h *DriversHW) UpdateConfig(uint8) error { return nil }

func (h *DriversHW) SyncTransfer(_ uint8, _ uint8, tx, rx []byte, _ uint32) error {
	if err := h.Bus.Tx(tx, rx); err != nil {
		return status.ErrGeneric
	}
	return nil
}
