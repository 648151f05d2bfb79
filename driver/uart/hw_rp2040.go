//go:build rp2040

// hw_rp2040.go — UART HWInterface over tinygo-uartx for RP2040 targets.
// Register one descriptor per hardware port; the descriptor index selects
// uartx.UART0 or uartx.UART1.
package uart

import (
	"context"
	"time"

	"machine"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"embedcore-go/driver"
	"embedcore-go/status"
)

// RP2040HW drives the on-chip UARTs. Configure pins before registering.
type RP2040HW struct {
	TXPin, RXPin machine.Pin
	drv          *Driver
}

// NewRP2040Driver builds a ready-to-register descriptor for hardware port
// index (0 or 1).
func NewRP2040Driver(name string, index uint8, cfg Config, tx, rx machine.Pin) *Driver {
	hw := &RP2040HW{TXPin: tx, RXPin: rx}
	d := &Driver{
		Common: driver.Common{Name: name, Version: "1.0.0"},
		Config: cfg,
		Index:  index,
		HW:     hw,
	}
	hw.drv = d
	return d
}

func (h *RP2040HW) port(index uint8) *uartx.UART {
	switch index {
	case 0:
		return uartx.UART0
	case 1:
		return uartx.UART1
	}
	return nil
}

func (h *RP2040HW) Initialize(index uint8) error {
	u := h.port(index)
	if u == nil {
		return status.ArgInvalid
	}
	if err := u.Configure(uartx.UARTConfig{
		BaudRate: h.drv.Config.Baudrate,
		TX:       h.TXPin,
		RX:       h.RXPin,
	}); err != nil {
		return status.ErrGeneric
	}
	return h.UpdateConfig(index)
}

func (h *RP2040HW) Deinitialize(index uint8) error { return nil }

func (h *RP2040HW) UpdateConfig(index uint8) error {
	u := h.port(index)
	if u == nil {
		return status.ArgInvalid
	}
	cfg := h.drv.Config
	u.SetBaudRate(cfg.Baudrate)

	var par uartx.UARTParity
	switch cfg.Parity {
	case ParityEven:
		par = uartx.ParityEven
	case ParityOdd:
		par = uartx.ParityOdd
	default:
		par = uartx.ParityNone
	}
	stop := uint8(1)
	if cfg.StopBits == TwoStopBits {
		stop = 2
	}
	if err := u.SetFormat(cfg.ByteSize, stop, par); err != nil {
		return status.ErrGeneric
	}
	return nil
}

func (h *RP2040HW) SyncTransmit(index uint8, tx []byte, timeoutMillis uint32) error {
	u := h.port(index)
	if u == nil {
		return status.ArgInvalid
	}
	if _, err := u.Write(tx); err != nil {
		return status.ErrGeneric
	}
	return nil
}

func (h *RP2040HW) SyncReceive(index uint8, rx []byte, timeoutMillis uint32) error {
	u := h.port(index)
	if u == nil {
		return status.ArgInvalid
	}
	ctx, cancel := context.WithTimeout(context.Background(),
		time.Duration(timeoutMillis)*time.Millisecond)
	defer cancel()
	got := 0
	for got < len(rx) {
		n, err := u.RecvSomeContext(ctx, rx[got:])
		if err != nil {
			return status.Timeout
		}
		got += n
	}
	return nil
}
