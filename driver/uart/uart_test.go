package uart

import (
	"testing"

	"embedcore-go/driver"
	"embedcore-go/status"
)

// fakeHW records calls and defers async completions until the test fires
// them, standing in for an interrupt-driven port.
type fakeHW struct {
	drv      *Driver
	inits    int
	syncTx   [][]byte
	asyncTx  [][]byte
	updates  int
	failSync bool
}

func (f *fakeHW) Initialize(index uint8) error   { f.inits++; return nil }
func (f *fakeHW) Deinitialize(index uint8) error { return nil }
func (f *fakeHW) SyncTransmit(index uint8, tx []byte, timeoutMillis uint32) error {
	if f.failSync {
		return status.Timeout
	}
	f.syncTx = append(f.syncTx, append([]byte(nil), tx...))
	return nil
}
func (f *fakeHW) SyncReceive(index uint8, rx []byte, timeoutMillis uint32) error { return nil }
func (f *fakeHW) UpdateConfig(index uint8) error                                 { f.updates++; return nil }
func (f *fakeHW) AsyncTransmit(index uint8, tx []byte) error {
	f.asyncTx = append(f.asyncTx, append([]byte(nil), tx...))
	return nil
}
func (f *fakeHW) AsyncReceive(index uint8, rx []byte) error { return nil }

// fireTxComplete simulates the hardware completion interrupt.
func (f *fakeHW) fireTxComplete() { f.drv.CompleteAsync(EventTxCmplt, nil, nil) }

// syncOnlyHW lacks the async capability.
type syncOnlyHW struct{}

func (syncOnlyHW) Initialize(uint8) error                   { return nil }
func (syncOnlyHW) Deinitialize(uint8) error                 { return nil }
func (syncOnlyHW) SyncTransmit(uint8, []byte, uint32) error { return nil }
func (syncOnlyHW) SyncReceive(uint8, []byte, uint32) error  { return nil }
func (syncOnlyHW) UpdateConfig(uint8) error                 { return nil }

func newFakeDriver(t *testing.T, name string) (*Driver, *fakeHW) {
	t.Helper()
	hw := &fakeHW{}
	d := &Driver{
		Common: driver.Common{Name: name, Version: "1.0.0"},
		Config: Config{Baudrate: 115200, ByteSize: 8},
		HW:     hw,
	}
	hw.drv = d
	if err := RegisterHWDriver(d); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { UnregisterHWDriver(d) })
	return d, hw
}

func TestRegistrationMissLeavesInstanceUntouched(t *testing.T) {
	var inst Instance
	err := inst.Register("no-such-port", func(uint8, any, any) {})
	if status.Of(err) != status.DrvNotFound {
		t.Fatalf("err = %v", err)
	}
	if inst.drv != nil || inst.inst.Callback != nil {
		t.Fatal("failed registration mutated the instance")
	}
}

func TestMutualExclusionAcrossAsyncOperation(t *testing.T) {
	d, hw := newFakeDriver(t, "uart0")

	var a, b Instance
	var aEvents []uint8
	if err := a.Register("uart0", func(ev uint8, _, _ any) { aEvents = append(aEvents, ev) }); err != nil {
		t.Fatal(err)
	}
	if err := b.Register("uart0", func(uint8, any, any) {}); err != nil {
		t.Fatal(err)
	}

	if err := a.AsyncTransmit([]byte{1, 2, 3}); err != nil {
		t.Fatalf("a async tx: %v", err)
	}
	// Driver is busy until a's completion fires.
	if err := b.AsyncTransmit([]byte{9}); status.Of(err) != status.Busy {
		t.Fatalf("b during a's op = %v, want busy", err)
	}
	if err := b.SyncTransmit([]byte{9}, 10); status.Of(err) != status.Busy {
		t.Fatalf("b sync during a's op = %v, want busy", err)
	}

	hw.fireTxComplete()
	if len(aEvents) != 1 || aEvents[0] != EventTxCmplt {
		t.Fatalf("a events = %v", aEvents)
	}
	if d.Common.Owner() != nil {
		t.Fatal("driver still owned after completion")
	}
	if err := b.AsyncTransmit([]byte{9}); err != nil {
		t.Fatalf("b after completion: %v", err)
	}
	d.CompleteAsync(EventTxCmplt, nil, nil)
}

func TestSyncOperationReleasesOwnership(t *testing.T) {
	d, hw := newFakeDriver(t, "uart1")

	var a Instance
	if err := a.Register("uart1", nil); err != nil {
		t.Fatal(err)
	}
	if err := a.SyncTransmit([]byte("hi"), 100); err != nil {
		t.Fatal(err)
	}
	if d.Common.Owner() != nil {
		t.Fatal("driver owned after sync op")
	}
	if len(hw.syncTx) != 1 || string(hw.syncTx[0]) != "hi" {
		t.Fatalf("syncTx = %q", hw.syncTx)
	}
}

func TestTimeoutPropagates(t *testing.T) {
	_, hw := newFakeDriver(t, "uart2")
	hw.failSync = true

	var a Instance
	if err := a.Register("uart2", nil); err != nil {
		t.Fatal(err)
	}
	if err := a.SyncTransmit([]byte("x"), 5); status.Of(err) != status.Timeout {
		t.Fatalf("err = %v, want timeout", err)
	}
}

func TestAsyncWithoutCapabilityFails(t *testing.T) {
	d := &Driver{
		Common: driver.Common{Name: "uart-sync-only", Version: "1.0.0"},
		HW:     syncOnlyHW{},
	}
	if err := RegisterHWDriver(d); err != nil {
		t.Fatal(err)
	}
	defer UnregisterHWDriver(d)

	var a Instance
	if err := a.Register("uart-sync-only", nil); err != nil {
		t.Fatal(err)
	}
	if err := a.AsyncTransmit([]byte{1}); status.Of(err) != status.InfNotExist {
		t.Fatalf("err = %v, want inf_not_exist", err)
	}
	if d.Common.Owner() != nil {
		t.Fatal("lock leaked on missing capability")
	}
}

func TestConfigAccess(t *testing.T) {
	_, hw := newFakeDriver(t, "uart3")

	var a Instance
	if err := a.Register("uart3", nil); err != nil {
		t.Fatal(err)
	}
	cfg, err := a.GetConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Baudrate != 115200 {
		t.Fatalf("baud = %d", cfg.Baudrate)
	}
	cfg.Baudrate = 9600
	if err := a.UpdateConfig(); err != nil {
		t.Fatal(err)
	}
	if hw.updates != 1 {
		t.Fatalf("updates = %d", hw.updates)
	}
	cfg2, _ := a.GetConfig()
	if cfg2.Baudrate != 9600 {
		t.Fatalf("live config not shared, baud = %d", cfg2.Baudrate)
	}
}

func TestUnregisterInstance(t *testing.T) {
	newFakeDriver(t, "uart4")
	var a Instance
	if err := a.Register("uart4", nil); err != nil {
		t.Fatal(err)
	}
	a.Unregister()
	if err := a.SyncTransmit([]byte{1}, 1); status.Of(err) != status.DrvNotFound {
		t.Fatalf("err = %v, want drv_not_found", err)
	}
}
