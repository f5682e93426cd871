package gpio

import (
	"testing"
)

func TestNewDriver_Mock(t *testing.T) {
	d, err := NewDriver(Options{Kind: KindMock})
	if err != nil {
		t.Fatalf("NewDriver(mock): %v", err)
	}
	if _, ok := d.(*MockDriver); !ok {
		t.Errorf("NewDriver(mock) returned %T, want *MockDriver", d)
	}
}

func TestNewDriver_UnknownKind(t *testing.T) {
	if _, err := NewDriver(Options{Kind: "bogus"}); err == nil {
		t.Error("expected error for unknown driver kind, got nil")
	}
}

func TestMockDriver_WriteThenRead(t *testing.T) {
	m := NewMockDriver()
	if got := m.Level(19); got != Low {
		t.Errorf("unwritten pin = %v, want Low", got)
	}
	if err := m.WritePin(19, High); err != nil {
		t.Fatalf("WritePin: %v", err)
	}
	lvl, err := m.ReadPin(19)
	if err != nil {
		t.Fatalf("ReadPin: %v", err)
	}
	if lvl != High {
		t.Errorf("ReadPin = %v, want High", lvl)
	}
}

func TestMockDriver_FireCallsWatchers(t *testing.T) {
	m := NewMockDriver()
	count := 0
	w, err := m.WatchRisingEdge(11, func() { count++ })
	if err != nil {
		t.Fatalf("WatchRisingEdge: %v", err)
	}

	if n := m.Fire(11); n != 1 {
		t.Errorf("Fire returned %d handlers, want 1", n)
	}
	m.Fire(11)
	if count != 2 {
		t.Errorf("handler called %d times, want 2", count)
	}

	// Other pins are independent.
	if n := m.Fire(12); n != 0 {
		t.Errorf("Fire on unwatched pin returned %d, want 0", n)
	}

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	m.Fire(11)
	if count != 2 {
		t.Errorf("handler called after Stop, count = %d", count)
	}
}

func TestMockDriver_HandlerMayWritePins(t *testing.T) {
	m := NewMockDriver()
	_, err := m.WatchRisingEdge(11, func() {
		// Handlers run outside the driver lock.
		_ = m.WritePin(19, High)
	})
	if err != nil {
		t.Fatalf("WatchRisingEdge: %v", err)
	}
	m.Fire(11)
	if m.Level(19) != High {
		t.Error("write from handler was not recorded")
	}
}

func TestMockDriver_CloseDropsWatchers(t *testing.T) {
	m := NewMockDriver()
	called := false
	if _, err := m.WatchRisingEdge(11, func() { called = true }); err != nil {
		t.Fatalf("WatchRisingEdge: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	m.Fire(11)
	if called {
		t.Error("handler called after Close")
	}
	if _, err := m.WatchRisingEdge(11, func() {}); err == nil {
		t.Error("expected error watching on a closed driver")
	}
}
