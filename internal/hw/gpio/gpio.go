package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/GoWinch/internal/debug"
)

// Level represents the logical state of a GPIO pin.
type Level bool

const (
	Low  Level = false
	High Level = true
)

// PinMode indicates whether a GPIO is input or output.
type PinMode int

const (
	Input PinMode = iota
	Output
)

// EdgeHandler is called once per detected rising edge.
// It runs on the driver's own goroutine, never on the caller's.
type EdgeHandler func()

// Watcher is an active edge registration.
type Watcher interface {
	Stop() error
}

// Driver defines the abstract interface for controlling GPIOs.
// This allows plugging in a real Raspberry Pi implementation
// or a mock for development on PC.
type Driver interface {
	SetupPin(pin int, mode PinMode) error
	WritePin(pin int, level Level) error
	ReadPin(pin int) (Level, error)
	// WatchRisingEdge configures pin as an input and calls h on every
	// rising edge until the returned Watcher is stopped.
	WatchRisingEdge(pin int, h EdgeHandler) (Watcher, error)
	Close() error
}

// Driver kinds accepted by NewDriver.
const (
	KindMock = "mock"
	KindRPi  = "rpio"
	KindCdev = "cdev"
)

// Options selects and tunes a driver.
type Options struct {
	Kind     string        // mock, rpio or cdev
	Chip     string        // gpiochip name for cdev, e.g. "gpiochip0"
	Debounce time.Duration // edge debounce period for cdev, 0 = none
}

// NewDriver creates a GPIO driver based on the chosen kind.
// mock is for dev/test, rpio maps /dev/gpiomem (go-rpio) and cdev uses the
// Linux GPIO character device (go-gpiocdev).
func NewDriver(opts Options) (Driver, error) {
	switch opts.Kind {
	case KindMock:
		debug.Info("Using MOCK GPIO driver (development mode)")
		return NewMockDriver(), nil
	case KindRPi, "":
		d, err := NewRPiRealDriver()
		if err != nil {
			return nil, err
		}
		return d, nil
	case KindCdev:
		d, err := NewCdevDriver(opts.Chip, opts.Debounce)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, fmt.Errorf("unknown gpio driver: %q", opts.Kind)
	}
}

// MockDriver is an in-memory implementation that logs actions and keeps
// pin levels. Fire simulates a rising edge on a watched input.
// Used for development on PC or testing.
type MockDriver struct {
	mu       sync.Mutex
	levels   map[int]Level
	handlers map[int]map[*mockWatch]EdgeHandler
	closed   bool
}

type mockWatch struct {
	d   *MockDriver
	pin int
}

func NewMockDriver() *MockDriver {
	return &MockDriver{
		levels:   make(map[int]Level),
		handlers: make(map[int]map[*mockWatch]EdgeHandler),
	}
}

func (m *MockDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	return nil
}

func (m *MockDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	m.mu.Lock()
	m.levels[pin] = level
	m.mu.Unlock()
	return nil
}

func (m *MockDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	return m.Level(pin), nil
}

func (m *MockDriver) WatchRisingEdge(pin int, h EdgeHandler) (Watcher, error) {
	debug.GPIO("WatchRisingEdge", pin, nil)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, fmt.Errorf("gpio: driver closed")
	}
	w := &mockWatch{d: m, pin: pin}
	if m.handlers[pin] == nil {
		m.handlers[pin] = make(map[*mockWatch]EdgeHandler)
	}
	m.handlers[pin][w] = h
	return w, nil
}

func (w *mockWatch) Stop() error {
	w.d.mu.Lock()
	delete(w.d.handlers[w.pin], w)
	w.d.mu.Unlock()
	return nil
}

// Level returns the last level written to pin (Low if never written).
func (m *MockDriver) Level(pin int) Level {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.levels[pin]
}

// Fire delivers one rising edge on pin to every active watcher.
// It returns the number of handlers called.
func (m *MockDriver) Fire(pin int) int {
	m.mu.Lock()
	hs := make([]EdgeHandler, 0, len(m.handlers[pin]))
	for _, h := range m.handlers[pin] {
		hs = append(hs, h)
	}
	m.mu.Unlock()

	debug.GPIO("Fire", pin, len(hs))
	for _, h := range hs {
		h()
	}
	return len(hs)
}

func (m *MockDriver) Close() error {
	debug.Trace("GPIO Close (mock)")
	m.mu.Lock()
	m.closed = true
	m.handlers = make(map[int]map[*mockWatch]EdgeHandler)
	m.mu.Unlock()
	return nil
}
