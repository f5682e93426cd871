package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/GoWinch/internal/debug"
	"github.com/stianeikeland/go-rpio/v4"
)

// edgePollInterval is how often the edge-detect status register is read.
// go-rpio latches the edge in hardware, so one edge per interval is kept.
const edgePollInterval = 500 * time.Microsecond

// RPiDriver is the real implementation for Raspberry Pi using go-rpio.
type RPiDriver struct {
	mu       sync.Mutex
	pins     map[int]rpio.Pin
	watchers map[*rpiWatch]struct{}
}

type rpiWatch struct {
	r    *RPiDriver
	pin  rpio.Pin
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewRPiRealDriver creates a real GPIO driver for Raspberry Pi.
// Requires running on a Raspberry Pi with access to /dev/gpiomem or as root.
func NewRPiRealDriver() (*RPiDriver, error) {
	debug.Info("Initializing real GPIO driver (go-rpio)")

	if err := rpio.Open(); err != nil {
		return nil, fmt.Errorf("failed to open GPIO: %w (are you running on a Raspberry Pi?)", err)
	}

	debug.Verbose("GPIO memory mapped successfully")

	return &RPiDriver{
		pins:     make(map[int]rpio.Pin),
		watchers: make(map[*rpiWatch]struct{}),
	}, nil
}

func (r *RPiDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setupLocked(pin, mode)
}

func (r *RPiDriver) setupLocked(pin int, mode PinMode) error {
	p := rpio.Pin(pin)

	switch mode {
	case Input:
		p.Input()
	case Output:
		p.Output()
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	r.pins[pin] = p
	return nil
}

func (r *RPiDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as output
		if err := r.setupLocked(pin, Output); err != nil {
			return err
		}
		p = r.pins[pin]
	}

	if level == High {
		p.High()
	} else {
		p.Low()
	}

	return nil
}

func (r *RPiDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.pins[pin]
	if !ok {
		// Pin not setup yet, setup as input
		if err := r.setupLocked(pin, Input); err != nil {
			return Low, err
		}
		p = r.pins[pin]
	}

	if p.Read() == rpio.High {
		return High, nil
	}
	return Low, nil
}

// WatchRisingEdge enables the BCM rising-edge detector on pin and polls the
// event status register from a goroutine.
func (r *RPiDriver) WatchRisingEdge(pin int, h EdgeHandler) (Watcher, error) {
	debug.GPIO("WatchRisingEdge", pin, nil)
	r.mu.Lock()
	if err := r.setupLocked(pin, Input); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	p := r.pins[pin]
	p.Detect(rpio.RiseEdge)
	w := &rpiWatch{
		r:    r,
		pin:  p,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	r.watchers[w] = struct{}{}
	r.mu.Unlock()

	go w.poll(h)
	return w, nil
}

func (w *rpiWatch) poll(h EdgeHandler) {
	defer close(w.done)
	ticker := time.NewTicker(edgePollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			w.r.mu.Lock()
			hit := w.pin.EdgeDetected()
			w.r.mu.Unlock()
			if hit {
				h()
			}
		}
	}
}

func (w *rpiWatch) Stop() error {
	w.once.Do(func() {
		close(w.stop)
		<-w.done
		w.r.mu.Lock()
		w.pin.Detect(rpio.NoEdge)
		delete(w.r.watchers, w)
		w.r.mu.Unlock()
	})
	return nil
}

func (r *RPiDriver) Close() error {
	debug.Trace("GPIO Close (real driver)")

	r.mu.Lock()
	ws := make([]*rpiWatch, 0, len(r.watchers))
	for w := range r.watchers {
		ws = append(ws, w)
	}
	r.mu.Unlock()
	for _, w := range ws {
		_ = w.Stop()
	}

	// Reset all pins to input (safe state)
	r.mu.Lock()
	for pin, p := range r.pins {
		debug.Verbose("Resetting pin %d to input", pin)
		p.Input()
	}
	r.mu.Unlock()

	return rpio.Close()
}
