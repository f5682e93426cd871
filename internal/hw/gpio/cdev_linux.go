//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"time"

	"github.com/cjeanneret/GoWinch/internal/debug"
	"github.com/warthog618/go-gpiocdev"
)

const consumer = "gowinch"

// CdevDriver drives lines through the Linux GPIO character device.
// Each pin is requested as its own line; a pin watched for edges is
// re-requested as an input with an event handler.
type CdevDriver struct {
	chip     string
	debounce time.Duration

	mu    sync.Mutex
	lines map[int]*gpiocdev.Line
}

type cdevWatch struct {
	d    *CdevDriver
	pin  int
	line *gpiocdev.Line
	once sync.Once
}

// NewCdevDriver creates a driver on chip (default "gpiochip0").
func NewCdevDriver(chip string, debounce time.Duration) (*CdevDriver, error) {
	if chip == "" {
		chip = "gpiochip0"
	}
	debug.Info("Initializing GPIO character device driver (%s)", chip)

	c, err := gpiocdev.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", chip, err)
	}
	debug.Verbose("GPIO chip %s has %d lines", chip, c.Lines())
	c.Close()

	return &CdevDriver{
		chip:     chip,
		debounce: debounce,
		lines:    make(map[int]*gpiocdev.Line),
	}, nil
}

func (d *CdevDriver) SetupPin(pin int, mode PinMode) error {
	debug.GPIO("SetupPin", pin, mode)
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setupLocked(pin, mode)
}

func (d *CdevDriver) setupLocked(pin int, mode PinMode) error {
	if l, ok := d.lines[pin]; ok {
		l.Close()
		delete(d.lines, pin)
	}

	var opt gpiocdev.LineReqOption
	switch mode {
	case Input:
		opt = gpiocdev.AsInput
	case Output:
		opt = gpiocdev.AsOutput(0)
	default:
		return fmt.Errorf("unknown pin mode: %d", mode)
	}

	l, err := gpiocdev.RequestLine(d.chip, pin, opt, gpiocdev.WithConsumer(consumer))
	if err != nil {
		return fmt.Errorf("request line %d: %w", pin, err)
	}
	d.lines[pin] = l
	return nil
}

func (d *CdevDriver) WritePin(pin int, level Level) error {
	debug.GPIO("WritePin", pin, level)
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.lines[pin]
	if !ok {
		if err := d.setupLocked(pin, Output); err != nil {
			return err
		}
		l = d.lines[pin]
	}

	v := 0
	if level == High {
		v = 1
	}
	if err := l.SetValue(v); err != nil {
		return fmt.Errorf("write line %d: %w", pin, err)
	}
	return nil
}

func (d *CdevDriver) ReadPin(pin int) (Level, error) {
	debug.GPIO("ReadPin", pin, nil)
	d.mu.Lock()
	defer d.mu.Unlock()

	l, ok := d.lines[pin]
	if !ok {
		if err := d.setupLocked(pin, Input); err != nil {
			return Low, err
		}
		l = d.lines[pin]
	}

	v, err := l.Value()
	if err != nil {
		return Low, fmt.Errorf("read line %d: %w", pin, err)
	}
	return v == 1, nil
}

func (d *CdevDriver) WatchRisingEdge(pin int, h EdgeHandler) (Watcher, error) {
	debug.GPIO("WatchRisingEdge", pin, nil)
	d.mu.Lock()
	defer d.mu.Unlock()

	if l, ok := d.lines[pin]; ok {
		l.Close()
		delete(d.lines, pin)
	}

	opts := []gpiocdev.LineReqOption{
		gpiocdev.AsInput,
		gpiocdev.WithConsumer(consumer),
		gpiocdev.WithRisingEdge,
		gpiocdev.WithEventHandler(func(evt gpiocdev.LineEvent) {
			if evt.Type == gpiocdev.LineEventRisingEdge {
				h()
			}
		}),
	}
	if d.debounce > 0 {
		opts = append(opts, gpiocdev.WithDebounce(d.debounce))
	}

	l, err := gpiocdev.RequestLine(d.chip, pin, opts...)
	if err != nil {
		return nil, fmt.Errorf("request edge line %d: %w", pin, err)
	}
	d.lines[pin] = l
	return &cdevWatch{d: d, pin: pin, line: l}, nil
}

func (w *cdevWatch) Stop() error {
	var err error
	w.once.Do(func() {
		w.d.mu.Lock()
		if w.d.lines[w.pin] == w.line {
			delete(w.d.lines, w.pin)
		}
		w.d.mu.Unlock()
		err = w.line.Close()
	})
	return err
}

func (d *CdevDriver) Close() error {
	debug.Trace("GPIO Close (cdev driver)")
	d.mu.Lock()
	lines := d.lines
	d.lines = make(map[int]*gpiocdev.Line)
	d.mu.Unlock()

	// Closed unlocked: an edge handler still running may need d.mu.
	var firstErr error
	for pin, l := range lines {
		debug.Verbose("Releasing line %d", pin)
		// Leave inputs floating rather than holding the last output level.
		_ = l.Reconfigure(gpiocdev.AsInput)
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
