package sim

import (
	"context"
	"time"

	"github.com/cjeanneret/GoWinch/internal/debug"
	"github.com/cjeanneret/GoWinch/internal/hw/gpio"
)

// Encoder fakes a motor's pulse encoder on a MockDriver: while the enable
// line is HIGH it fires one rising edge on the pulse pin per Interval.
type Encoder struct {
	Driver    *gpio.MockDriver
	EnablePin int
	PulsePin  int
	Interval  time.Duration
	// Coast fires one extra pulse right after the motor is switched off,
	// like a real motor carried on by its momentum.
	Coast bool
}

// Run generates pulses until ctx is cancelled.
func (e *Encoder) Run(ctx context.Context) {
	interval := e.Interval
	if interval <= 0 {
		interval = 200 * time.Millisecond
	}
	debug.Info("Simulated encoder on pin %d (every %v while pin %d is HIGH)", e.PulsePin, interval, e.EnablePin)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	wasOn := false
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(&wasOn)
		}
	}
}

func (e *Encoder) tick(wasOn *bool) {
	on := e.Driver.Level(e.EnablePin) == gpio.High
	switch {
	case on:
		e.Driver.Fire(e.PulsePin)
	case *wasOn && e.Coast:
		debug.Trace("Simulated coast pulse on pin %d", e.PulsePin)
		e.Driver.Fire(e.PulsePin)
	}
	*wasOn = on
}
