package motor

import (
	"fmt"

	"github.com/cjeanneret/GoWinch/internal/angle"
	"github.com/cjeanneret/GoWinch/internal/debug"
	"github.com/cjeanneret/GoWinch/internal/hw/gpio"
)

// DefaultMargin is added to half a pulse to form the dead-band. It absorbs
// rounding in angle conversions.
var DefaultMargin = angle.Degrees(5)

// Deadband returns the error band around a target inside which the motor is
// switched off: half a pulse plus margin.
func Deadband(resolution, margin angle.Angle) angle.Angle {
	return resolution.Div(2).Add(margin)
}

// SelectGear is the bang-bang policy: Off inside the dead-band, CWSlow when
// above target, CCWSlow when below. Fast gears are never chosen here.
func SelectGear(current, target, deadband angle.Angle) Gear {
	if current.Sub(target).Abs().Less(deadband) {
		return Off
	}
	if current.Compare(target) >= 0 {
		return CWSlow
	}
	return CCWSlow
}

// adjustLocked re-evaluates the gear against the target. A gear equal to the
// current one is not re-issued, so the lines and the previous gear are left
// alone while the motor stays in band or keeps its heading. Selecting Off
// marks the seek as settled: coast pulses after arrival move the estimate
// but do not restart the motor until the target or seek mode changes.
//
// Caller holds m.mu.
func (m *Motor) adjustLocked() error {
	g := SelectGear(m.current, m.target, m.deadband)
	debug.Verbose("%s: adjust current=%s target=%s -> %s", m.name, m.current, m.target, g)
	m.settled = g == Off
	if g == m.gear {
		return nil
	}
	return m.setGearLocked(g)
}

// setGearLocked drives the output lines for g and records the transition.
// The previous gear is always saved before the gear field is overwritten.
//
// Caller holds m.mu.
func (m *Motor) setGearLocked(g Gear) error {
	if _, ok := m.rates[g]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGear, g)
	}
	from := m.gear

	if g == Off {
		m.previous = m.gear
		m.gear = Off
		debug.Gear(m.name, from, g)
		if err := m.drv.WritePin(m.pins.Enable, gpio.Low); err != nil {
			return fmt.Errorf("de-energize %s: %w", m.name, err)
		}
		return nil
	}

	// Energize before touching the direction lines.
	if m.gear == Off {
		if err := m.drv.WritePin(m.pins.Enable, gpio.High); err != nil {
			return fmt.Errorf("energize %s: %w", m.name, err)
		}
	}
	a, b := g.lines()
	if err := m.drv.WritePin(m.pins.LineA, a); err != nil {
		return fmt.Errorf("write line A of %s: %w", m.name, err)
	}
	if err := m.drv.WritePin(m.pins.LineB, b); err != nil {
		return fmt.Errorf("write line B of %s: %w", m.name, err)
	}

	m.previous = m.gear
	m.gear = g
	debug.Gear(m.name, from, g)
	return nil
}
