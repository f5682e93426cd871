package motor

import (
	"github.com/cjeanneret/GoWinch/internal/debug"
)

// advance applies one encoder pulse to the angle estimate, signed by the
// active gear's rate. A pulse while Off means the motor is coasting; the
// direction is taken from the previous gear. With no previous gear either
// the delta is unknown and the pulse is dropped.
//
// Caller holds m.mu.
func (m *Motor) advance() {
	dir := m.rates.sign(m.gear)
	if dir == 0 {
		debug.Warn("%s: pulse received while off; inferring direction from last gear (%s)", m.name, m.previous)
		dir = m.rates.sign(m.previous)
	}
	if dir == 0 {
		m.lost++
		debug.Warn("%s: pulse with no known direction discarded (lost=%d)", m.name, m.lost)
		return
	}

	if dir > 0 {
		m.current = m.current.Add(m.resolution)
	} else {
		m.current = m.current.Sub(m.resolution)
	}
	debug.Pulse(m.name, m.current)
}
