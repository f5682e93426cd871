package motor

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/cjeanneret/GoWinch/internal/angle"
	"github.com/cjeanneret/GoWinch/internal/debug"
	"github.com/cjeanneret/GoWinch/internal/hw/gpio"
)

var (
	ErrInvalidConfig = errors.New("invalid motor config")
	ErrUnknownGear   = errors.New("unknown gear")
	ErrClosed        = errors.New("motor closed")
)

// Pins holds the hardware lines of one motor.
type Pins struct {
	Enable int // HIGH = driving
	LineA  int
	LineB  int
	Pulse  int // encoder input, one rising edge per pulse
}

// Config holds the hardware configuration for a DC motor with a pulse encoder.
type Config struct {
	Name         string
	Pins         Pins
	PulsesPerRev int         // encoder pulses per output-shaft revolution before gearing
	GearRatio    float64     // 0 means 1
	Margin       *angle.Angle // dead-band margin, nil means DefaultMargin
	Rates        Rates       // nil means DefaultRates
}

// Resolution returns the angle travelled per encoder pulse.
func (c Config) Resolution() angle.Angle {
	ratio := c.GearRatio
	if ratio == 0 {
		ratio = 1
	}
	return angle.Degrees(360 / (float64(c.PulsesPerRev) * ratio))
}

// Validate checks the configuration as New would, without touching hardware.
// Nil Margin and nil Rates are accepted; New replaces them with defaults.
func (c Config) Validate() error {
	if c.PulsesPerRev <= 0 {
		return fmt.Errorf("%w: pulses per revolution must be > 0, got %d", ErrInvalidConfig, c.PulsesPerRev)
	}
	if c.GearRatio < 0 || math.IsNaN(c.GearRatio) || math.IsInf(c.GearRatio, 0) {
		return fmt.Errorf("%w: gear ratio must be > 0, got %g", ErrInvalidConfig, c.GearRatio)
	}
	if res := c.Resolution().In(angle.Deg); !(res > 0) || math.IsInf(res, 0) {
		return fmt.Errorf("%w: pulse resolution must be > 0, got %g", ErrInvalidConfig, res)
	}
	if c.Margin != nil && c.Margin.Less(angle.Zero) {
		return fmt.Errorf("%w: margin must be >= 0, got %s", ErrInvalidConfig, *c.Margin)
	}
	seen := map[int]string{}
	for name, pin := range map[string]int{
		"enable": c.Pins.Enable, "A": c.Pins.LineA, "B": c.Pins.LineB, "pulse": c.Pins.Pulse,
	} {
		if other, dup := seen[pin]; dup {
			return fmt.Errorf("%w: pin %d used for both %s and %s", ErrInvalidConfig, pin, other, name)
		}
		seen[pin] = name
	}
	if c.Rates != nil {
		if err := c.Rates.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return nil
}

// Motor drives a brushed DC motor toward a target angle.
//
// The angle estimate advances one resolution step per encoder pulse. Pulses
// arrive on the GPIO driver's goroutine and commands on the caller's, so a
// single mutex covers the angle, target, seek flag and both gear fields for
// every update.
type Motor struct {
	name       string
	pins       Pins
	drv        gpio.Driver
	resolution angle.Angle
	deadband   angle.Angle
	rates      Rates
	faults     chan error

	mu       sync.Mutex
	current  angle.Angle
	target   angle.Angle
	seek     bool
	settled  bool // seek reached the dead-band; pulses no longer re-adjust
	gear     Gear
	previous Gear
	lost     uint64
	closed   bool

	watch     gpio.Watcher
	closeOnce sync.Once
	closeErr  error
}

// New configures the motor pins, leaves the motor de-energized and starts
// listening for encoder pulses.
func New(drv gpio.Driver, cfg Config) (*Motor, error) {
	if cfg.Rates == nil {
		cfg.Rates = DefaultRates()
	}
	margin := DefaultMargin
	if cfg.Margin != nil {
		margin = *cfg.Margin
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	rates := make(Rates, len(cfg.Rates))
	for g, r := range cfg.Rates {
		rates[g] = r
	}
	m := &Motor{
		name:       cfg.Name,
		pins:       cfg.Pins,
		drv:        drv,
		resolution: cfg.Resolution(),
		deadband:   Deadband(cfg.Resolution(), margin),
		rates:      rates,
		faults:     make(chan error, 1),
		gear:       Off,
		previous:   Off,
	}

	for _, pin := range []int{cfg.Pins.Enable, cfg.Pins.LineA, cfg.Pins.LineB} {
		if err := drv.SetupPin(pin, gpio.Output); err != nil {
			m.deenergize()
			return nil, fmt.Errorf("setup pin %d: %w", pin, err)
		}
	}
	if err := drv.WritePin(cfg.Pins.Enable, gpio.Low); err != nil {
		return nil, fmt.Errorf("de-energize %s: %w", cfg.Name, err)
	}

	w, err := drv.WatchRisingEdge(cfg.Pins.Pulse, m.OnPulse)
	if err != nil {
		m.deenergize()
		return nil, fmt.Errorf("watch pulse pin %d: %w", cfg.Pins.Pulse, err)
	}
	m.watch = w

	debug.Info("%s: ready (resolution=%s, dead-band=%s)", m.name, m.resolution, m.deadband)
	return m, nil
}

// OnPulse handles one encoder pulse: the angle estimate is advanced and, in
// seek mode, the gear is re-evaluated. It is the pulse watcher's handler.
func (m *Motor) OnPulse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}

	m.advance()
	if !m.seek || m.settled {
		return
	}
	if err := m.adjustLocked(); err != nil {
		m.faultLocked(err)
	}
}

// Adjust re-evaluates the gear against the current target once.
func (m *Motor) Adjust() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.adjustLocked()
}

// SetGear drives the motor in gear g directly (open loop). Seek mode, if
// enabled, is left on and will override g on the next pulse.
func (m *Motor) SetGear(g Gear) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.setGearLocked(g)
}

// SetTarget changes the target angle without touching seek mode. The gear
// is re-evaluated on the next pulse; a motor at rest needs GoTo or
// EnableSeek to start.
func (m *Motor) SetTarget(a angle.Angle) {
	m.mu.Lock()
	m.target = a
	m.settled = false
	m.mu.Unlock()
}

// EnableSeek turns seek mode on and adjusts once, so a stopped motor starts
// moving (a motor at rest produces no pulses to react to).
func (m *Motor) EnableSeek() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.seek = true
	return m.adjustLocked()
}

// GoTo sets the target and enables seek mode in one step.
func (m *Motor) GoTo(a angle.Angle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.target = a
	m.seek = true
	return m.adjustLocked()
}

// DisableSeek stops gear re-evaluation on pulses. The motor keeps its
// current gear; use SetGear(Off) to stop it.
func (m *Motor) DisableSeek() {
	m.mu.Lock()
	m.seek = false
	m.mu.Unlock()
}

// ResetAngle overwrites the angle estimate, e.g. after homing. The settled
// latch is cleared since the new estimate may lie outside the dead-band; a
// motor at rest needs GoTo or EnableSeek to resume seeking.
func (m *Motor) ResetAngle(a angle.Angle) {
	m.mu.Lock()
	m.current = a
	m.settled = false
	m.mu.Unlock()
}

// State is a consistent snapshot of the motor.
type State struct {
	Name       string
	Angle      angle.Angle
	Target     angle.Angle
	Seeking    bool
	Settled    bool
	Gear       Gear
	Previous   Gear
	LostPulses uint64
	Resolution angle.Angle
	Deadband   angle.Angle
}

func (m *Motor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return State{
		Name:       m.name,
		Angle:      m.current,
		Target:     m.target,
		Seeking:    m.seek,
		Settled:    m.settled,
		Gear:       m.gear,
		Previous:   m.previous,
		LostPulses: m.lost,
		Resolution: m.resolution,
		Deadband:   m.deadband,
	}
}

func (m *Motor) Name() string { return m.name }

// Angle returns the current angle estimate.
func (m *Motor) Angle() angle.Angle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *Motor) Gear() Gear {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gear
}

// Faults delivers I/O errors raised while handling pulses. The motor has
// already been switched off when a fault is delivered.
func (m *Motor) Faults() <-chan error {
	return m.faults
}

// faultLocked stops seeking, tries to leave the motor de-energized and
// reports err. Caller holds m.mu.
func (m *Motor) faultLocked(err error) {
	debug.Error(fmt.Errorf("%s: %w", m.name, err))
	m.seek = false
	if m.gear != Off {
		m.previous = m.gear
		m.gear = Off
	}
	m.deenergize()
	select {
	case m.faults <- err:
	default:
	}
}

func (m *Motor) deenergize() {
	if err := m.drv.WritePin(m.pins.Enable, gpio.Low); err != nil {
		debug.Error(fmt.Errorf("%s: de-energize: %w", m.name, err))
	}
}

// Close switches the motor off and stops listening for pulses. It is safe
// to call more than once; only the first call acts.
func (m *Motor) Close() error {
	m.closeOnce.Do(func() {
		m.mu.Lock()
		m.seek = false
		var errs []error
		if err := m.setGearLocked(Off); err != nil {
			errs = append(errs, err)
		}
		m.closed = true
		m.mu.Unlock()

		// The watcher may be waiting on m.mu inside OnPulse; stop it unlocked.
		if m.watch != nil {
			if err := m.watch.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("stop pulse watch: %w", err))
			}
		}
		m.closeErr = errors.Join(errs...)
		debug.Info("%s: closed", m.name)
	})
	return m.closeErr
}
