package winch

import (
	"errors"
	"fmt"
	"math"

	"github.com/cjeanneret/GoWinch/internal/angle"
	"github.com/cjeanneret/GoWinch/internal/debug"
	"github.com/cjeanneret/GoWinch/internal/hw/motor"
	"github.com/cjeanneret/GoWinch/internal/logic/geometry"
)

var (
	ErrNoDrum      = errors.New("no drum configured")
	ErrInvalidArgs = errors.New("invalid argument")
)

// Controller is the command surface of a winch. It sits between the
// transports (web, MQTT, CLI flags) and the motor, translating user units
// into motor angles.
type Controller struct {
	motor *motor.Motor
	drum  *geometry.Drum // nil when lengths are not supported
}

func NewController(m *motor.Motor, drum *geometry.Drum) *Controller {
	return &Controller{
		motor: m,
		drum:  drum,
	}
}

// GoTo seeks the drum to an absolute angle in degrees.
func (c *Controller) GoTo(deg float64) error {
	if err := finite("angle", deg); err != nil {
		return err
	}
	debug.Live("%s: go to %.2f°", c.motor.Name(), deg)
	return c.motor.GoTo(angle.Degrees(deg))
}

// GoToLength seeks to the angle at which lengthMm of cable is paid out.
func (c *Controller) GoToLength(lengthMm float64) error {
	if c.drum == nil {
		return ErrNoDrum
	}
	if err := finite("length", lengthMm); err != nil {
		return err
	}
	target := c.drum.AngleForLength(lengthMm)
	debug.Live("%s: go to %.1f mm (%s)", c.motor.Name(), lengthMm, target)
	return c.motor.GoTo(target)
}

func (c *Controller) EnableSeek() error {
	return c.motor.EnableSeek()
}

// DisableSeek stops closed-loop control but leaves the motor in its gear.
func (c *Controller) DisableSeek() {
	c.motor.DisableSeek()
}

// Drive puts the motor in the named gear, open loop. Seek mode is disabled
// first so the next pulse does not override the choice.
func (c *Controller) Drive(name string) error {
	g, err := motor.ParseGear(name)
	if err != nil {
		return err
	}
	c.motor.DisableSeek()
	return c.motor.SetGear(g)
}

// Stop disables seek mode and switches the motor off.
func (c *Controller) Stop() error {
	c.motor.DisableSeek()
	return c.motor.SetGear(motor.Off)
}

// ResetAngle declares the current drum position to be deg.
func (c *Controller) ResetAngle(deg float64) error {
	if err := finite("angle", deg); err != nil {
		return err
	}
	c.motor.ResetAngle(angle.Degrees(deg))
	debug.Info("%s: angle reset to %.2f°", c.motor.Name(), deg)
	return nil
}

// Status is the report published to clients.
type Status struct {
	Name       string   `json:"name"`
	AngleDeg   float64  `json:"angle_deg"`
	TargetDeg  float64  `json:"target_deg"`
	Seeking    bool     `json:"seeking"`
	Settled    bool     `json:"settled"`
	Gear       string   `json:"gear"`
	LostPulses uint64   `json:"lost_pulses"`
	PayoutMm   *float64 `json:"payout_mm,omitempty"`
	TargetMm   *float64 `json:"target_mm,omitempty"`
}

func (c *Controller) Status() Status {
	st := c.motor.State()
	s := Status{
		Name:       st.Name,
		AngleDeg:   st.Angle.In(angle.Deg),
		TargetDeg:  st.Target.In(angle.Deg),
		Seeking:    st.Seeking,
		Settled:    st.Settled,
		Gear:       st.Gear.String(),
		LostPulses: st.LostPulses,
	}
	if c.drum != nil {
		payout := c.drum.LengthForAngle(st.Angle)
		target := c.drum.LengthForAngle(st.Target)
		s.PayoutMm = &payout
		s.TargetMm = &target
	}
	return s
}

func finite(what string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number, got %v", ErrInvalidArgs, what, v)
	}
	return nil
}
