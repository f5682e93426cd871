package geometry

import (
	"fmt"
	"math"

	"github.com/cjeanneret/GoWinch/internal/angle"
)

// Drum converts between cable length paid out and winch drum angle.
// The cable is assumed to wind in a single layer, so one turn of the drum
// moves one circumference of cable.
type Drum struct {
	diameterMm      float64
	circumferenceMm float64
}

// NewDrum creates a drum of the given diameter (mm, cable centre to centre).
func NewDrum(diameterMm float64) (*Drum, error) {
	if math.IsNaN(diameterMm) || math.IsInf(diameterMm, 0) || diameterMm <= 0 {
		return nil, fmt.Errorf("drum diameter must be > 0, got %g", diameterMm)
	}
	return &Drum{
		diameterMm:      diameterMm,
		circumferenceMm: math.Pi * diameterMm,
	}, nil
}

// DiameterMm returns the drum diameter.
func (d *Drum) DiameterMm() float64 {
	return d.diameterMm
}

// AngleForLength converts a cable length (mm) to a drum angle.
// Positive lengths map to positive (CCW) angles.
func (d *Drum) AngleForLength(lengthMm float64) angle.Angle {
	return angle.New(lengthMm/d.circumferenceMm, angle.Turn)
}

// LengthForAngle converts a drum angle to cable length (mm).
func (d *Drum) LengthForAngle(a angle.Angle) float64 {
	return a.In(angle.Turn) * d.circumferenceMm
}

// LengthPerPulse returns the cable travel for one encoder pulse, i.e. the
// finest length the winch can resolve.
func (d *Drum) LengthPerPulse(resolution angle.Angle) float64 {
	return d.LengthForAngle(resolution)
}
