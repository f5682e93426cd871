package angle

import (
	"fmt"
	"math"
)

// Unit tags the numeric value given to New or requested from In.
type Unit int

const (
	Deg Unit = iota
	Rad
	Turn
)

func (u Unit) String() string {
	switch u {
	case Deg:
		return "degrees"
	case Rad:
		return "radians"
	case Turn:
		return "turns"
	default:
		return fmt.Sprintf("unit(%d)", int(u))
	}
}

// Angle is a rotational measure stored in degrees.
// It is not wrapped: a winch that has paid out three turns sits at 1080°,
// so ordering stays meaningful across revolutions. Use Normalized for display.
type Angle struct {
	deg float64
}

// Zero is the zero angle.
var Zero = Angle{}

// New builds an angle from a value in the given unit.
func New(v float64, u Unit) Angle {
	switch u {
	case Rad:
		return Angle{v * 180 / math.Pi}
	case Turn:
		return Angle{v * 360}
	default:
		return Angle{v}
	}
}

// Degrees is shorthand for New(v, Deg).
func Degrees(v float64) Angle {
	return Angle{v}
}

func (a Angle) Add(b Angle) Angle {
	return Angle{a.deg + b.deg}
}

func (a Angle) Sub(b Angle) Angle {
	return Angle{a.deg - b.deg}
}

// Div returns a/n.
func (a Angle) Div(n float64) Angle {
	return Angle{a.deg / n}
}

func (a Angle) Abs() Angle {
	return Angle{math.Abs(a.deg)}
}

// Compare returns -1, 0 or +1 if a is less than, equal to or greater than b.
func (a Angle) Compare(b Angle) int {
	switch {
	case a.deg < b.deg:
		return -1
	case a.deg > b.deg:
		return 1
	default:
		return 0
	}
}

func (a Angle) Less(b Angle) bool {
	return a.deg < b.deg
}

// In returns the value of a in unit u.
func (a Angle) In(u Unit) float64 {
	switch u {
	case Rad:
		return a.deg * math.Pi / 180
	case Turn:
		return a.deg / 360
	default:
		return a.deg
	}
}

// Normalized folds a into [0, 360).
func (a Angle) Normalized() Angle {
	d := math.Mod(a.deg, 360)
	if d < 0 {
		d += 360
	}
	return Angle{d}
}

func (a Angle) String() string {
	return fmt.Sprintf("%.2f°", a.deg)
}
