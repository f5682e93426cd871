package motor

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cjeanneret/GoWinch/internal/hw/gpio"
)

// Gear selects direction and speed of the drive stage.
type Gear int

const (
	Off Gear = iota
	CWSlow
	CCWSlow
	CWFast
	CCWFast
)

// Gears lists every gear in table order.
var Gears = []Gear{Off, CWSlow, CCWSlow, CWFast, CCWFast}

var gearNames = map[Gear]string{
	Off:     "off",
	CWSlow:  "cw_slow",
	CCWSlow: "ccw_slow",
	CWFast:  "cw_fast",
	CCWFast: "ccw_fast",
}

func (g Gear) String() string {
	if s, ok := gearNames[g]; ok {
		return s
	}
	return fmt.Sprintf("gear(%d)", int(g))
}

// ParseGear accepts a gear name ("cw_slow") or its number ("1").
func ParseGear(s string) (Gear, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for g, name := range gearNames {
		if s == name {
			return g, nil
		}
	}
	n, err := strconv.Atoi(s)
	if err == nil {
		if _, ok := gearNames[Gear(n)]; ok {
			return Gear(n), nil
		}
	}
	return Off, fmt.Errorf("%w: %q", ErrUnknownGear, s)
}

// lines returns the A/B direction levels for a driving gear:
// bit0 of g-1 on line A, bit1 on line B.
// CWSlow=00, CCWSlow=10, CWFast=01, CCWFast=11 (A,B).
func (g Gear) lines() (a, b gpio.Level) {
	code := int(g) - 1
	return code&1 == 1, code>>1&1 == 1
}

// Rates maps a gear to its signed rate in revolutions per minute.
// Only the sign is used for angle tracking: positive turns the angle up
// (CCW), negative turns it down (CW).
type Rates map[Gear]float64

// DefaultRates is the winch's rate table.
func DefaultRates() Rates {
	return Rates{
		Off:     0,
		CWSlow:  -100,
		CCWSlow: 100,
		CWFast:  -4000,
		CCWFast: 4000,
	}
}

func (r Rates) validate() error {
	for _, g := range Gears {
		rate, ok := r[g]
		if !ok {
			return fmt.Errorf("no rate for gear %s", g)
		}
		if g == Off && rate != 0 {
			return fmt.Errorf("gear off must have rate 0, got %g", rate)
		}
		if want := g.direction(); want != 0 && r.sign(g) != want {
			return fmt.Errorf("gear %s must have a %s rate, got %g", g, signName(want), rate)
		}
	}
	for g := range r {
		if _, ok := gearNames[g]; !ok {
			return fmt.Errorf("rate given for unknown %s", g)
		}
	}
	return nil
}

// direction is the sign a rate must have for g: CW gears turn the angle
// down, CCW gears turn it up.
func (g Gear) direction() int {
	switch g {
	case CWSlow, CWFast:
		return -1
	case CCWSlow, CCWFast:
		return 1
	default:
		return 0
	}
}

func signName(dir int) string {
	if dir < 0 {
		return "negative"
	}
	return "positive"
}

// sign returns -1, 0 or +1 for g's rate.
func (r Rates) sign(g Gear) int {
	switch rate := r[g]; {
	case rate > 0:
		return 1
	case rate < 0:
		return -1
	default:
		return 0
	}
}
