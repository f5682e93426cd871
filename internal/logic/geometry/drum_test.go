package geometry

import (
	"math"
	"testing"

	"github.com/cjeanneret/GoWinch/internal/angle"
)

const eps = 1e-9

func TestNewDrum_Invalid(t *testing.T) {
	cases := []struct {
		name string
		d    float64
	}{
		{"zero", 0},
		{"negative", -10},
		{"NaN", math.NaN()},
		{"Inf", math.Inf(1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewDrum(tc.d); err == nil {
				t.Errorf("NewDrum(%v) should fail", tc.d)
			}
		})
	}
}

func TestDrum_AngleForLength(t *testing.T) {
	// Circumference = 100 mm for a 100/π mm drum.
	d, err := NewDrum(100 / math.Pi)
	if err != nil {
		t.Fatalf("NewDrum: %v", err)
	}

	cases := []struct {
		name     string
		lengthMm float64
		wantDeg  float64
	}{
		{"zero", 0, 0},
		{"one_turn", 100, 360},
		{"quarter_turn", 25, 90},
		{"reel_in", -50, -180},
		{"multi_turn", 350, 1260},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := d.AngleForLength(tc.lengthMm).In(angle.Deg)
			if math.Abs(got-tc.wantDeg) > eps {
				t.Errorf("AngleForLength(%v) = %v°, want %v°", tc.lengthMm, got, tc.wantDeg)
			}
		})
	}
}

func TestDrum_RoundTrip(t *testing.T) {
	d, _ := NewDrum(42)
	for _, mm := range []float64{0, 1, 13.7, 500, -250} {
		got := d.LengthForAngle(d.AngleForLength(mm))
		if math.Abs(got-mm) > 1e-6 {
			t.Errorf("round trip %v mm -> %v mm", mm, got)
		}
	}
}

func TestDrum_LengthPerPulse(t *testing.T) {
	d, _ := NewDrum(100 / math.Pi)
	// 16 pulses per revolution, 10:1 gearing -> 2.25° per pulse -> 0.625 mm.
	got := d.LengthPerPulse(angle.Degrees(2.25))
	if math.Abs(got-0.625) > eps {
		t.Errorf("LengthPerPulse = %v, want 0.625", got)
	}
	if d.DiameterMm() != 100/math.Pi {
		t.Errorf("DiameterMm = %v", d.DiameterMm())
	}
}
