package angle

import (
	"math"
	"testing"
)

const eps = 1e-9

func near(a, b float64) bool {
	return math.Abs(a-b) < eps
}

func TestNew_Units(t *testing.T) {
	cases := []struct {
		name string
		v    float64
		u    Unit
		deg  float64
	}{
		{"degrees", 90, Deg, 90},
		{"radians_pi", math.Pi, Rad, 180},
		{"quarter_turn", 0.25, Turn, 90},
		{"negative_turns", -2, Turn, -720},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := New(tc.v, tc.u).In(Deg)
			if !near(got, tc.deg) {
				t.Errorf("New(%v, %s) = %v°, want %v°", tc.v, tc.u, got, tc.deg)
			}
		})
	}
}

func TestIn_RoundTrip(t *testing.T) {
	a := Degrees(270)
	if got := a.In(Rad); !near(got, 3*math.Pi/2) {
		t.Errorf("In(Rad) = %v, want %v", got, 3*math.Pi/2)
	}
	if got := a.In(Turn); !near(got, 0.75) {
		t.Errorf("In(Turn) = %v, want 0.75", got)
	}
}

func TestArithmetic(t *testing.T) {
	a := Degrees(22.5)
	b := Degrees(90)

	if got := b.Add(a).In(Deg); got != 112.5 {
		t.Errorf("Add = %v, want 112.5", got)
	}
	if got := a.Sub(b).In(Deg); got != -67.5 {
		t.Errorf("Sub = %v, want -67.5", got)
	}
	if got := a.Sub(b).Abs().In(Deg); got != 67.5 {
		t.Errorf("Abs = %v, want 67.5", got)
	}
	if got := a.Div(2).In(Deg); got != 11.25 {
		t.Errorf("Div = %v, want 11.25", got)
	}
}

func TestCompare(t *testing.T) {
	a, b := Degrees(10), Degrees(20)
	if a.Compare(b) != -1 || b.Compare(a) != 1 || a.Compare(Degrees(10)) != 0 {
		t.Error("Compare ordering is wrong")
	}
	if !a.Less(b) || b.Less(a) || a.Less(a) {
		t.Error("Less ordering is wrong")
	}
}

func TestAngles_AreNotWrapped(t *testing.T) {
	a := Degrees(350).Add(Degrees(22.5))
	if got := a.In(Deg); got != 372.5 {
		t.Errorf("sum = %v, want 372.5 (no wrapping)", got)
	}
	if !Degrees(0).Less(a) {
		t.Error("372.5° should compare greater than 0°")
	}
}

func TestNormalized(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{0, 0},
		{360, 0},
		{372.5, 12.5},
		{-22.5, 337.5},
		{-720, 0},
	}
	for _, tc := range cases {
		if got := Degrees(tc.in).Normalized().In(Deg); !near(got, tc.want) {
			t.Errorf("Normalized(%v) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestString(t *testing.T) {
	if got := Degrees(22.5).String(); got != "22.50°" {
		t.Errorf("String() = %q, want %q", got, "22.50°")
	}
}
