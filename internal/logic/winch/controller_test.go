package winch

import (
	"errors"
	"math"
	"testing"

	"github.com/cjeanneret/GoWinch/internal/hw/gpio"
	"github.com/cjeanneret/GoWinch/internal/hw/motor"
	"github.com/cjeanneret/GoWinch/internal/logic/geometry"
)

const (
	pinEnable = 19
	pinA      = 15
	pinB      = 13
	pinPulse  = 11
)

func newController(t *testing.T, withDrum bool) (*Controller, *gpio.MockDriver) {
	t.Helper()
	drv := gpio.NewMockDriver()
	m, err := motor.New(drv, motor.Config{
		Name:         "winch",
		Pins:         motor.Pins{Enable: pinEnable, LineA: pinA, LineB: pinB, Pulse: pinPulse},
		PulsesPerRev: 16,
	})
	if err != nil {
		t.Fatalf("motor.New: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	var drum *geometry.Drum
	if withDrum {
		// 360 mm per turn, so one 22.5° pulse is 22.5 mm.
		drum, err = geometry.NewDrum(360 / math.Pi)
		if err != nil {
			t.Fatalf("NewDrum: %v", err)
		}
	}
	return NewController(m, drum), drv
}

func near(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}

func TestController_GoTo(t *testing.T) {
	ctrl, drv := newController(t, false)

	if err := ctrl.GoTo(90); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if drv.Level(pinEnable) != gpio.High {
		t.Fatal("GoTo should energize the motor")
	}
	for i := 0; i < 10 && ctrl.Status().Gear != "off"; i++ {
		drv.Fire(pinPulse)
	}

	st := ctrl.Status()
	if st.AngleDeg != 90 || st.TargetDeg != 90 {
		t.Errorf("angle=%v target=%v, want 90/90", st.AngleDeg, st.TargetDeg)
	}
	if !st.Seeking || !st.Settled {
		t.Errorf("seeking=%v settled=%v, want true/true", st.Seeking, st.Settled)
	}
	if drv.Level(pinEnable) != gpio.Low {
		t.Error("motor should be off after arrival")
	}
}

func TestController_GoTo_RejectsNonFinite(t *testing.T) {
	ctrl, drv := newController(t, false)
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if err := ctrl.GoTo(v); !errors.Is(err, ErrInvalidArgs) {
			t.Errorf("GoTo(%v) err = %v, want ErrInvalidArgs", v, err)
		}
	}
	if drv.Level(pinEnable) != gpio.Low {
		t.Error("rejected GoTo must not energize the motor")
	}
}

func TestController_GoToLength(t *testing.T) {
	ctrl, drv := newController(t, true)

	if err := ctrl.GoToLength(-45); err != nil {
		t.Fatalf("GoToLength: %v", err)
	}
	st := ctrl.Status()
	if !near(st.TargetDeg, -45) {
		t.Errorf("target = %v°, want -45°", st.TargetDeg)
	}
	if st.Gear != "cw_slow" {
		t.Errorf("gear = %s, want cw_slow", st.Gear)
	}
	drv.Fire(pinPulse)
	drv.Fire(pinPulse)

	st = ctrl.Status()
	if st.PayoutMm == nil || !near(*st.PayoutMm, -45) {
		t.Errorf("payout = %v, want -45", st.PayoutMm)
	}
	if st.TargetMm == nil || !near(*st.TargetMm, -45) {
		t.Errorf("target mm = %v, want -45", st.TargetMm)
	}
}

func TestController_GoToLength_NoDrum(t *testing.T) {
	ctrl, _ := newController(t, false)
	if err := ctrl.GoToLength(100); !errors.Is(err, ErrNoDrum) {
		t.Errorf("err = %v, want ErrNoDrum", err)
	}
	if st := ctrl.Status(); st.PayoutMm != nil {
		t.Error("status without drum should omit payout")
	}
}

func TestController_Drive(t *testing.T) {
	ctrl, drv := newController(t, false)
	if err := ctrl.GoTo(1000); err != nil {
		t.Fatalf("GoTo: %v", err)
	}

	if err := ctrl.Drive("ccw_fast"); err != nil {
		t.Fatalf("Drive: %v", err)
	}
	st := ctrl.Status()
	if st.Seeking {
		t.Error("Drive should disable seek mode")
	}
	if st.Gear != "ccw_fast" {
		t.Errorf("gear = %s, want ccw_fast", st.Gear)
	}
	if drv.Level(pinA) != gpio.High || drv.Level(pinB) != gpio.High {
		t.Error("ccw_fast should set A=1 B=1")
	}

	// A pulse must not switch back to the seek policy's choice.
	drv.Fire(pinPulse)
	if g := ctrl.Status().Gear; g != "ccw_fast" {
		t.Errorf("gear after pulse = %s, want ccw_fast", g)
	}

	if err := ctrl.Drive("sideways"); !errors.Is(err, motor.ErrUnknownGear) {
		t.Errorf("Drive(sideways) err = %v, want ErrUnknownGear", err)
	}
}

func TestController_Stop(t *testing.T) {
	ctrl, drv := newController(t, false)
	if err := ctrl.GoTo(-180); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	if err := ctrl.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	st := ctrl.Status()
	if st.Seeking || st.Gear != "off" {
		t.Errorf("seeking=%v gear=%s, want false/off", st.Seeking, st.Gear)
	}
	if drv.Level(pinEnable) != gpio.Low {
		t.Error("Stop should de-energize the motor")
	}
}

func TestController_DisableSeekKeepsGear(t *testing.T) {
	ctrl, _ := newController(t, false)
	if err := ctrl.GoTo(90); err != nil {
		t.Fatalf("GoTo: %v", err)
	}
	ctrl.DisableSeek()
	st := ctrl.Status()
	if st.Seeking {
		t.Error("seek should be disabled")
	}
	if st.Gear != "ccw_slow" {
		t.Errorf("gear = %s, want ccw_slow", st.Gear)
	}
	if err := ctrl.EnableSeek(); err != nil {
		t.Fatalf("EnableSeek: %v", err)
	}
	if !ctrl.Status().Seeking {
		t.Error("seek should be enabled again")
	}
}

func TestController_ResetAngle(t *testing.T) {
	ctrl, _ := newController(t, true)
	if err := ctrl.ResetAngle(720); err != nil {
		t.Fatalf("ResetAngle: %v", err)
	}
	st := ctrl.Status()
	if st.AngleDeg != 720 {
		t.Errorf("angle = %v, want 720", st.AngleDeg)
	}
	if st.PayoutMm == nil || !near(*st.PayoutMm, 720) {
		t.Errorf("payout = %v, want 720", st.PayoutMm)
	}
	if err := ctrl.ResetAngle(math.NaN()); !errors.Is(err, ErrInvalidArgs) {
		t.Errorf("ResetAngle(NaN) err = %v, want ErrInvalidArgs", err)
	}
}
