package main

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cjeanneret/GoWinch/internal/config"
	"github.com/cjeanneret/GoWinch/internal/logic/winch"
)

// ---------- validateCLITargets ----------

func set(v float64) optionalFloat { return optionalFloat{val: v, set: true} }

func TestValidateCLITargets(t *testing.T) {
	cases := []struct {
		name    string
		deg, mm optionalFloat
		hasDrum bool
		wantErr bool
	}{
		{"none", optionalFloat{}, optionalFloat{}, false, false},
		{"angle", set(90), optionalFloat{}, false, false},
		{"angle_zero", set(0), optionalFloat{}, false, false},
		{"angle_multi_turn", set(-1440), optionalFloat{}, false, false},
		{"length_with_drum", optionalFloat{}, set(300), true, false},
		{"length_without_drum", optionalFloat{}, set(300), false, true},
		{"both", set(90), set(300), true, true},
		{"angle_NaN", set(math.NaN()), optionalFloat{}, false, true},
		{"angle_+Inf", set(math.Inf(1)), optionalFloat{}, false, true},
		{"length_-Inf", optionalFloat{}, set(math.Inf(-1)), true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := validateCLITargets(tc.deg, tc.mm, tc.hasDrum)
			if tc.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("expected valid, got: %v", err)
			}
		})
	}
}

// ---------- optionalFloat ----------

func TestOptionalFloat(t *testing.T) {
	var f optionalFloat
	if f.String() != "" {
		t.Errorf("unset String() = %q, want empty", f.String())
	}
	if err := f.Set("-22.5"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !f.set || f.val != -22.5 || f.String() != "-22.5" {
		t.Errorf("after Set: %+v %q", f, f.String())
	}
	if err := (&optionalFloat{}).Set("north"); err == nil {
		t.Error("Set(north) should fail")
	}
}

// ---------- webPortFlag ----------

func TestWebPortFlag_EmptyString(t *testing.T) {
	w := &webPortFlag{defaultPort: 8080}
	if err := w.Set(""); err != nil {
		t.Fatalf("Set(\"\") error: %v", err)
	}
	if w.port() != 8080 {
		t.Errorf("expected default port 8080, got %d", w.port())
	}
}

func TestWebPortFlag_Set(t *testing.T) {
	cases := []struct {
		input   string
		want    int
		wantErr bool
	}{
		{"8980", 8980, false},
		{"1", 1, false},
		{"65535", 65535, false},
		{"0", 0, true},
		{"65536", 0, true},
		{"-1", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.input, func(t *testing.T) {
			w := &webPortFlag{defaultPort: 8080}
			err := w.Set(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Errorf("Set(%q) should fail, got nil", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Set(%q) error: %v", tc.input, err)
			}
			if w.port() != tc.want || w.String() != tc.input {
				t.Errorf("port() = %d String() = %q, want %d", w.port(), w.String(), tc.want)
			}
		})
	}
}

// ---------- statusReporter ----------

type fakeSource struct{ st winch.Status }

func (f *fakeSource) Status() winch.Status { return f.st }

type countingSink struct{ n int }

func (c *countingSink) BroadcastState(interface{}) { c.n++ }
func (c *countingSink) PublishState()              { c.n++ }

func TestStatusReporter_OnlyOnChange(t *testing.T) {
	src := &fakeSource{st: winch.Status{Name: "winch", Gear: "off"}}
	bridge, sse := &countingSink{}, &countingSink{}
	r := &statusReporter{ctrl: src, bridge: bridge, broadcaster: sse}

	if !r.report() {
		t.Error("first report should publish")
	}
	if r.report() {
		t.Error("unchanged status should not publish")
	}
	src.st.AngleDeg = 22.5
	if !r.report() {
		t.Error("changed status should publish")
	}
	if bridge.n != 2 || sse.n != 2 {
		t.Errorf("published bridge=%d sse=%d, want 2/2", bridge.n, sse.n)
	}
}

func TestStatusReporter_NilSinks(t *testing.T) {
	r := &statusReporter{ctrl: &fakeSource{}}
	if !r.report() {
		t.Error("report without sinks should still record the status")
	}
}

// ---------- run ----------

func writeConfig(t *testing.T, content string) *config.Config {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "configs")
	if err := os.Mkdir(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "test.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

const mockYAML = `
motor:
  enable_pin: 10
  a_pin: 22
  b_pin: 27
  pulse_pin: 17
drum:
  diameter_mm: 50
gpio:
  driver: mock
simulator:
  pulse_interval_ms: 2
  coast: true
defaults:
  status_interval_ms: 5
`

func TestRun_MockUntilCancelled(t *testing.T) {
	cfg := writeConfig(t, mockYAML)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, options{targetDeg: set(90)}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_LengthTarget(t *testing.T) {
	cfg := writeConfig(t, mockYAML)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := run(ctx, cfg, options{targetMm: set(-40)}); err != nil {
		t.Errorf("run: %v", err)
	}
}

func TestRun_UnknownGPIODriver(t *testing.T) {
	cfg := writeConfig(t, mockYAML)
	cfg.GPIO.Driver = "sysfs"
	if err := run(context.Background(), cfg, options{}); err == nil {
		t.Error("expected error for unknown GPIO driver")
	}
}
