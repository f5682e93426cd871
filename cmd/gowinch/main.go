package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"

	"github.com/cjeanneret/GoWinch/internal/angle"
	"github.com/cjeanneret/GoWinch/internal/config"
	"github.com/cjeanneret/GoWinch/internal/debug"
	"github.com/cjeanneret/GoWinch/internal/hw/gpio"
	"github.com/cjeanneret/GoWinch/internal/hw/motor"
	"github.com/cjeanneret/GoWinch/internal/hw/sim"
	"github.com/cjeanneret/GoWinch/internal/logic/geometry"
	"github.com/cjeanneret/GoWinch/internal/logic/winch"
	"github.com/cjeanneret/GoWinch/internal/mqtt"
	"github.com/cjeanneret/GoWinch/internal/web"
)

// options holds what the command line adds on top of the config file.
type options struct {
	webPort   int
	targetDeg optionalFloat
	targetMm  optionalFloat
}

func main() {
	// CLI flags
	var opts options
	webPort := &webPortFlag{defaultPort: 8080}
	flag.Var(webPort, "web", "start web server on port; -web= for default 8080, -web 8980 for custom port")
	cfgPath := flag.String("config", filepath.Join("configs", "default.yaml"), "path to config file")
	flag.Var(&opts.targetDeg, "target_deg", "seek to this drum angle in degrees at startup")
	flag.Var(&opts.targetMm, "target_mm", "seek to this cable length in mm at startup (needs drum.diameter_mm)")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := config.ValidateConfigPath(*cfgPath); err != nil {
		log.Fatalf("invalid config path: %v", err)
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	if err := validateCLITargets(opts.targetDeg, opts.targetMm, cfg.Drum.DiameterMm > 0); err != nil {
		log.Fatalf("invalid CLI target: %v", err)
	}
	opts.webPort = webPort.port()

	debug.Init(cfg.Defaults.DebugLevel)
	debug.Section("Initialization")
	debug.Value("Config path", *cfgPath)
	debug.Value("Debug level", cfg.Defaults.DebugLevel)

	if err := run(ctx, cfg, opts); err != nil {
		log.Fatalf("gowinch: %v", err)
	}
}

// run wires the winch and serves commands until ctx is cancelled or the
// motor reports a fault. Teardown always leaves the motor de-energized.
func run(ctx context.Context, cfg *config.Config, opts options) (err error) {
	debug.Step(1, "Initializing GPIO driver")
	debug.Value("GPIO driver", cfg.GPIO.Driver)
	drv, err := gpio.NewDriver(cfg.GPIOOptions())
	if err != nil {
		return fmt.Errorf("init GPIO: %w", err)
	}
	defer func() {
		if cerr := drv.Close(); cerr != nil {
			log.Printf("closing GPIO driver failed: %v", cerr)
		}
	}()

	debug.Step(2, "Initializing motor")
	mc, err := cfg.MotorConfig()
	if err != nil {
		return err
	}
	debug.PrintStruct("Motor config", cfg.Motor)
	m, err := motor.New(drv, mc)
	if err != nil {
		return fmt.Errorf("init motor: %w", err)
	}
	defer func() {
		if cerr := m.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close motor: %w", cerr))
		}
	}()

	// Background workers stop before the motor is closed.
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	if mock, ok := drv.(*gpio.MockDriver); ok {
		enc := &sim.Encoder{
			Driver:    mock,
			EnablePin: mc.Pins.Enable,
			PulsePin:  mc.Pins.Pulse,
			Interval:  cfg.PulseInterval(),
			Coast:     cfg.Simulator.Coast,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			enc.Run(ctx)
		}()
	}

	debug.Step(3, "Initializing winch controller")
	var drum *geometry.Drum
	if cfg.Drum.DiameterMm > 0 {
		drum, err = geometry.NewDrum(cfg.Drum.DiameterMm)
		if err != nil {
			return err
		}
		debug.Value("Cable per pulse (mm)", drum.LengthPerPulse(mc.Resolution()))
	}
	ctrl := winch.NewController(m, drum)

	var broadcaster *web.StatusBroadcaster
	if opts.webPort > 0 {
		broadcaster = web.NewStatusBroadcaster()
		debug.SetOutput(io.MultiWriter(os.Stdout, web.BroadcastWriter(broadcaster)))
		defer debug.SetOutput(os.Stdout)
	}

	debug.Step(4, "Connecting MQTT")
	client, bridge, err := connectMQTT(cfg, ctrl)
	if err != nil {
		return err
	}
	defer client.Disconnect()

	reporter := &statusReporter{ctrl: ctrl, bridge: bridge}
	if broadcaster != nil {
		reporter.broadcaster = broadcaster
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		reporter.Run(ctx, cfg.StatusInterval())
	}()

	if err := startTarget(ctrl, opts); err != nil {
		return err
	}

	webErr := make(chan error, 1)
	if opts.webPort > 0 {
		srv, err := web.NewServer(fmt.Sprintf(":%d", opts.webPort), broadcaster, ctrl, newInfo(m, drum != nil))
		if err != nil {
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			webErr <- srv.Run(ctx)
		}()
	}

	debug.Section("Running")
	select {
	case <-ctx.Done():
		debug.Info("shutting down")
		return nil
	case ferr := <-m.Faults():
		return fmt.Errorf("motor fault: %w", ferr)
	case werr := <-webErr:
		if werr != nil {
			return fmt.Errorf("web server: %w", werr)
		}
		return nil
	}
}

// connectMQTT builds the MQTT client and the command bridge. With no host
// configured the client is a no-op and only the bridge's publishing path
// is exercised.
func connectMQTT(cfg *config.Config, ctrl *winch.Controller) (*mqtt.Client, *mqtt.Bridge, error) {
	var bridge *mqtt.Bridge
	client, err := mqtt.New(mqtt.Config{
		Host:       cfg.MQTT.Host,
		Port:       cfg.MQTT.Port,
		CACert:     cfg.MQTT.CACert,
		ClientCert: cfg.MQTT.ClientCert,
		ClientKey:  cfg.MQTT.ClientKey,
		ClientID:   cfg.MQTT.ClientID,
	}, mqtt.Handlers{
		OnConnect: func() { bridge.PublishState() },
		OnMessage: func(topic string, payload []byte) { bridge.HandleMessage(topic, payload) },
	})
	if err != nil {
		return nil, nil, fmt.Errorf("init MQTT: %w", err)
	}
	bridge = mqtt.NewBridge(client, ctrl, cfg.MQTT.TopicPrefix, cfg.Motor.Name)

	if err := client.Subscribe(bridge.CommandTopic()); err != nil {
		return nil, nil, err
	}
	if err := client.Connect(); err != nil {
		return nil, nil, fmt.Errorf("MQTT: %w", err)
	}
	debug.Value("MQTT commands", bridge.CommandTopic())
	return client, bridge, nil
}

func startTarget(ctrl *winch.Controller, opts options) error {
	switch {
	case opts.targetDeg.set:
		return ctrl.GoTo(opts.targetDeg.val)
	case opts.targetMm.set:
		return ctrl.GoToLength(opts.targetMm.val)
	}
	return nil
}

func newInfo(m *motor.Motor, hasDrum bool) web.Info {
	st := m.State()
	gears := make([]string, len(motor.Gears))
	for i, g := range motor.Gears {
		gears[i] = g.String()
	}
	return web.Info{
		Name:          st.Name,
		ResolutionDeg: st.Resolution.In(angle.Deg),
		DeadbandDeg:   st.Deadband.In(angle.Deg),
		HasDrum:       hasDrum,
		Gears:         gears,
	}
}

// validateCLITargets checks the startup targets: at most one, finite, and a
// length only when a drum is configured.
func validateCLITargets(deg, mm optionalFloat, hasDrum bool) error {
	if deg.set && mm.set {
		return errors.New("-target_deg and -target_mm are mutually exclusive")
	}
	if deg.set && (math.IsNaN(deg.val) || math.IsInf(deg.val, 0)) {
		return fmt.Errorf("target_deg must be a finite number, got %g", deg.val)
	}
	if mm.set {
		if math.IsNaN(mm.val) || math.IsInf(mm.val, 0) {
			return fmt.Errorf("target_mm must be a finite number, got %g", mm.val)
		}
		if !hasDrum {
			return errors.New("target_mm needs drum.diameter_mm in the config")
		}
	}
	return nil
}

// optionalFloat implements flag.Value for a float flag that may be absent.
type optionalFloat struct {
	val float64
	set bool
}

func (f *optionalFloat) String() string {
	if !f.set {
		return ""
	}
	return strconv.FormatFloat(f.val, 'g', -1, 64)
}

func (f *optionalFloat) Set(s string) error {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}
	f.val, f.set = v, true
	return nil
}

// webPortFlag implements flag.Value for -web: 0 = disabled, -web= or -web 8080 → 8080, -web 8980 → 8980.
type webPortFlag struct {
	val         int
	defaultPort int
}

func (w *webPortFlag) String() string {
	if w.val == 0 {
		return "0"
	}
	return strconv.Itoa(w.val)
}

func (w *webPortFlag) Set(s string) error {
	if s == "" {
		w.val = w.defaultPort
		return nil
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	if v <= 0 || v > 65535 {
		return fmt.Errorf("port must be 1-65535, got %d", v)
	}
	w.val = v
	return nil
}

func (w *webPortFlag) port() int { return w.val }
