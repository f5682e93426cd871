package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cjeanneret/GoWinch/internal/angle"
	"github.com/cjeanneret/GoWinch/internal/hw/gpio"
	"github.com/cjeanneret/GoWinch/internal/hw/motor"
)

// MaxConfigFileBytes bounds the size of a config file.
const MaxConfigFileBytes = 1 << 20

// MotorConfig describes the DC motor, its driver lines and its encoder.
// Pins use BCM numbering (go-rpio) or line offsets on the chip (cdev).
type MotorConfig struct {
	Name         string             `yaml:"name"`
	EnablePin    int                `yaml:"enable_pin"` // HIGH = motor on
	APin         int                `yaml:"a_pin"`
	BPin         int                `yaml:"b_pin"`
	PulsePin     int                `yaml:"pulse_pin"`      // encoder output, one rising edge per pulse
	PulsesPerRev int                `yaml:"pulses_per_rev"` // before gearing
	GearRatio    float64            `yaml:"gear_ratio"`     // motor turns per drum turn
	MarginDeg    *float64           `yaml:"margin_deg"`     // added to half a pulse to form the dead-band; unset = 5
	Rates        map[string]float64 `yaml:"rates"`          // rpm by gear name; empty = built-in table
}

// DrumConfig is optional: without a diameter, length targets are refused.
type DrumConfig struct {
	DiameterMm float64 `yaml:"diameter_mm"`
}

type GPIOConfig struct {
	Driver     string `yaml:"driver"` // mock, rpio or cdev
	Chip       string `yaml:"chip"`   // cdev only, e.g. gpiochip0
	DebounceUs int    `yaml:"debounce_us"`
}

// SimulatorConfig drives the fake encoder used with the mock driver.
type SimulatorConfig struct {
	PulseIntervalMs int  `yaml:"pulse_interval_ms"`
	Coast           bool `yaml:"coast"` // one extra pulse after switching off
}

// MQTTConfig is optional: an empty host disables MQTT.
type MQTTConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	CACert      string `yaml:"ca_cert"`
	ClientCert  string `yaml:"client_cert"`
	ClientKey   string `yaml:"client_key"`
	ClientID    string `yaml:"client_id"`
	TopicPrefix string `yaml:"topic_prefix"`
}

type DefaultsConfig struct {
	DebugLevel       int `yaml:"debug_level"`        // 0-4 (0=off, 1=info, 2=live, 3=verbose, 4=trace)
	StatusIntervalMs int `yaml:"status_interval_ms"` // periodic status publishing
}

// Config aggregates all application configuration.
type Config struct {
	Motor     MotorConfig     `yaml:"motor"`
	Drum      DrumConfig      `yaml:"drum"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Simulator SimulatorConfig `yaml:"simulator"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Defaults  DefaultsConfig  `yaml:"defaults"`
}

// ValidateConfigPath accepts only .yaml files inside a configs/ directory,
// without traversal.
func ValidateConfigPath(path string) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return fmt.Errorf("config path %q must not contain '..'", path)
		}
	}
	clean := filepath.Clean(path)
	if filepath.Ext(clean) != ".yaml" {
		return fmt.Errorf("config path %q must end in .yaml", path)
	}
	if filepath.Base(filepath.Dir(clean)) != "configs" {
		return fmt.Errorf("config path %q must be inside a configs/ directory", path)
	}
	return nil
}

// Load reads a YAML file, applies defaults and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, MaxConfigFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if len(data) > MaxConfigFileBytes {
		return nil, fmt.Errorf("config file larger than %d bytes", MaxConfigFileBytes)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal yaml: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Motor.Name == "" {
		c.Motor.Name = "winch"
	}
	if c.Motor.PulsesPerRev == 0 {
		c.Motor.PulsesPerRev = 16
	}
	if c.Motor.GearRatio == 0 {
		c.Motor.GearRatio = 1
	}
	if c.Motor.MarginDeg == nil {
		margin := motor.DefaultMargin.In(angle.Deg)
		c.Motor.MarginDeg = &margin
	}
	if c.GPIO.Driver == "" {
		c.GPIO.Driver = gpio.KindRPi
	}
	if c.Simulator.PulseIntervalMs <= 0 {
		c.Simulator.PulseIntervalMs = 200
	}
	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = "gowinch-" + c.Motor.Name
	}
	if c.MQTT.TopicPrefix == "" {
		c.MQTT.TopicPrefix = "gowinch"
	}
	if c.Defaults.StatusIntervalMs <= 0 {
		c.Defaults.StatusIntervalMs = 1000
	}
}

func (c *Config) validate() error {
	for name, pin := range map[string]int{
		"enable_pin": c.Motor.EnablePin, "a_pin": c.Motor.APin,
		"b_pin": c.Motor.BPin, "pulse_pin": c.Motor.PulsePin,
	} {
		if pin < 0 {
			return fmt.Errorf("motor.%s must be >= 0, got %d", name, pin)
		}
	}
	mc, err := c.MotorConfig()
	if err != nil {
		return err
	}
	if err := mc.Validate(); err != nil {
		return fmt.Errorf("motor: %w", err)
	}

	if c.Drum.DiameterMm < 0 {
		return fmt.Errorf("drum.diameter_mm must be >= 0, got %.2f", c.Drum.DiameterMm)
	}

	switch c.GPIO.Driver {
	case gpio.KindMock, gpio.KindRPi, gpio.KindCdev:
	default:
		return fmt.Errorf("gpio.driver must be mock, rpio or cdev, got %q", c.GPIO.Driver)
	}
	if c.GPIO.DebounceUs < 0 {
		return fmt.Errorf("gpio.debounce_us must be >= 0, got %d", c.GPIO.DebounceUs)
	}

	if c.MQTT.Port < 0 || c.MQTT.Port > 65535 {
		return fmt.Errorf("mqtt.port out of range: %d", c.MQTT.Port)
	}
	if strings.ContainsAny(c.MQTT.TopicPrefix+c.Motor.Name, "#+") {
		return errors.New("mqtt.topic_prefix and motor.name must not contain MQTT wildcards")
	}

	if c.Defaults.DebugLevel < 0 || c.Defaults.DebugLevel > 4 {
		return fmt.Errorf("defaults.debug_level must be between 0 and 4, got %d", c.Defaults.DebugLevel)
	}
	return nil
}

// MotorConfig converts the motor section for motor.New.
func (c *Config) MotorConfig() (motor.Config, error) {
	mc := motor.Config{
		Name: c.Motor.Name,
		Pins: motor.Pins{
			Enable: c.Motor.EnablePin,
			LineA:  c.Motor.APin,
			LineB:  c.Motor.BPin,
			Pulse:  c.Motor.PulsePin,
		},
		PulsesPerRev: c.Motor.PulsesPerRev,
		GearRatio:    c.Motor.GearRatio,
	}
	if c.Motor.MarginDeg != nil {
		margin := angle.Degrees(*c.Motor.MarginDeg)
		mc.Margin = &margin
	}
	if len(c.Motor.Rates) > 0 {
		mc.Rates = make(motor.Rates, len(c.Motor.Rates))
		seen := make(map[motor.Gear]string, len(c.Motor.Rates))
		for name, rpm := range c.Motor.Rates {
			g, err := motor.ParseGear(name)
			if err != nil {
				return motor.Config{}, fmt.Errorf("motor.rates: %w", err)
			}
			if other, dup := seen[g]; dup {
				return motor.Config{}, fmt.Errorf("motor.rates: %q and %q both name gear %s", other, name, g)
			}
			seen[g] = name
			mc.Rates[g] = rpm
		}
	}
	return mc, nil
}

// GPIOOptions converts the gpio section for gpio.NewDriver.
func (c *Config) GPIOOptions() gpio.Options {
	return gpio.Options{
		Kind:     c.GPIO.Driver,
		Chip:     c.GPIO.Chip,
		Debounce: time.Duration(c.GPIO.DebounceUs) * time.Microsecond,
	}
}

// PulseInterval returns the simulated encoder period.
func (c *Config) PulseInterval() time.Duration {
	return time.Duration(c.Simulator.PulseIntervalMs) * time.Millisecond
}

// StatusInterval returns the period of status publishing.
func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.Defaults.StatusIntervalMs) * time.Millisecond
}
