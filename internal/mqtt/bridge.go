package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/cjeanneret/GoWinch/internal/debug"
	"github.com/cjeanneret/GoWinch/internal/logic/winch"
)

var ErrUnknownCommand = errors.New("unknown command")

// Commander is the set of winch commands reachable over MQTT.
type Commander interface {
	GoTo(deg float64) error
	GoToLength(mm float64) error
	EnableSeek() error
	DisableSeek()
	Drive(gear string) error
	Stop() error
	ResetAngle(deg float64) error
	Status() winch.Status
}

type Publisher interface {
	Publish(topic string, payload string)
}

// Bridge maps command topics onto a Commander and publishes its status.
//
// Topics live under <prefix>/<name>:
//
//	cmd/target  angle in degrees
//	cmd/length  cable length in mm
//	cmd/seek    on|off
//	cmd/gear    gear name or number
//	cmd/stop    payload ignored
//	cmd/reset   new angle in degrees, empty means 0
//	cmd/report  payload ignored, publishes state
//	state       JSON status, published after every command
type Bridge struct {
	pub  Publisher
	cmd  Commander
	base string
}

func NewBridge(pub Publisher, cmd Commander, prefix, name string) *Bridge {
	return &Bridge{
		pub:  pub,
		cmd:  cmd,
		base: strings.TrimSuffix(prefix, "/") + "/" + name,
	}
}

// CommandTopic is the subscription filter covering every command.
func (b *Bridge) CommandTopic() string {
	return b.base + "/cmd/+"
}

func (b *Bridge) StateTopic() string {
	return b.base + "/state"
}

// HandleMessage runs the command addressed by topic. Messages outside the
// bridge's command tree are ignored. Errors are logged; the state is
// published either way so clients see the outcome.
func (b *Bridge) HandleMessage(topic string, payload []byte) {
	name, ok := strings.CutPrefix(topic, b.base+"/cmd/")
	if !ok {
		return
	}
	arg := strings.TrimSpace(string(payload))
	debug.Verbose("MQTT command %s %q", name, arg)

	if err := b.dispatch(name, arg); err != nil {
		debug.Error(fmt.Errorf("mqtt %s: %w", name, err))
	}
	b.PublishState()
}

func (b *Bridge) dispatch(name, arg string) error {
	switch name {
	case "target":
		v, err := parseNumber(arg)
		if err != nil {
			return err
		}
		return b.cmd.GoTo(v)
	case "length":
		v, err := parseNumber(arg)
		if err != nil {
			return err
		}
		return b.cmd.GoToLength(v)
	case "seek":
		on, err := parseSwitch(arg)
		if err != nil {
			return err
		}
		if on {
			return b.cmd.EnableSeek()
		}
		b.cmd.DisableSeek()
		return nil
	case "gear":
		return b.cmd.Drive(arg)
	case "stop":
		return b.cmd.Stop()
	case "reset":
		if arg == "" {
			return b.cmd.ResetAngle(0)
		}
		v, err := parseNumber(arg)
		if err != nil {
			return err
		}
		return b.cmd.ResetAngle(v)
	case "report":
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, name)
	}
}

// PublishState publishes the current status as JSON on the state topic.
func (b *Bridge) PublishState() {
	data, err := json.Marshal(b.cmd.Status())
	if err != nil {
		debug.Error(fmt.Errorf("encode state: %w", err))
		return
	}
	b.pub.Publish(b.StateTopic(), string(data))
}

func parseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "1", "enable":
		return true, nil
	case "off", "false", "0", "disable":
		return false, nil
	}
	return false, fmt.Errorf("invalid switch value %q (want on|off)", s)
}
