//go:build !linux

package gpio

import (
	"errors"
	"time"
)

var ErrNotSupported = errors.New("gpio character device not supported on this platform")

// CdevDriver is a stub for non-linux platforms.
type CdevDriver struct{}

// NewCdevDriver returns an error on non-linux platforms.
func NewCdevDriver(chip string, debounce time.Duration) (*CdevDriver, error) {
	return nil, ErrNotSupported
}

func (d *CdevDriver) SetupPin(pin int, mode PinMode) error { return ErrNotSupported }
func (d *CdevDriver) WritePin(pin int, level Level) error { return ErrNotSupported }
func (d *CdevDriver) ReadPin(pin int) (Level, error) { return Low, ErrNotSupported }
func (d *CdevDriver) WatchRisingEdge(pin int, h EdgeHandler) (Watcher, error) { return nil, ErrNotSupported }
func (d *CdevDriver) Close() error { return nil }
