package pca9685

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidChannel reports a channel index outside 0..15.
	ErrInvalidChannel = errors.New("channel out of range")
	// ErrInvalidFrequency reports a frequency outside 40..1000 Hz.
	ErrInvalidFrequency = errors.New("frequency out of range")
	// ErrInvalidDutyCycle reports a duty cycle outside 0..100 %.
	ErrInvalidDutyCycle = errors.New("duty cycle out of range")
	// ErrInvalidPhaseShift reports a phase shift above 100 %.
	ErrInvalidPhaseShift = errors.New("phase shift out of range")

	// ErrTransport marks every failure of the underlying register transport.
	ErrTransport = errors.New("i/o failure")
	// ErrSettleInterrupted is returned when the oscillator settle wait of a
	// frequency change is cancelled. The chip keeps the new prescaler but its
	// channels are not restarted.
	ErrSettleInterrupted = errors.New("settle wait interrupted")
	// ErrClosed is returned by every operation after Shutdown.
	ErrClosed = errors.New("device is shut down")
)

// ConfigError is a request rejected before any register access.
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("pca9685: %s %v: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func validateChannel(index int) error {
	if index < 0 || index >= NumChannels {
		return &ConfigError{Field: "channel", Value: index, Err: fmt.Errorf("%w (0-%d)", ErrInvalidChannel, NumChannels-1)}
	}
	return nil
}

func (d *Device) ioErr(op string, err error) error {
	return fmt.Errorf("pca9685 0x%02X: %s: %w: %w", d.addr, op, ErrTransport, err)
}
