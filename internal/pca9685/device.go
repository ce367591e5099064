// Package pca9685 drives the NXP PCA9685 16-channel, 12-bit PWM controller.
//
// A Device owns one chip. Every operation that touches more than one register
// runs under the device lock, so concurrent callers only ever observe the
// register state before or after a transaction. Mode registers are always read
// from the chip before they are modified; the driver never writes a cached
// copy back.
package pca9685

import (
	"context"
	"fmt"
	"sync"
	"time"

	"servopwm/internal/i2c"
)

// settleDelay is the wait between rewriting PRE_SCALE and asserting RESTART.
// The datasheet asks for 500 us of oscillator start-up; 5 ms leaves margin
// for slow buses.
const settleDelay = 5 * time.Millisecond

var settle = func(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type Device struct {
	mu   sync.Mutex
	io   i2c.RegIO
	addr uint16

	requested int
	actual    int
	closed    bool
}

// New returns a Device talking to the chip at addr through io. No bus traffic
// happens until Initialize.
func New(io i2c.RegIO, addr uint16) (*Device, error) {
	if io == nil {
		return nil, fmt.Errorf("pca9685: register io is nil")
	}
	return &Device{
		io:        io,
		addr:      addr,
		requested: DefaultFrequency,
		actual:    DefaultFrequency,
	}, nil
}

func (d *Device) Address() uint16 { return d.addr }

// Initialize seeds the frequency state from the live prescaler and writes the
// default mode registers; the chip does not keep Mode1/Mode2 across a power
// cycle.
func (d *Device) Initialize() error {
	const op = "initialize"
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if err := d.refreshFrequencyLocked(); err != nil {
		return d.ioErr(op, err)
	}
	if err := d.writeDefaultsLocked(); err != nil {
		return d.ioErr(op, err)
	}
	return nil
}

// Shutdown detaches the driver. The chip keeps running with its current
// registers; every later call returns ErrClosed.
func (d *Device) Shutdown() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

// On drives channel index at duty percent with the given phase shift
// (AutoPhase or 0..100 %).
func (d *Device) On(index int, duty, phase float64) error {
	if err := validateChannel(index); err != nil {
		return err
	}
	if err := validateWave(duty, phase); err != nil {
		return err
	}
	return d.writeWaveform("on", index, Encode(duty, phase))
}

// Off forces channel index fully low, whatever phase it ran with.
func (d *Device) Off(index int) error {
	if err := validateChannel(index); err != nil {
		return err
	}
	return d.writeWaveform("off", index, AlwaysLow)
}

// SetWaveform writes raw ON/OFF counts, e.g. for servo pulses computed by
// the caller. Counts above 0x1FFF are rejected.
func (d *Device) SetWaveform(index int, w Waveform) error {
	if err := validateChannel(index); err != nil {
		return err
	}
	if w.On > 0x1FFF || w.Off > 0x1FFF {
		return &ConfigError{Field: "waveform", Value: w, Err: ErrInvalidDutyCycle}
	}
	return d.writeWaveform("set waveform", index, w)
}

func (d *Device) writeWaveform(op string, index int, w Waveform) error {
	base := channelBase(index)
	b := w.Bytes()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	for i, v := range b {
		if err := d.io.WriteReg(base+byte(i), v); err != nil {
			return d.ioErr(fmt.Sprintf("%s channel %d", op, index), err)
		}
	}
	return nil
}

// Waveform reads back the ON/OFF counts of channel index.
func (d *Device) Waveform(index int) (Waveform, error) {
	if err := validateChannel(index); err != nil {
		return Waveform{}, err
	}
	base := channelBase(index)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return Waveform{}, ErrClosed
	}
	var b [4]byte
	for i := range b {
		v, err := d.io.ReadRegU8(base + byte(i))
		if err != nil {
			return Waveform{}, d.ioErr(fmt.Sprintf("read channel %d", index), err)
		}
		b[i] = v
	}
	return WaveformFromBytes(b), nil
}

// Frequency returns the last requested frequency, re-validated against the
// live prescaler.
func (d *Device) Frequency() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	if err := d.refreshFrequencyLocked(); err != nil {
		return 0, d.ioErr("get frequency", err)
	}
	return d.requested, nil
}

// ActualFrequency returns the frequency the prescaler really produces.
func (d *Device) ActualFrequency() (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	if err := d.refreshFrequencyLocked(); err != nil {
		return 0, d.ioErr("get actual frequency", err)
	}
	return d.actual, nil
}

// refreshFrequencyLocked re-reads PRE_SCALE. The requested frequency survives
// as long as it still maps to the live prescaler; the power-on prescaler means
// "never configured" and reports DefaultFrequency; anything else was written
// behind our back and is adopted.
func (d *Device) refreshFrequencyLocked() error {
	p, err := d.io.ReadRegU8(regPrescale)
	if err != nil {
		return err
	}
	d.actual = PrescaleToFrequency(p)
	switch {
	case d.requested >= MinFrequency && d.requested <= MaxFrequency && FrequencyToPrescale(d.requested) == p:
	case p == PowerOnPrescale:
		d.requested = DefaultFrequency
	default:
		d.requested = d.actual
	}
	return nil
}

// SetFrequency changes the PWM frequency of all channels.
func (d *Device) SetFrequency(hz int) error {
	return d.SetFrequencyContext(context.Background(), hz)
}

// SetFrequencyContext changes the PWM frequency of all channels. The
// oscillator is stopped (SLEEP) while PRE_SCALE is rewritten, Mode1 is
// restored, and after the settle delay RESTART is asserted so the channels
// resume. ctx only bounds the settle delay.
func (d *Device) SetFrequencyContext(ctx context.Context, hz int) error {
	const op = "set frequency"
	if err := ValidateFrequency(hz); err != nil {
		return err
	}
	target := FrequencyToPrescale(hz)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}

	cur, err := d.io.ReadRegU8(regPrescale)
	if err != nil {
		return d.ioErr(op, err)
	}
	if cur == target {
		d.requested = hz
		d.actual = PrescaleToFrequency(cur)
		return nil
	}

	mode1, err := d.io.ReadRegU8(regMode1)
	if err != nil {
		return d.ioErr(op, err)
	}
	mode1 &^= mode1Restart
	if mode1&mode1Sleep == 0 {
		if err := d.io.WriteReg(regMode1, mode1|mode1Sleep); err != nil {
			return d.ioErr(op, err)
		}
	}
	if err := d.io.WriteReg(regPrescale, target); err != nil {
		return d.ioErr(op, err)
	}
	if err := d.io.WriteReg(regMode1, mode1); err != nil {
		return d.ioErr(op, err)
	}
	if err := settle(ctx, settleDelay); err != nil {
		return fmt.Errorf("pca9685 0x%02X: %s: %w: %w", d.addr, op, ErrSettleInterrupted, err)
	}
	if err := d.io.WriteReg(regMode1, mode1|mode1Restart); err != nil {
		return d.ioErr(op, err)
	}
	d.requested = hz

	p, err := d.io.ReadRegU8(regPrescale)
	if err != nil {
		return d.ioErr(op, err)
	}
	d.actual = PrescaleToFrequency(p)
	return nil
}

// Sleep stops the oscillator. All outputs go off; register contents stay.
func (d *Device) Sleep() error {
	return d.setSleep("sleep", true)
}

// Wake restarts the oscillator.
func (d *Device) Wake() error {
	return d.setSleep("wake", false)
}

func (d *Device) setSleep(op string, sleep bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	mode1, err := d.io.ReadRegU8(regMode1)
	if err != nil {
		return d.ioErr(op, err)
	}
	if (mode1&mode1Sleep != 0) == sleep {
		return nil
	}
	next := mode1 &^ (mode1Sleep | mode1Restart)
	if sleep {
		next |= mode1Sleep
	}
	if err := d.io.WriteReg(regMode1, next); err != nil {
		return d.ioErr(op, err)
	}
	return nil
}

// IsSleeping reports the live SLEEP bit.
func (d *Device) IsSleeping() (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, ErrClosed
	}
	mode1, err := d.io.ReadRegU8(regMode1)
	if err != nil {
		return false, d.ioErr("is sleeping", err)
	}
	return mode1&mode1Sleep != 0, nil
}

// SetModeRegisterDefaults writes Mode1Default and Mode2Default.
func (d *Device) SetModeRegisterDefaults() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if err := d.writeDefaultsLocked(); err != nil {
		return d.ioErr("set mode defaults", err)
	}
	return nil
}

func (d *Device) writeDefaultsLocked() error {
	if err := d.io.WriteReg(regMode1, Mode1Default); err != nil {
		return err
	}
	return d.io.WriteReg(regMode2, Mode2Default)
}
