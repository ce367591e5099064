package pca9685

import (
	"math"
	"sync"
)

// Channel is one PWM output of a Device. It remembers the commanded duty
// cycle and phase shift; the waveform itself only lives in the chip.
type Channel struct {
	dev   *Device
	index int

	mu    sync.Mutex
	duty  float64
	phase float64
	on    bool
}

// NewChannel validates index and returns a channel with an automatic phase
// shift. It performs no bus traffic.
func (d *Device) NewChannel(index int) (*Channel, error) {
	if err := validateChannel(index); err != nil {
		return nil, err
	}
	return &Channel{dev: d, index: index, phase: AutoPhase}, nil
}

func (c *Channel) Index() int { return c.index }

func (c *Channel) Device() *Device { return c.dev }

// SetDutyCycle stores the duty cycle, clamped to 0..100 %. It takes effect on
// the next On.
func (c *Channel) SetDutyCycle(duty float64) {
	if math.IsNaN(duty) || duty < 0 {
		duty = 0
	}
	if duty > 100 {
		duty = 100
	}
	c.mu.Lock()
	c.duty = duty
	c.mu.Unlock()
}

func (c *Channel) DutyCycle() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duty
}

// SetPhaseShift stores the phase shift. Negative values select AutoPhase,
// values above 100 % are clamped. It takes effect on the next On.
func (c *Channel) SetPhaseShift(phase float64) {
	switch {
	case math.IsNaN(phase) || phase < 0:
		phase = AutoPhase
	case phase > 100:
		phase = 100
	}
	c.mu.Lock()
	c.phase = phase
	c.mu.Unlock()
}

// PhaseShift returns the effective phase shift; with AutoPhase that is the
// duty cycle itself.
func (c *Channel) PhaseShift() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase < 0 {
		return c.duty
	}
	return c.phase
}

// AutoPhase reports whether the phase shift follows the duty cycle.
func (c *Channel) AutoPhase() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase < 0
}

// On applies the stored duty cycle and phase shift. A zero duty cycle turns
// the channel off instead.
func (c *Channel) On() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.duty <= 0 {
		return c.offLocked()
	}
	if err := c.dev.On(c.index, c.duty, c.phase); err != nil {
		return err
	}
	c.on = true
	return nil
}

// Set stores duty and phase and applies them.
func (c *Channel) Set(duty, phase float64) error {
	c.SetDutyCycle(duty)
	c.SetPhaseShift(phase)
	return c.On()
}

// Off forces the output low and resets the duty cycle to zero.
func (c *Channel) Off() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offLocked()
}

func (c *Channel) offLocked() error {
	if err := c.dev.Off(c.index); err != nil {
		return err
	}
	c.on = false
	c.duty = 0
	return nil
}

func (c *Channel) IsOn() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on
}

// Frequency is chip-wide; see Device.Frequency.
func (c *Channel) Frequency() (int, error) { return c.dev.Frequency() }

func (c *Channel) ActualFrequency() (int, error) { return c.dev.ActualFrequency() }
