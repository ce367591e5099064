package pca9685

import (
	"fmt"
	"math"
)

// AutoPhase selects the default phase shift: the rising edge is delayed by
// the channel's own ON duration, which spreads the edges of channels running
// at different duty cycles across the frame.
const AutoPhase = -1.0

// Waveform is the ON/OFF counter pair of one channel. Either value may carry
// the full-on bit (0x1000) instead of a 12-bit count.
type Waveform struct {
	On  uint16
	Off uint16
}

var (
	// AlwaysLow is the full-off pattern.
	AlwaysLow = Waveform{On: 0, Off: fullOn}
	// AlwaysHigh is the full-on pattern.
	AlwaysHigh = Waveform{On: fullOn, Off: 0}
)

// OnSteps returns the number of counts of a 4096-step frame the output is
// high for duty percent, rounded half up.
func OnSteps(duty float64) int {
	return int(math.Floor(float64(Steps)*duty/100.0 + 0.5))
}

// Encode converts a duty cycle (0..100 %) and phase shift (AutoPhase or
// 0..100 %) into ON/OFF counts. Arguments are assumed validated.
//
// When OFF falls past the end of the frame it is carried into the next frame,
// leaving OFF < ON in the registers; the chip treats that as a high interval
// spanning the frame boundary.
func Encode(duty, phase float64) Waveform {
	steps := OnSteps(duty)
	switch {
	case steps >= Steps:
		return AlwaysHigh
	case steps <= 0:
		return AlwaysLow
	}

	var on int
	if phase < 0 {
		on = steps - 1
	} else {
		on = int(math.Floor(float64(Steps)*phase/100.0+0.5)) - 1
	}
	// A zero phase puts the edge on the last count of the previous frame.
	if on < 0 {
		on += Steps
	}
	if on > Steps-1 {
		on = Steps - 1
	}

	off := on + steps
	if off > Steps-1 {
		off -= Steps
	}
	return Waveform{On: uint16(on), Off: uint16(off)}
}

// Bytes returns the register quartet in write order:
// ON_L, ON_H, OFF_L, OFF_H.
func (w Waveform) Bytes() [4]byte {
	return [4]byte{
		byte(w.On & 0xFF),
		byte(w.On >> 8),
		byte(w.Off & 0xFF),
		byte(w.Off >> 8),
	}
}

// WaveformFromBytes decodes a register quartet read back from the chip.
// Reserved high bits of the _H registers are ignored.
func WaveformFromBytes(b [4]byte) Waveform {
	return Waveform{
		On:  uint16(b[0]) | uint16(b[1]&0x1F)<<8,
		Off: uint16(b[2]) | uint16(b[3]&0x1F)<<8,
	}
}

// DutyCycle returns the percentage of the frame the output is high.
// Full-off wins over full-on, as on the chip.
func (w Waveform) DutyCycle() float64 {
	switch {
	case w.Off&fullOn != 0:
		return 0
	case w.On&fullOn != 0:
		return 100
	}
	on := int(w.On & 0x0FFF)
	off := int(w.Off & 0x0FFF)
	high := off - on
	if high < 0 {
		high += Steps
	}
	return float64(high) * 100.0 / float64(Steps)
}

func (w Waveform) String() string {
	return fmt.Sprintf("on=0x%03X off=0x%03X", w.On, w.Off)
}

func validateWave(duty, phase float64) error {
	if math.IsNaN(duty) || duty < 0 || duty > 100 {
		return &ConfigError{Field: "duty cycle", Value: duty, Err: ErrInvalidDutyCycle}
	}
	if math.IsNaN(phase) || phase > 100 {
		return &ConfigError{Field: "phase shift", Value: phase, Err: ErrInvalidPhaseShift}
	}
	return nil
}
