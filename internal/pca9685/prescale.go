package pca9685

import (
	"fmt"
	"math"
)

const (
	MinFrequency = 40
	MaxFrequency = 1000

	// DefaultFrequency is assumed when the prescaler still holds its power-on
	// value, so an unconfigured chip reports 200 Hz rather than 197 Hz.
	DefaultFrequency = 200
)

// FrequencyToPrescale returns the PRE_SCALE value for hz:
// round(osc / 4096 / hz - 1), rounding half up.
func FrequencyToPrescale(hz int) byte {
	v := float64(OscillatorHz) / float64(Steps) / float64(hz)
	v -= 1.0
	return byte(int(math.Floor(v + 0.5)))
}

// PrescaleToFrequency returns the output frequency produced by a PRE_SCALE
// value, rounded half up to whole hertz.
func PrescaleToFrequency(prescale byte) int {
	v := float64(OscillatorHz) / float64(Steps) / (float64(prescale) + 1.0)
	return int(math.Floor(v + 0.5))
}

// ValidateFrequency rejects frequencies outside MinFrequency..MaxFrequency.
func ValidateFrequency(hz int) error {
	if hz < MinFrequency || hz > MaxFrequency {
		return &ConfigError{
			Field: "frequency",
			Value: fmt.Sprintf("%d Hz", hz),
			Err:   fmt.Errorf("%w (%d Hz - %d Hz)", ErrInvalidFrequency, MinFrequency, MaxFrequency),
		}
	}
	return nil
}
