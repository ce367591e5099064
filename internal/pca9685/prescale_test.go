package pca9685

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestFrequencyToPrescale_KnownValues(t *testing.T) {
	cases := []struct {
		hz   int
		want byte
	}{
		{40, 152},
		{50, 121},
		{200, PowerOnPrescale},
		{333, 17},
		{1000, 5},
	}
	for _, tc := range cases {
		if got := FrequencyToPrescale(tc.hz); got != tc.want {
			t.Fatalf("FrequencyToPrescale(%d)=%d want %d", tc.hz, got, tc.want)
		}
	}
}

func TestPrescaleToFrequency_KnownValues(t *testing.T) {
	cases := []struct {
		prescale byte
		want     int
	}{
		{PowerOnPrescale, 197},
		{121, 50},
		{17, 339},
		{5, 1017},
		{152, 40},
	}
	for _, tc := range cases {
		if got := PrescaleToFrequency(tc.prescale); got != tc.want {
			t.Fatalf("PrescaleToFrequency(%d)=%d want %d", tc.prescale, got, tc.want)
		}
	}
}

func TestFrequencyCodec_RoundTripWithinQuantization(t *testing.T) {
	base := float64(OscillatorHz) / float64(Steps)
	for f := MinFrequency; f <= MaxFrequency; f++ {
		p := FrequencyToPrescale(f)

		// The prescaler is the nearest representable value.
		exact := base/float64(f) - 1
		if math.Abs(exact-float64(p)) > 0.5 {
			t.Fatalf("f=%d prescale=%d exact=%.3f", f, p, exact)
		}

		// f stays within one prescaler step of what the chip produces.
		lo := PrescaleToFrequency(p+1) - 1
		hi := PrescaleToFrequency(p-1) + 1
		if f < lo || f > hi {
			t.Fatalf("f=%d prescale=%d outside [%d,%d]", f, p, lo, hi)
		}
		if back := PrescaleToFrequency(p); back < lo || back > hi {
			t.Fatalf("f=%d back=%d outside [%d,%d]", f, back, lo, hi)
		}
	}
}

func TestValidateFrequency(t *testing.T) {
	for _, hz := range []int{MinFrequency, 200, MaxFrequency} {
		if err := ValidateFrequency(hz); err != nil {
			t.Fatalf("hz=%d err=%v", hz, err)
		}
	}
	for _, hz := range []int{0, 39, 1001, -5} {
		err := ValidateFrequency(hz)
		if !errors.Is(err, ErrInvalidFrequency) {
			t.Fatalf("hz=%d err=%v want ErrInvalidFrequency", hz, err)
		}
		var ce *ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("hz=%d err=%T want *ConfigError", hz, err)
		}
	}
	if err := ValidateFrequency(1001); !strings.Contains(err.Error(), "1001 Hz") {
		t.Fatalf("err=%q want offending value", err)
	}
}
