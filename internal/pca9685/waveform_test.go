package pca9685

import "testing"

func TestOnSteps_Monotonic(t *testing.T) {
	prev := OnSteps(0)
	if prev != 0 {
		t.Fatalf("OnSteps(0)=%d", prev)
	}
	for i := 1; i <= 10000; i++ {
		duty := float64(i) / 100
		s := OnSteps(duty)
		if s < prev {
			t.Fatalf("OnSteps(%.2f)=%d < %d", duty, s, prev)
		}
		prev = s
	}
	if prev != Steps {
		t.Fatalf("OnSteps(100)=%d want %d", prev, Steps)
	}
}

func TestEncode_Boundaries(t *testing.T) {
	for _, phase := range []float64{AutoPhase, 0, 10, 50, 100} {
		if got := Encode(0, phase); got != (Waveform{On: 0, Off: 0x1000}) {
			t.Fatalf("Encode(0,%v)=%v want always low", phase, got)
		}
		if got := Encode(100, phase); got != (Waveform{On: 0x1000, Off: 0}) {
			t.Fatalf("Encode(100,%v)=%v want always high", phase, got)
		}
	}
	// Rounds up into full-on.
	if got := Encode(99.99, AutoPhase); got != AlwaysHigh {
		t.Fatalf("Encode(99.99)=%v want always high", got)
	}
	// Rounds down into full-off.
	if got := Encode(0.01, AutoPhase); got != AlwaysLow {
		t.Fatalf("Encode(0.01)=%v want always low", got)
	}
}

func TestEncode_Cases(t *testing.T) {
	cases := []struct {
		name         string
		duty, phase  float64
		wantOn, want uint16
	}{
		{"half auto", 50, AutoPhase, 2047, 4095},
		{"quarter auto", 25, AutoPhase, 1023, 2047},
		{"wrap auto", 75, AutoPhase, 3071, 2047},
		{"explicit phase", 25, 10, 409, 1433},
		{"zero phase", 10, 0, 4095, 409},
		{"full phase", 50, 100, 4095, 2047},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := Encode(tc.duty, tc.phase)
			if w.On != tc.wantOn || w.Off != tc.want {
				t.Fatalf("Encode(%v,%v)=%v want on=%d off=%d", tc.duty, tc.phase, w, tc.wantOn, tc.want)
			}
		})
	}
}

func TestEncode_AutoPhaseEdge(t *testing.T) {
	for i := 1; i < 1000; i++ {
		duty := float64(i) / 10
		steps := OnSteps(duty)
		if steps == 0 || steps == Steps {
			continue
		}
		w := Encode(duty, AutoPhase)
		if int(w.On) != steps-1 {
			t.Fatalf("duty=%v on=%d want %d", duty, w.On, steps-1)
		}
	}
}

func TestEncode_ExplicitPhaseEdge(t *testing.T) {
	for p := 1; p <= 100; p++ {
		w := Encode(30, float64(p))
		want := OnSteps(float64(p)) - 1
		if int(w.On) != want {
			t.Fatalf("phase=%d on=%d want %d", p, w.On, want)
		}
	}
}

func TestEncode_Wraparound(t *testing.T) {
	for i := 1; i < 100; i++ {
		for _, phase := range []float64{AutoPhase, 5, 60, 95} {
			duty := float64(i)
			w := Encode(duty, phase)
			steps := OnSteps(duty)
			on := int(w.On)
			if on > Steps-1 || int(w.Off) > Steps-1 {
				t.Fatalf("duty=%v phase=%v counts out of range: %v", duty, phase, w)
			}
			if on+steps > Steps-1 {
				if int(w.Off) != on+steps-Steps {
					t.Fatalf("duty=%v phase=%v off=%d want %d", duty, phase, w.Off, on+steps-Steps)
				}
				if w.Off >= w.On {
					t.Fatalf("duty=%v phase=%v wrapped off=%d not before on=%d", duty, phase, w.Off, w.On)
				}
			} else if int(w.Off) != on+steps {
				t.Fatalf("duty=%v phase=%v off=%d want %d", duty, phase, w.Off, on+steps)
			}
			if got := w.DutyCycle(); got != float64(steps)*100/Steps {
				t.Fatalf("duty=%v phase=%v decoded duty=%v", duty, phase, got)
			}
		}
	}
}

func TestWaveform_Bytes(t *testing.T) {
	if got := (Waveform{On: 2047, Off: 4095}).Bytes(); got != [4]byte{0xFF, 0x07, 0xFF, 0x0F} {
		t.Fatalf("bytes=%v", got)
	}
	if got := AlwaysLow.Bytes(); got != [4]byte{0x00, 0x00, 0x00, 0x10} {
		t.Fatalf("always low bytes=%v", got)
	}
	if got := AlwaysHigh.Bytes(); got != [4]byte{0x00, 0x10, 0x00, 0x00} {
		t.Fatalf("always high bytes=%v", got)
	}
}

func TestWaveformFromBytes(t *testing.T) {
	w := WaveformFromBytes([4]byte{0xFF, 0xE7, 0xFF, 0x0F})
	if w != (Waveform{On: 2047, Off: 4095}) {
		t.Fatalf("w=%v, reserved bits not masked", w)
	}
	if d := WaveformFromBytes(AlwaysLow.Bytes()).DutyCycle(); d != 0 {
		t.Fatalf("always low duty=%v", d)
	}
	if d := WaveformFromBytes(AlwaysHigh.Bytes()).DutyCycle(); d != 100 {
		t.Fatalf("always high duty=%v", d)
	}
	// Full-off overrides full-on.
	if d := (Waveform{On: 0x1000, Off: 0x1000}).DutyCycle(); d != 0 {
		t.Fatalf("both bits duty=%v", d)
	}
}
