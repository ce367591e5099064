package pca9685

import (
	"errors"
	"testing"
)

func TestOutputPolarity_RoundTripAndNoRedundantWrite(t *testing.T) {
	d, sim := newTestDevice(t)

	if err := d.SetOutputPolarity(PolarityInverted); err != nil {
		t.Fatalf("SetOutputPolarity: %v", err)
	}
	wantWrites(t, sim.Writes(), w(regMode2, Mode2Default|mode2Invrt))
	p, err := d.OutputPolarity()
	if err != nil || p != PolarityInverted {
		t.Fatalf("OutputPolarity=%v err=%v", p, err)
	}

	sim.ResetLog()
	if err := d.SetOutputPolarity(PolarityInverted); err != nil {
		t.Fatalf("SetOutputPolarity: %v", err)
	}
	if n := len(sim.Writes()); n != 0 {
		t.Fatalf("writes=%d want 0", n)
	}
	if sim.Reads() != 1 {
		t.Fatalf("reads=%d want 1", sim.Reads())
	}
}

func TestOutputDriverType(t *testing.T) {
	d, sim := newTestDevice(t)
	if got, _ := d.OutputDriverType(); got != DriverTotemPole {
		t.Fatalf("driver=%v want TOTEM_POLE", got)
	}
	if err := d.SetOutputDriverType(DriverOpenDrain); err != nil {
		t.Fatalf("SetOutputDriverType: %v", err)
	}
	wantWrites(t, sim.Writes(), w(regMode2, 0x08))
	if got, _ := d.OutputDriverType(); got != DriverOpenDrain {
		t.Fatalf("driver=%v want OPEN_DRAIN", got)
	}
}

func TestOutputsChangeMode(t *testing.T) {
	d, sim := newTestDevice(t)
	if got, _ := d.OutputsChangeMode(); got != ChangeOnAck {
		t.Fatalf("och=%v want ACK", got)
	}
	if err := d.SetOutputsChangeMode(ChangeOnStop); err != nil {
		t.Fatalf("SetOutputsChangeMode: %v", err)
	}
	wantWrites(t, sim.Writes(), w(regMode2, 0x04))
	if got, _ := d.OutputsChangeMode(); got != ChangeOnStop {
		t.Fatalf("och=%v want STOP", got)
	}
}

func TestOutNEMode_Normalization(t *testing.T) {
	d, sim := newTestDevice(t)
	cases := []struct {
		mode2 byte
		want  OutNEMode
		bits  string
	}{
		{0x00, OutNELow, "00"},
		{0x01, OutNEHighImpedance, "01"}, // high on open drain floats
		{0x05, OutNEHigh, "01"},          // high on totem pole
		{0x06, OutNEHighImpedance, "10"},
		{0x07, OutNEHighImpedance, "11"}, // reserved code
		{0x03, OutNEHighImpedance, "11"},
	}
	for _, tc := range cases {
		sim.Poke(regMode2, tc.mode2)
		got, err := d.OutNEMode()
		if err != nil || got != tc.want {
			t.Fatalf("mode2=0x%02X OutNEMode=%v err=%v want %v", tc.mode2, got, err, tc.want)
		}
		bits, err := d.OutNEModeBits()
		if err != nil || bits != tc.bits {
			t.Fatalf("mode2=0x%02X bits=%q want %q", tc.mode2, bits, tc.bits)
		}
	}
}

func TestSetOutNEMode(t *testing.T) {
	d, sim := newTestDevice(t)

	if err := d.SetOutNEMode(OutNEHigh); err != nil {
		t.Fatalf("SetOutNEMode: %v", err)
	}
	wantWrites(t, sim.Writes(), w(regMode2, 0x0D))

	// Reserved code 3 already decodes as high impedance.
	sim.Poke(regMode2, 0x0F)
	sim.ResetLog()
	if err := d.SetOutNEMode(OutNEHighImpedance); err != nil {
		t.Fatalf("SetOutNEMode: %v", err)
	}
	if n := len(sim.Writes()); n != 0 {
		t.Fatalf("writes=%d want 0", n)
	}

	if err := d.SetOutNEMode(OutNELow); err != nil {
		t.Fatalf("SetOutNEMode: %v", err)
	}
	if got := sim.Peek(regMode2); got != 0x0C {
		t.Fatalf("mode2=0x%02X want 0x0C", got)
	}
}

func TestSetMode_RejectsUndefinedValues(t *testing.T) {
	d, sim := newTestDevice(t)
	errs := []error{
		d.SetOutNEMode(OutNEMode(3)),
		d.SetOutputPolarity(OutputPolarity(1)),
		d.SetOutputDriverType(OutputDriver(0x10)),
		d.SetOutputsChangeMode(OutputsChangeMode(0x80)),
	}
	for i, err := range errs {
		if !errors.Is(err, ErrInvalidMode) {
			t.Fatalf("case %d err=%v want ErrInvalidMode", i, err)
		}
	}
	if sim.Reads() != 0 {
		t.Fatalf("bus touched")
	}
}

func TestMode2Snapshot(t *testing.T) {
	d, sim := newTestDevice(t)
	sim.Poke(regMode2, 0x11)
	m, err := d.Mode2()
	if err != nil {
		t.Fatalf("Mode2: %v", err)
	}
	if m.Polarity != PolarityInverted || m.Driver != DriverOpenDrain || m.OutputsChange != ChangeOnStop {
		t.Fatalf("m=%+v", m)
	}
	if m.OutNE != OutNEHighImpedance || m.OutNEBits != "01" || m.Raw != 0x11 {
		t.Fatalf("m=%+v", m)
	}
}

func TestModeStrings(t *testing.T) {
	if PolarityInverted.String() != "INVERTED" || PolarityInverted.Bit() != 1 || PolarityNormal.Bit() != 0 {
		t.Fatalf("polarity strings")
	}
	if DriverTotemPole.String() != "TOTEM_POLE" || DriverOpenDrain.String() != "OPEN_DRAIN" {
		t.Fatalf("driver strings")
	}
	if OutNEHighImpedance.String() != "FLOATING" || ChangeOnAck.String() != "ACK" {
		t.Fatalf("mode strings")
	}
}
