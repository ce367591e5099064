package pca9685

import (
	"errors"
	"testing"
)

func TestNewChannel_ValidatesWithoutIO(t *testing.T) {
	d, sim := newTestDevice(t)
	for _, idx := range []int{-1, 16, 100} {
		if _, err := d.NewChannel(idx); !errors.Is(err, ErrInvalidChannel) {
			t.Fatalf("NewChannel(%d) err=%v", idx, err)
		}
	}
	ch, err := d.NewChannel(7)
	if err != nil {
		t.Fatalf("NewChannel: %v", err)
	}
	if ch.Index() != 7 || !ch.AutoPhase() || ch.IsOn() {
		t.Fatalf("unexpected initial state")
	}
	if sim.Reads() != 0 || len(sim.Writes()) != 0 {
		t.Fatalf("bus touched")
	}
}

func TestChannel_PhaseShiftRules(t *testing.T) {
	d, _ := newTestDevice(t)
	ch, _ := d.NewChannel(0)

	ch.SetDutyCycle(40)
	if got := ch.PhaseShift(); got != 40 {
		t.Fatalf("auto phase=%v want duty 40", got)
	}
	ch.SetPhaseShift(150)
	if got := ch.PhaseShift(); got != 100 {
		t.Fatalf("phase=%v want 100", got)
	}
	ch.SetPhaseShift(-3)
	if !ch.AutoPhase() {
		t.Fatalf("negative phase did not select auto")
	}
	ch.SetDutyCycle(120)
	if got := ch.DutyCycle(); got != 100 {
		t.Fatalf("duty=%v want 100", got)
	}
}

func TestChannel_OnOff(t *testing.T) {
	d, sim := newTestDevice(t)
	ch, _ := d.NewChannel(2)

	if err := ch.Set(25, 10); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if !ch.IsOn() {
		t.Fatalf("IsOn=false")
	}
	wf, err := d.Waveform(2)
	if err != nil {
		t.Fatalf("Waveform: %v", err)
	}
	if wf != (Waveform{On: 409, Off: 1433}) {
		t.Fatalf("waveform=%v", wf)
	}
	if wf.DutyCycle() != 25 {
		t.Fatalf("duty readback=%v", wf.DutyCycle())
	}

	sim.ResetLog()
	if err := ch.Off(); err != nil {
		t.Fatalf("Off: %v", err)
	}
	if ch.IsOn() || ch.DutyCycle() != 0 {
		t.Fatalf("channel state after Off: on=%v duty=%v", ch.IsOn(), ch.DutyCycle())
	}
	wantWrites(t, sim.Writes(), w(0x0E, 0), w(0x0F, 0), w(0x10, 0), w(0x11, 0x10))
}

func TestChannel_OnWithZeroDutyTurnsOff(t *testing.T) {
	d, sim := newTestDevice(t)
	ch, _ := d.NewChannel(0)
	if err := ch.On(); err != nil {
		t.Fatalf("On: %v", err)
	}
	if ch.IsOn() {
		t.Fatalf("IsOn=true with zero duty")
	}
	wantWrites(t, sim.Writes(), w(0x06, 0), w(0x07, 0), w(0x08, 0), w(0x09, 0x10))
}

func TestChannel_TransportFaultKeepsState(t *testing.T) {
	d, sim := newTestDevice(t)
	ch, _ := d.NewChannel(0)
	sim.SetFault(func(write bool, reg byte) error { return errors.New("nack") })
	err := ch.Set(50, AutoPhase)
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("err=%v want ErrTransport", err)
	}
	if ch.IsOn() {
		t.Fatalf("IsOn=true after failed write")
	}
}

func TestChannel_Frequency(t *testing.T) {
	d, _ := newTestDevice(t)
	ch, _ := d.NewChannel(0)
	if f, err := ch.Frequency(); err != nil || f != DefaultFrequency {
		t.Fatalf("Frequency=%d err=%v", f, err)
	}
	if f, err := ch.ActualFrequency(); err != nil || f != 197 {
		t.Fatalf("ActualFrequency=%d err=%v", f, err)
	}
}
