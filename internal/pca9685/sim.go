package pca9685

import "servopwm/internal/i2c"

// NewSimulator returns an in-memory register file that starts in the chip's
// power-on state and mimics the register behaviour the driver relies on:
// RESTART reads back cleared after it is written, and PRE_SCALE ignores writes
// while the oscillator runs.
func NewSimulator(addr uint16) *i2c.MemDev {
	m := i2c.NewMemDev(addr)
	m.Poke(regMode1, 0x11)
	m.Poke(regMode2, 0x04)
	m.Poke(regPrescale, PowerOnPrescale)
	for ch := 0; ch < NumChannels; ch++ {
		m.Poke(channelBase(ch)+3, 0x10)
	}
	m.SetFilter(simFilter)
	return m
}

func simFilter(regs []byte, reg, val byte) (byte, bool) {
	switch reg {
	case regMode1:
		return val &^ mode1Restart, true
	case regPrescale:
		return val, regs[regMode1]&mode1Sleep != 0
	}
	return val, true
}
