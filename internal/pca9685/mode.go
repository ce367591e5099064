package pca9685

import "fmt"

// OutputPolarity is the INVRT field of Mode2.
type OutputPolarity byte

const (
	PolarityNormal   OutputPolarity = 0
	PolarityInverted OutputPolarity = mode2Invrt
)

func (p OutputPolarity) String() string {
	if p == PolarityInverted {
		return "INVERTED"
	}
	return "NORMAL"
}

// Bit returns the field as it appears in a datasheet table (0 or 1).
func (p OutputPolarity) Bit() int { return bit(byte(p)) }

// OutputDriver is the OUTDRV field of Mode2.
type OutputDriver byte

const (
	DriverOpenDrain OutputDriver = 0
	DriverTotemPole OutputDriver = mode2Outdrv
)

func (d OutputDriver) String() string {
	if d == DriverTotemPole {
		return "TOTEM_POLE"
	}
	return "OPEN_DRAIN"
}

func (d OutputDriver) Bit() int { return bit(byte(d)) }

// OutputsChangeMode is the OCH field of Mode2: outputs latch on the I2C STOP
// condition or on each ACK.
type OutputsChangeMode byte

const (
	ChangeOnStop OutputsChangeMode = 0
	ChangeOnAck  OutputsChangeMode = mode2Och
)

func (m OutputsChangeMode) String() string {
	if m == ChangeOnAck {
		return "ACK"
	}
	return "STOP"
}

func (m OutputsChangeMode) Bit() int { return bit(byte(m)) }

// OutNEMode is the OUTNE field of Mode2: what the outputs do while the
// active-low OE pin is high.
type OutNEMode byte

const (
	OutNELow           OutNEMode = 0
	OutNEHigh          OutNEMode = 1
	OutNEHighImpedance OutNEMode = 2
)

func (m OutNEMode) String() string {
	switch m {
	case OutNELow:
		return "LOW"
	case OutNEHigh:
		return "HIGH"
	case OutNEHighImpedance:
		return "FLOATING"
	}
	return fmt.Sprintf("OutNEMode(%d)", byte(m))
}

func (m OutNEMode) valid() bool { return m <= OutNEHighImpedance }

// decodeOutNE maps the raw 2-bit field, folding the reserved code 3 into
// high impedance.
func decodeOutNE(raw byte) OutNEMode {
	raw &= mode2Outne
	if raw > byte(OutNEHighImpedance) {
		return OutNEHighImpedance
	}
	return OutNEMode(raw)
}

// effectiveOutNE applies the driver-type rule: "high" on an open-drain output
// cannot drive high, so the pin floats.
func effectiveOutNE(mode2 byte) OutNEMode {
	m := decodeOutNE(mode2)
	if m == OutNEHigh && mode2&mode2Outdrv == 0 {
		return OutNEHighImpedance
	}
	return m
}

func outNEBits(mode2 byte) string {
	return fmt.Sprintf("%02b", mode2&mode2Outne)
}

func bit(v byte) int {
	if v != 0 {
		return 1
	}
	return 0
}

// Mode2 is a decoded snapshot of the Mode2 register.
type Mode2 struct {
	Polarity      OutputPolarity
	Driver        OutputDriver
	OutputsChange OutputsChangeMode
	OutNE         OutNEMode
	OutNEBits     string
	Raw           byte
}

func decodeMode2(raw byte) Mode2 {
	return Mode2{
		Polarity:      OutputPolarity(raw & mode2Invrt),
		Driver:        OutputDriver(raw & mode2Outdrv),
		OutputsChange: OutputsChangeMode(raw & mode2Och),
		OutNE:         effectiveOutNE(raw),
		OutNEBits:     outNEBits(raw),
		Raw:           raw,
	}
}
