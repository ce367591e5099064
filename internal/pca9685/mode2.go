package pca9685

import "errors"

// ErrInvalidMode reports a Mode2 field value the chip does not define.
var ErrInvalidMode = errors.New("invalid mode")

func (d *Device) readMode2(op string) (byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	v, err := d.io.ReadRegU8(regMode2)
	if err != nil {
		return 0, d.ioErr(op, err)
	}
	return v, nil
}

// updateMode2 rewrites one Mode2 field. The register is read first and the
// write is skipped when decode already yields val.
func (d *Device) updateMode2(op string, mask, val byte, decode func(mode2 byte) byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	mode2, err := d.io.ReadRegU8(regMode2)
	if err != nil {
		return d.ioErr(op, err)
	}
	if decode(mode2) == val {
		return nil
	}
	if err := d.io.WriteReg(regMode2, mode2&^mask|val&mask); err != nil {
		return d.ioErr(op, err)
	}
	return nil
}

func field(mask byte) func(byte) byte {
	return func(mode2 byte) byte { return mode2 & mask }
}

// Mode2 returns a decoded snapshot of the Mode2 register from a single read.
func (d *Device) Mode2() (Mode2, error) {
	raw, err := d.readMode2("read mode2")
	if err != nil {
		return Mode2{}, err
	}
	return decodeMode2(raw), nil
}

func (d *Device) OutputPolarity() (OutputPolarity, error) {
	raw, err := d.readMode2("get output polarity")
	if err != nil {
		return PolarityNormal, err
	}
	return OutputPolarity(raw & mode2Invrt), nil
}

func (d *Device) SetOutputPolarity(p OutputPolarity) error {
	if p != PolarityNormal && p != PolarityInverted {
		return &ConfigError{Field: "output polarity", Value: byte(p), Err: ErrInvalidMode}
	}
	return d.updateMode2("set output polarity", mode2Invrt, byte(p), field(mode2Invrt))
}

func (d *Device) OutputDriverType() (OutputDriver, error) {
	raw, err := d.readMode2("get output driver")
	if err != nil {
		return DriverTotemPole, err
	}
	return OutputDriver(raw & mode2Outdrv), nil
}

func (d *Device) SetOutputDriverType(t OutputDriver) error {
	if t != DriverOpenDrain && t != DriverTotemPole {
		return &ConfigError{Field: "output driver", Value: byte(t), Err: ErrInvalidMode}
	}
	return d.updateMode2("set output driver", mode2Outdrv, byte(t), field(mode2Outdrv))
}

func (d *Device) OutputsChangeMode() (OutputsChangeMode, error) {
	raw, err := d.readMode2("get outputs change mode")
	if err != nil {
		return ChangeOnStop, err
	}
	return OutputsChangeMode(raw & mode2Och), nil
}

func (d *Device) SetOutputsChangeMode(m OutputsChangeMode) error {
	if m != ChangeOnStop && m != ChangeOnAck {
		return &ConfigError{Field: "outputs change mode", Value: byte(m), Err: ErrInvalidMode}
	}
	return d.updateMode2("set outputs change mode", mode2Och, byte(m), field(mode2Och))
}

// OutNEMode returns the effective behaviour of the outputs while OE is high.
// Reserved codes read as high impedance, and "high" reads as high impedance
// on open-drain outputs.
func (d *Device) OutNEMode() (OutNEMode, error) {
	raw, err := d.readMode2("get outne mode")
	if err != nil {
		return OutNELow, err
	}
	return effectiveOutNE(raw), nil
}

// OutNEModeBits returns the raw OUTNE field as two binary digits, "00".."11".
func (d *Device) OutNEModeBits() (string, error) {
	raw, err := d.readMode2("get outne mode")
	if err != nil {
		return "", err
	}
	return outNEBits(raw), nil
}

func (d *Device) SetOutNEMode(m OutNEMode) error {
	if !m.valid() {
		return &ConfigError{Field: "outne mode", Value: byte(m), Err: ErrInvalidMode}
	}
	return d.updateMode2("set outne mode", mode2Outne, byte(m), func(mode2 byte) byte {
		return byte(decodeOutNE(mode2))
	})
}
