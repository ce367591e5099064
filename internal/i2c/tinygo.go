package i2c

import (
	"fmt"

	"tinygo.org/x/drivers"
)

// TxDev adapts a tinygo.org/x/drivers.I2C bus to RegIO so the same device
// drivers run on MCU buses, bridge chips and host shims.
type TxDev struct {
	bus  drivers.I2C
	addr uint16
	w    [2]byte
	r    [1]byte
}

func NewTxDev(bus drivers.I2C, addr uint16) (*TxDev, error) {
	if bus == nil {
		return nil, fmt.Errorf("i2c: bus is nil")
	}
	if err := validAddr(addr); err != nil {
		return nil, err
	}
	return &TxDev{bus: bus, addr: addr}, nil
}

func (d *TxDev) Addr() uint16 { return d.addr }

// ReadRegU8 is not safe for concurrent use; callers serialize access (the
// PCA9685 driver holds its device lock around every transfer).
func (d *TxDev) ReadRegU8(reg byte) (byte, error) {
	d.w[0] = reg
	if err := d.bus.Tx(d.addr, d.w[:1], d.r[:]); err != nil {
		return 0, fmt.Errorf("i2c 0x%02X: read reg 0x%02X: %w", d.addr, reg, err)
	}
	return d.r[0], nil
}

func (d *TxDev) WriteReg(reg, value byte) error {
	d.w[0] = reg
	d.w[1] = value
	if err := d.bus.Tx(d.addr, d.w[:2], nil); err != nil {
		return fmt.Errorf("i2c 0x%02X: write reg 0x%02X: %w", d.addr, reg, err)
	}
	return nil
}

var (
	_ drivers.I2C = (*Bus)(nil)

	_ RegIO = (*Dev)(nil)
	_ RegIO = (*TxDev)(nil)
	_ RegIO = (*MemDev)(nil)
)
