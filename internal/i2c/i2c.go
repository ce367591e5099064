// Package i2c provides byte-register transports for I2C devices.
//
// Every transport satisfies RegIO: a blocking single-register read and a
// blocking single-register write. Dev talks to real hardware through
// /dev/i2c-*, TxDev adapts any tinygo-style bus and MemDev is an in-memory
// register file for tests and dry runs.
package i2c

import "fmt"

// RegIO is the register transport consumed by device drivers.
type RegIO interface {
	ReadRegU8(reg byte) (byte, error)
	WriteReg(reg, value byte) error
}

func validAddr(addr uint16) error {
	if addr == 0 || addr > 0x7F {
		return fmt.Errorf("invalid i2c addr 0x%X", addr)
	}
	return nil
}
