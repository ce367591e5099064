package i2c

import (
	"fmt"
	"sync"
)

// WriteOp is one recorded register write.
type WriteOp struct {
	Reg byte
	Val byte
}

// WriteFilter decides what a register write actually stores. regs is the
// current register file (read-only for the filter). Returning keep=false
// drops the write, which models read-only or locked registers.
type WriteFilter func(regs []byte, reg, val byte) (stored byte, keep bool)

// MemDev is an in-memory 256-byte register file implementing RegIO.
//
// It records every write, can be told to fail reads or writes, and is safe for
// concurrent use.
type MemDev struct {
	mu     sync.Mutex
	addr   uint16
	regs   [256]byte
	writes []WriteOp
	reads  int
	filter WriteFilter

	// Fault, when non-nil, is consulted before every access. A non-nil
	// return fails that access without touching the register file.
	fault func(write bool, reg byte) error
}

func NewMemDev(addr uint16) *MemDev {
	return &MemDev{addr: addr}
}

func (m *MemDev) Addr() uint16 { return m.addr }

// SetFilter installs a write filter; nil stores writes verbatim.
func (m *MemDev) SetFilter(f WriteFilter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
}

// SetFault installs a fault injector; nil clears it.
func (m *MemDev) SetFault(f func(write bool, reg byte) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fault = f
}

// Poke sets a register directly, bypassing the filter and the write log.
func (m *MemDev) Poke(reg, val byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.regs[reg] = val
}

// Peek returns a register without counting it as a bus read.
func (m *MemDev) Peek(reg byte) byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.regs[reg]
}

// Writes returns a copy of the write log.
func (m *MemDev) Writes() []WriteOp {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]WriteOp, len(m.writes))
	copy(out, m.writes)
	return out
}

// Reads returns the number of bus reads served.
func (m *MemDev) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

// ResetLog clears the write log and read counter.
func (m *MemDev) ResetLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes = nil
	m.reads = 0
}

func (m *MemDev) ReadRegU8(reg byte) (byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		if err := m.fault(false, reg); err != nil {
			return 0, fmt.Errorf("i2c 0x%02X: read reg 0x%02X: %w", m.addr, reg, err)
		}
	}
	m.reads++
	return m.regs[reg], nil
}

func (m *MemDev) WriteReg(reg, value byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fault != nil {
		if err := m.fault(true, reg); err != nil {
			return fmt.Errorf("i2c 0x%02X: write reg 0x%02X: %w", m.addr, reg, err)
		}
	}
	m.writes = append(m.writes, WriteOp{Reg: reg, Val: value})
	stored, keep := value, true
	if m.filter != nil {
		stored, keep = m.filter(m.regs[:], reg, value)
	}
	if keep {
		m.regs[reg] = stored
	}
	return nil
}
