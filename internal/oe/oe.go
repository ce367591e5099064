// Package oe drives the active-low OUTPUT ENABLE line of PCA9685 boards.
//
// With OE high every chip output is disabled regardless of its registers. The
// line is usually wired to all boards on a HAT stack, so handles are reference
// counted through a Registry and the line is released only when the last
// holder closes.
package oe

import (
	"errors"
	"fmt"
	"sync"
)

var ErrClosed = errors.New("oe: pin closed")

// Pin is one output-enable line. Enable drives it low, Disable drives it high.
type Pin interface {
	Enable() error
	Disable() error
	Enabled() (bool, error)
	Close() error
}

// OpenFunc opens the line for a BCM GPIO number.
type OpenFunc func(gpio int) (Pin, error)

type shared struct {
	pin  Pin
	refs int
}

// Registry hands out shared handles to OE lines keyed by GPIO number.
type Registry struct {
	mu    sync.Mutex
	open  OpenFunc
	lines map[int]*shared
}

func NewRegistry(open OpenFunc) *Registry {
	return &Registry{open: open, lines: map[int]*shared{}}
}

// Acquire returns a handle to gpio, opening the line on first use.
func (r *Registry) Acquire(gpio int) (Pin, error) {
	if gpio <= 0 {
		return nil, fmt.Errorf("oe: invalid gpio pin %d", gpio)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.lines[gpio]
	if s == nil {
		p, err := r.open(gpio)
		if err != nil {
			return nil, err
		}
		s = &shared{pin: p}
		r.lines[gpio] = s
	}
	s.refs++
	return &handle{reg: r, gpio: gpio, s: s}, nil
}

// Holders reports how many open handles gpio has.
func (r *Registry) Holders(gpio int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.lines[gpio]; s != nil {
		return s.refs
	}
	return 0
}

func (r *Registry) release(gpio int, s *shared) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s.refs--
	if s.refs > 0 {
		return nil
	}
	delete(r.lines, gpio)
	return s.pin.Close()
}

type handle struct {
	reg  *Registry
	gpio int

	mu sync.Mutex
	s  *shared
}

func (h *handle) get() (Pin, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.s == nil {
		return nil, ErrClosed
	}
	return h.s.pin, nil
}

func (h *handle) Enable() error {
	p, err := h.get()
	if err != nil {
		return err
	}
	return p.Enable()
}

func (h *handle) Disable() error {
	p, err := h.get()
	if err != nil {
		return err
	}
	return p.Disable()
}

func (h *handle) Enabled() (bool, error) {
	p, err := h.get()
	if err != nil {
		return false, err
	}
	return p.Enabled()
}

// Close releases this handle. Closing twice is a no-op.
func (h *handle) Close() error {
	h.mu.Lock()
	s := h.s
	h.s = nil
	h.mu.Unlock()
	if s == nil {
		return nil
	}
	return h.reg.release(h.gpio, s)
}

// MemPin is an in-memory Pin for mock boards and tests. It starts disabled.
type MemPin struct {
	mu      sync.Mutex
	enabled bool
	closed  bool
}

// OpenMem is an OpenFunc returning a fresh MemPin.
func OpenMem(gpio int) (Pin, error) { return &MemPin{}, nil }

func (m *MemPin) set(v bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.enabled = v
	return nil
}

func (m *MemPin) Enable() error  { return m.set(true) }
func (m *MemPin) Disable() error { return m.set(false) }

func (m *MemPin) Enabled() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	return m.enabled, nil
}

// Close leaves the line disabled.
func (m *MemPin) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
	m.closed = true
	return nil
}

func (m *MemPin) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
