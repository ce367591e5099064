package oe

import (
	"errors"
	"testing"
)

type countingOpener struct {
	opened int
	pins   []*MemPin
}

func (c *countingOpener) open(gpio int) (Pin, error) {
	c.opened++
	p := &MemPin{}
	c.pins = append(c.pins, p)
	return p, nil
}

func TestRegistry_SharesLineUntilLastClose(t *testing.T) {
	var c countingOpener
	r := NewRegistry(c.open)

	a, err := r.Acquire(4)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	b, err := r.Acquire(4)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if c.opened != 1 {
		t.Fatalf("opened=%d want 1", c.opened)
	}
	if got := r.Holders(4); got != 2 {
		t.Fatalf("holders=%d want 2", got)
	}

	if err := a.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if on, _ := b.Enabled(); !on {
		t.Fatalf("second handle does not see enable")
	}

	if err := a.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.pins[0].Closed() {
		t.Fatalf("line closed while still held")
	}
	if err := a.Enable(); !errors.Is(err, ErrClosed) {
		t.Fatalf("Enable after close err=%v want ErrClosed", err)
	}
	// Second close of the same handle must not drop the other holder.
	_ = a.Close()
	if got := r.Holders(4); got != 1 {
		t.Fatalf("holders=%d want 1", got)
	}

	if err := b.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !c.pins[0].Closed() {
		t.Fatalf("line not closed after last holder")
	}
	if got := r.Holders(4); got != 0 {
		t.Fatalf("holders=%d want 0", got)
	}

	if _, err := r.Acquire(4); err != nil {
		t.Fatalf("re-Acquire: %v", err)
	}
	if c.opened != 2 {
		t.Fatalf("opened=%d want 2", c.opened)
	}
}

func TestRegistry_InvalidAndOpenError(t *testing.T) {
	boom := errors.New("busy")
	r := NewRegistry(func(int) (Pin, error) { return nil, boom })
	if _, err := r.Acquire(0); err == nil {
		t.Fatalf("gpio 0 accepted")
	}
	if _, err := r.Acquire(4); !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
	if got := r.Holders(4); got != 0 {
		t.Fatalf("holders=%d want 0", got)
	}
}

func TestMemPin_StartsDisabled(t *testing.T) {
	p, _ := OpenMem(4)
	if on, err := p.Enabled(); err != nil || on {
		t.Fatalf("enabled=%v err=%v want false", on, err)
	}
	_ = p.Enable()
	_ = p.Close()
	if _, err := p.Enabled(); !errors.Is(err, ErrClosed) {
		t.Fatalf("err=%v want ErrClosed", err)
	}
}
