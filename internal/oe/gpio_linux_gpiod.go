//go:build linux && (arm || arm64)

package oe

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

const consumer = "servopwm-oe"

// OpenGPIO requests BCM GPIO pin as an active-low output through the GPIO
// character device. The line starts high, so outputs stay disabled until
// Enable.
func OpenGPIO(pin int) (Pin, error) {
	if pin <= 0 {
		return nil, fmt.Errorf("oe: invalid gpio pin %d", pin)
	}
	lineName := fmt.Sprintf("GPIO%d", pin)

	chipCandidates := []string{"/dev/gpiochip0", "/dev/gpiochip4"}
	entries, _ := os.ReadDir("/dev")
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "gpiochip") {
			chipCandidates = append(chipCandidates, filepath.Join("/dev", e.Name()))
		}
	}

	for _, chipPath := range chipCandidates {
		chip, err := gpiocdev.NewChip(chipPath)
		if err != nil {
			continue
		}
		offset, err := chip.FindLine(lineName)
		if err != nil {
			_ = chip.Close()
			continue
		}
		// Logical 1 is electrical low, i.e. outputs enabled.
		line, err := chip.RequestLine(offset,
			gpiocdev.AsActiveLow,
			gpiocdev.AsOutput(0),
			gpiocdev.WithConsumer(consumer))
		if err != nil {
			_ = chip.Close()
			continue
		}
		return &gpiodPin{chip: chip, line: line, name: lineName}, nil
	}
	return nil, fmt.Errorf("oe: gpio line %q not found (or busy)", lineName)
}

type gpiodPin struct {
	chip *gpiocdev.Chip
	line *gpiocdev.Line
	name string
}

func (g *gpiodPin) Enable() error  { return g.set(1) }
func (g *gpiodPin) Disable() error { return g.set(0) }

func (g *gpiodPin) set(v int) error {
	if g.line == nil {
		return ErrClosed
	}
	if err := g.line.SetValue(v); err != nil {
		return fmt.Errorf("oe: set %s: %w", g.name, err)
	}
	return nil
}

func (g *gpiodPin) Enabled() (bool, error) {
	if g.line == nil {
		return false, ErrClosed
	}
	v, err := g.line.Value()
	if err != nil {
		return false, fmt.Errorf("oe: read %s: %w", g.name, err)
	}
	return v == 1, nil
}

// Close disables the outputs and releases the line.
func (g *gpiodPin) Close() error {
	if g.line == nil {
		return nil
	}
	_ = g.line.SetValue(0)
	err := g.line.Close()
	g.line = nil
	if g.chip != nil {
		_ = g.chip.Close()
		g.chip = nil
	}
	return err
}
