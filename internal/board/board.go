// Package board wires one PCA9685 chip to its transport, its output-enable
// line and its configured channels.
package board

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"

	"servopwm/internal/config"
	"servopwm/internal/i2c"
	"servopwm/internal/oe"
	"servopwm/internal/pca9685"
)

var (
	ErrUnknownChannel = errors.New("board: unknown channel")
	ErrNoOutputEnable = errors.New("board: no output enable pin configured")
)

// Output-enable lines are shared by every board in the process.
var (
	gpioOE = oe.NewRegistry(oe.OpenGPIO)
	mockOE = oe.NewRegistry(oe.OpenMem)
)

// openBusFn opens the Linux I2C adapter for a hardware board. The chip is
// reached through the generic drivers.I2C adapter the bus implements.
var openBusFn = func(path string, addr uint16) (i2c.RegIO, io.Closer, error) {
	bus, err := i2c.Open(path)
	if err != nil {
		return nil, nil, err
	}
	dev, err := i2c.NewTxDev(bus, addr)
	if err != nil {
		_ = bus.Close()
		return nil, nil, err
	}
	return dev, bus, nil
}

type Board struct {
	cfg  config.Config
	addr uint16

	dev   *pca9685.Device
	bus   io.Closer
	mem   *i2c.MemDev
	oePin oe.Pin

	channels [pca9685.NumChannels]*pca9685.Channel
	byName   map[string]int
	names    [pca9685.NumChannels]string

	closeOnce sync.Once
	closeErr  error
}

// Open brings up the board described by cfg: the chip is initialized, the
// configured frequency, Mode2 fields and channels are applied, and the OE line
// (if any) enables the outputs.
func Open(cfg config.Config) (*Board, error) {
	modes, err := cfg.PWM.Modes()
	if err != nil {
		return nil, fmt.Errorf("board: %w", err)
	}

	b := &Board{cfg: cfg, addr: uint16(cfg.I2C.Address), byName: map[string]int{}}
	var rio i2c.RegIO
	if cfg.I2C.Mock {
		b.mem = pca9685.NewSimulator(b.addr)
		rio = b.mem
	} else {
		dev, closer, err := openBusFn(cfg.I2C.Bus, b.addr)
		if err != nil {
			return nil, fmt.Errorf("board: open %s: %w", cfg.I2C.Bus, err)
		}
		rio = dev
		b.bus = closer
	}

	if err := b.bringUp(rio, modes); err != nil {
		b.release()
		return nil, err
	}
	b.logSummary("opened")
	return b, nil
}

func (b *Board) bringUp(rio i2c.RegIO, modes config.Modes) error {
	dev, err := pca9685.New(rio, b.addr)
	if err != nil {
		return err
	}
	b.dev = dev
	if err := dev.Initialize(); err != nil {
		return err
	}
	if err := dev.SetFrequency(b.cfg.PWM.FrequencyHz); err != nil {
		return err
	}
	if err := b.applyModes(ModeChange{
		Polarity:      &modes.Polarity,
		Driver:        &modes.Driver,
		OutNE:         &modes.OutNE,
		OutputsChange: &modes.OutputsChange,
	}); err != nil {
		return err
	}

	for i := range b.channels {
		ch, err := dev.NewChannel(i)
		if err != nil {
			return err
		}
		b.channels[i] = ch
	}
	for _, cc := range b.cfg.Channels {
		b.names[cc.Index] = cc.Name
		b.byName[strings.ToLower(cc.Name)] = cc.Index
	}
	for i := range b.names {
		if b.names[i] != "" {
			continue
		}
		name := fmt.Sprintf("LED%d", i+1)
		if b.cfg.Fan.Enable && b.cfg.Fan.ChannelIndex() == i {
			name = "fan"
		}
		if _, taken := b.byName[strings.ToLower(name)]; taken {
			continue
		}
		b.names[i] = name
		b.byName[strings.ToLower(name)] = i
	}

	for _, cc := range b.cfg.Channels {
		ch := b.channels[cc.Index]
		ch.SetDutyCycle(cc.Duty)
		ch.SetPhaseShift(cc.PhaseShift())
		if cc.On {
			if err := ch.On(); err != nil {
				return err
			}
		}
	}

	if b.cfg.PWM.Sleep {
		if err := dev.Sleep(); err != nil {
			return err
		}
	}

	if b.cfg.OutputEnable.Enable {
		reg := gpioOE
		if b.cfg.I2C.Mock {
			reg = mockOE
		}
		pin, err := reg.Acquire(b.cfg.OutputEnable.GPIO)
		if err != nil {
			return err
		}
		b.oePin = pin
		if err := pin.Enable(); err != nil {
			return err
		}
	}
	return nil
}

func (b *Board) Device() *pca9685.Device { return b.dev }

func (b *Board) Address() uint16 { return b.addr }

// Channel looks a channel up by name (case-insensitive), by index ("3") or by
// its datasheet name ("LED4").
func (b *Board) Channel(name string) (*pca9685.Channel, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if i, ok := b.byName[key]; ok {
		return b.channels[i], nil
	}
	if n, err := strconv.Atoi(key); err == nil && n >= 0 && n < pca9685.NumChannels {
		return b.channels[n], nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownChannel, name)
}

// ChannelAt returns the channel at index.
func (b *Board) ChannelAt(index int) (*pca9685.Channel, error) {
	if index < 0 || index >= pca9685.NumChannels {
		return nil, fmt.Errorf("%w %d", ErrUnknownChannel, index)
	}
	return b.channels[index], nil
}

// Channels returns every named channel keyed by name.
func (b *Board) Channels() map[string]*pca9685.Channel {
	out := make(map[string]*pca9685.Channel, len(b.byName))
	for i, n := range b.names {
		if n != "" {
			out[n] = b.channels[i]
		}
	}
	return out
}

// SetChannel applies duty and phase to the named channel.
func (b *Board) SetChannel(name string, duty, phase float64) error {
	ch, err := b.Channel(name)
	if err != nil {
		return err
	}
	return ch.Set(duty, phase)
}

func (b *Board) ChannelOff(name string) error {
	ch, err := b.Channel(name)
	if err != nil {
		return err
	}
	return ch.Off()
}

// SetFrequency changes the PWM frequency of the whole chip.
func (b *Board) SetFrequency(ctx context.Context, hz int) error {
	if err := b.dev.SetFrequencyContext(ctx, hz); err != nil {
		return err
	}
	b.logSummary("frequency changed")
	return nil
}

func (b *Board) Sleep() error {
	if err := b.dev.Sleep(); err != nil {
		return err
	}
	b.logSummary("sleep")
	return nil
}

func (b *Board) Wake() error {
	if err := b.dev.Wake(); err != nil {
		return err
	}
	b.logSummary("wake")
	return nil
}

// ModeChange selects the Mode2 fields to update; nil fields are left alone.
type ModeChange struct {
	Polarity      *pca9685.OutputPolarity
	Driver        *pca9685.OutputDriver
	OutNE         *pca9685.OutNEMode
	OutputsChange *pca9685.OutputsChangeMode
}

func (b *Board) SetModes(m ModeChange) error {
	if err := b.applyModes(m); err != nil {
		return err
	}
	b.logSummary("mode changed")
	return nil
}

// The driver type goes first: it decides how OUTNE "high" is read back.
func (b *Board) applyModes(m ModeChange) error {
	if m.Driver != nil {
		if err := b.dev.SetOutputDriverType(*m.Driver); err != nil {
			return err
		}
	}
	if m.Polarity != nil {
		if err := b.dev.SetOutputPolarity(*m.Polarity); err != nil {
			return err
		}
	}
	if m.OutNE != nil {
		if err := b.dev.SetOutNEMode(*m.OutNE); err != nil {
			return err
		}
	}
	if m.OutputsChange != nil {
		if err := b.dev.SetOutputsChangeMode(*m.OutputsChange); err != nil {
			return err
		}
	}
	return nil
}

// ResetModes writes the power-up Mode1/Mode2 defaults, which also wakes the
// chip.
func (b *Board) ResetModes() error {
	if err := b.dev.SetModeRegisterDefaults(); err != nil {
		return err
	}
	b.logSummary("mode defaults")
	return nil
}

func (b *Board) OutputEnable() error {
	if b.oePin == nil {
		return ErrNoOutputEnable
	}
	if err := b.oePin.Enable(); err != nil {
		return err
	}
	log.Printf("board 0x%02X: outputs enabled (gpio %d)", b.addr, b.cfg.OutputEnable.GPIO)
	return nil
}

func (b *Board) OutputDisable() error {
	if b.oePin == nil {
		return ErrNoOutputEnable
	}
	if err := b.oePin.Disable(); err != nil {
		return err
	}
	log.Printf("board 0x%02X: outputs disabled (gpio %d)", b.addr, b.cfg.OutputEnable.GPIO)
	return nil
}

func (b *Board) OutputEnabled() (bool, error) {
	if b.oePin == nil {
		return false, ErrNoOutputEnable
	}
	return b.oePin.Enabled()
}

// Close turns every channel off, puts the chip to sleep and releases the OE
// line and the bus. The first error is returned; cleanup continues past it.
func (b *Board) Close() error {
	b.closeOnce.Do(func() {
		var errs []error
		for _, ch := range b.channels {
			if ch == nil {
				continue
			}
			if err := ch.Off(); err != nil {
				errs = append(errs, err)
				break
			}
		}
		if b.dev != nil {
			if err := b.dev.Sleep(); err != nil {
				errs = append(errs, err)
			}
			_ = b.dev.Shutdown()
		}
		errs = append(errs, b.release())
		b.closeErr = errors.Join(errs...)
		log.Printf("board 0x%02X: closed", b.addr)
	})
	return b.closeErr
}

func (b *Board) release() error {
	var errs []error
	if b.oePin != nil {
		errs = append(errs, b.oePin.Close())
		b.oePin = nil
	}
	if b.bus != nil {
		errs = append(errs, b.bus.Close())
		b.bus = nil
	}
	return errors.Join(errs...)
}

func (b *Board) logSummary(event string) {
	s, err := b.Snapshot()
	if err != nil {
		log.Printf("board 0x%02X: %s: state unavailable: %v", b.addr, event, err)
		return
	}
	log.Printf("board 0x%02X: %s: freq=%dHz actual=%dHz sleeping=%t polarity=%s driver=%s outne=%s(%s) outputs_change=%s",
		b.addr, event, s.FrequencyHz, s.ActualFrequencyHz, s.Sleeping,
		s.OutputPolarity, s.OutputDriver, s.OutNE, s.OutNEBits, s.OutputsChange)
}

type ChannelState struct {
	Name       string  `json:"name,omitempty"`
	Index      int     `json:"index"`
	On         bool    `json:"on"`
	DutyCycle  float64 `json:"duty_cycle"`
	PhaseShift float64 `json:"phase_shift"`
	AutoPhase  bool    `json:"auto_phase"`

	// Live register readback.
	OnCount      uint16  `json:"on_count"`
	OffCount     uint16  `json:"off_count"`
	MeasuredDuty float64 `json:"measured_duty"`
}

type Snapshot struct {
	Address           string `json:"address"`
	Mock              bool   `json:"mock"`
	FrequencyHz       int    `json:"frequency_hz"`
	ActualFrequencyHz int    `json:"actual_frequency_hz"`
	Sleeping          bool   `json:"sleeping"`

	OutputPolarity string `json:"output_polarity"`
	OutputDriver   string `json:"output_driver"`
	OutNE          string `json:"outne"`
	OutNEBits      string `json:"outne_bits"`
	OutputsChange  string `json:"outputs_change"`

	OutputEnableGPIO int   `json:"output_enable_gpio,omitempty"`
	OutputsEnabled   *bool `json:"outputs_enabled,omitempty"`

	Channels []ChannelState `json:"channels"`
}

// Snapshot reads the chip-wide state and every channel's registers.
func (b *Board) Snapshot() (Snapshot, error) {
	s := Snapshot{
		Address: fmt.Sprintf("0x%02X", b.addr),
		Mock:    b.cfg.I2C.Mock,
	}
	var err error
	if s.FrequencyHz, err = b.dev.Frequency(); err != nil {
		return Snapshot{}, err
	}
	if s.ActualFrequencyHz, err = b.dev.ActualFrequency(); err != nil {
		return Snapshot{}, err
	}
	if s.Sleeping, err = b.dev.IsSleeping(); err != nil {
		return Snapshot{}, err
	}
	m2, err := b.dev.Mode2()
	if err != nil {
		return Snapshot{}, err
	}
	s.OutputPolarity = m2.Polarity.String()
	s.OutputDriver = m2.Driver.String()
	s.OutNE = m2.OutNE.String()
	s.OutNEBits = m2.OutNEBits
	s.OutputsChange = m2.OutputsChange.String()

	if b.oePin != nil {
		on, err := b.oePin.Enabled()
		if err != nil {
			return Snapshot{}, err
		}
		s.OutputEnableGPIO = b.cfg.OutputEnable.GPIO
		s.OutputsEnabled = &on
	}

	for i, ch := range b.channels {
		w, err := b.dev.Waveform(i)
		if err != nil {
			return Snapshot{}, err
		}
		s.Channels = append(s.Channels, ChannelState{
			Name:         b.names[i],
			Index:        i,
			On:           ch.IsOn(),
			DutyCycle:    ch.DutyCycle(),
			PhaseShift:   ch.PhaseShift(),
			AutoPhase:    ch.AutoPhase(),
			OnCount:      w.On,
			OffCount:     w.Off,
			MeasuredDuty: w.DutyCycle(),
		})
	}
	return s, nil
}
