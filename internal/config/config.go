package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"servopwm/internal/pca9685"
)

type Config struct {
	I2C          I2CConfig          `yaml:"i2c"`
	PWM          PWMConfig          `yaml:"pwm"`
	OutputEnable OutputEnableConfig `yaml:"output_enable"`
	Channels     []ChannelConfig    `yaml:"channels"`
	Fan          FanConfig          `yaml:"fan"`
	Web          WebConfig          `yaml:"web"`
}

type I2CConfig struct {
	Bus     string `yaml:"bus"`
	Address int    `yaml:"address"`
	// Mock runs against the in-memory register simulator instead of a bus.
	Mock bool `yaml:"mock"`
}

type PWMConfig struct {
	FrequencyHz    int    `yaml:"frequency_hz"`
	OutputPolarity string `yaml:"output_polarity"`
	OutputDriver   string `yaml:"output_driver"`
	OutNE          string `yaml:"outne"`
	OutputsChange  string `yaml:"outputs_change"`
	Sleep          bool   `yaml:"sleep"`
}

// OutputEnableConfig describes the active-low OE line shared by every board
// on the HAT stack. GPIO uses BCM numbering.
type OutputEnableConfig struct {
	Enable bool `yaml:"enable"`
	GPIO   int  `yaml:"gpio"`
}

type ChannelConfig struct {
	Name  string   `yaml:"name"`
	Index int      `yaml:"index"`
	Duty  float64  `yaml:"duty"`
	Phase *float64 `yaml:"phase"`
	On    bool     `yaml:"on"`
}

// PhaseShift returns the configured phase, or pca9685.AutoPhase when unset.
func (c ChannelConfig) PhaseShift() float64 {
	if c.Phase == nil || *c.Phase < 0 {
		return pca9685.AutoPhase
	}
	return *c.Phase
}

type FanConfig struct {
	Enable         bool          `yaml:"enable"`
	Channel        *int          `yaml:"channel"`
	TempTargetC    float64       `yaml:"temp_target_c"`
	DutyMin        int           `yaml:"duty_min"`
	UpdateInterval time.Duration `yaml:"update_interval"`
}

// ChannelIndex returns the fan channel; Load fills in the default.
func (f FanConfig) ChannelIndex() int {
	if f.Channel == nil {
		return defaultFanChannel
	}
	return *f.Channel
}

type WebConfig struct {
	Listen string `yaml:"listen"`
}

const (
	defaultBus         = "/dev/i2c-1"
	defaultOEGPIO      = 4
	defaultFanChannel  = pca9685.NumChannels - 1
	defaultFanTargetC  = 50.0
	defaultFanInterval = 5 * time.Second
)

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.I2C.Bus == "" {
		cfg.I2C.Bus = defaultBus
	}
	if cfg.I2C.Address == 0 {
		cfg.I2C.Address = pca9685.DefaultAddress
	}
	if cfg.I2C.Address < 0x01 || cfg.I2C.Address > 0x7F {
		return fmt.Errorf("i2c.address must be 0x01-0x7F")
	}

	if cfg.PWM.FrequencyHz == 0 {
		cfg.PWM.FrequencyHz = pca9685.DefaultFrequency
	}
	if cfg.PWM.FrequencyHz < pca9685.MinFrequency || cfg.PWM.FrequencyHz > pca9685.MaxFrequency {
		return fmt.Errorf("pwm.frequency_hz must be %d-%d", pca9685.MinFrequency, pca9685.MaxFrequency)
	}
	if cfg.PWM.OutputPolarity == "" {
		cfg.PWM.OutputPolarity = "normal"
	}
	if _, err := ParseOutputPolarity(cfg.PWM.OutputPolarity); err != nil {
		return fmt.Errorf("pwm.output_polarity: %w", err)
	}
	if cfg.PWM.OutputDriver == "" {
		cfg.PWM.OutputDriver = "totem_pole"
	}
	if _, err := ParseOutputDriver(cfg.PWM.OutputDriver); err != nil {
		return fmt.Errorf("pwm.output_driver: %w", err)
	}
	if cfg.PWM.OutNE == "" {
		cfg.PWM.OutNE = "low"
	}
	if _, err := ParseOutNEMode(cfg.PWM.OutNE); err != nil {
		return fmt.Errorf("pwm.outne: %w", err)
	}
	if cfg.PWM.OutputsChange == "" {
		cfg.PWM.OutputsChange = "ack"
	}
	if _, err := ParseOutputsChangeMode(cfg.PWM.OutputsChange); err != nil {
		return fmt.Errorf("pwm.outputs_change: %w", err)
	}

	if cfg.OutputEnable.GPIO == 0 {
		cfg.OutputEnable.GPIO = defaultOEGPIO
	}
	if cfg.OutputEnable.GPIO < 0 {
		return fmt.Errorf("output_enable.gpio must be > 0")
	}

	names := map[string]bool{}
	used := map[int]bool{}
	for i := range cfg.Channels {
		ch := &cfg.Channels[i]
		if ch.Index < 0 || ch.Index >= pca9685.NumChannels {
			return fmt.Errorf("channels[%d].index must be 0-%d", i, pca9685.NumChannels-1)
		}
		if used[ch.Index] {
			return fmt.Errorf("channels[%d].index %d is already configured", i, ch.Index)
		}
		used[ch.Index] = true
		if ch.Name == "" {
			ch.Name = fmt.Sprintf("LED%d", ch.Index+1)
		}
		if names[ch.Name] {
			return fmt.Errorf("channels[%d].name %q is not unique", i, ch.Name)
		}
		names[ch.Name] = true
		if ch.Duty < 0 || ch.Duty > 100 {
			return fmt.Errorf("channels[%d].duty must be 0-100", i)
		}
		if ch.Phase != nil && *ch.Phase > 100 {
			return fmt.Errorf("channels[%d].phase must be <= 100", i)
		}
	}

	if cfg.Fan.Enable {
		if cfg.Fan.Channel == nil {
			ch := defaultFanChannel
			cfg.Fan.Channel = &ch
		}
		if idx := *cfg.Fan.Channel; idx < 0 || idx >= pca9685.NumChannels {
			return fmt.Errorf("fan.channel must be 0-%d", pca9685.NumChannels-1)
		}
		if used[*cfg.Fan.Channel] {
			return fmt.Errorf("fan.channel %d is also listed in channels", *cfg.Fan.Channel)
		}
		if cfg.Fan.TempTargetC <= 0 {
			cfg.Fan.TempTargetC = defaultFanTargetC
		}
		if cfg.Fan.DutyMin < 0 || cfg.Fan.DutyMin > 100 {
			return fmt.Errorf("fan.duty_min must be 0-100")
		}
		if cfg.Fan.UpdateInterval <= 0 {
			cfg.Fan.UpdateInterval = defaultFanInterval
		}
	}

	cfg.Web.Listen = strings.TrimSpace(cfg.Web.Listen)
	return nil
}
