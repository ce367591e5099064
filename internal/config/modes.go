package config

import (
	"fmt"
	"strings"

	"servopwm/internal/pca9685"
)

// Mode names are accepted loosely: the datasheet bit ("0"/"1"), the register
// value ("0x00"/"0x10"), or any prefix of the name ("n", "inv", ...).

func ParseOutputPolarity(s string) (pca9685.OutputPolarity, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "0" || v == "0x00":
		return pca9685.PolarityNormal, nil
	case v == "1" || v == "0x10":
		return pca9685.PolarityInverted, nil
	case v != "" && strings.HasPrefix("normal", v):
		return pca9685.PolarityNormal, nil
	case v != "" && strings.HasPrefix("inverted", v):
		return pca9685.PolarityInverted, nil
	}
	return pca9685.PolarityNormal, fmt.Errorf("unknown output polarity %q (normal|inverted)", s)
}

func ParseOutputDriver(s string) (pca9685.OutputDriver, error) {
	v := normalizeName(s)
	switch {
	case v == "0" || v == "0x00":
		return pca9685.DriverOpenDrain, nil
	case v == "1" || v == "0x04":
		return pca9685.DriverTotemPole, nil
	case v != "" && strings.HasPrefix("open_drain", v):
		return pca9685.DriverOpenDrain, nil
	case v != "" && strings.HasPrefix("totem_pole", v):
		return pca9685.DriverTotemPole, nil
	}
	return pca9685.DriverTotemPole, fmt.Errorf("unknown output driver %q (open_drain|totem_pole)", s)
}

func ParseOutNEMode(s string) (pca9685.OutNEMode, error) {
	v := normalizeName(s)
	switch v {
	case "0", "0x00":
		return pca9685.OutNELow, nil
	case "1", "0x01":
		return pca9685.OutNEHigh, nil
	case "2", "3", "0x02", "0x03", "high_impedance", "highz", "hi_z", "z":
		return pca9685.OutNEHighImpedance, nil
	}
	switch {
	case v != "" && strings.HasPrefix("low", v):
		return pca9685.OutNELow, nil
	case v != "" && strings.HasPrefix("high", v):
		return pca9685.OutNEHigh, nil
	case v != "" && strings.HasPrefix("floating", v):
		return pca9685.OutNEHighImpedance, nil
	}
	return pca9685.OutNELow, fmt.Errorf("unknown outne mode %q (low|high|floating)", s)
}

func ParseOutputsChangeMode(s string) (pca9685.OutputsChangeMode, error) {
	v := normalizeName(s)
	switch {
	case v == "0" || v == "0x00":
		return pca9685.ChangeOnStop, nil
	case v == "1" || v == "0x08":
		return pca9685.ChangeOnAck, nil
	case v != "" && strings.HasPrefix("stop", v):
		return pca9685.ChangeOnStop, nil
	case v != "" && strings.HasPrefix("ack", v):
		return pca9685.ChangeOnAck, nil
	}
	return pca9685.ChangeOnAck, fmt.Errorf("unknown outputs change mode %q (stop|ack)", s)
}

func normalizeName(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_").Replace(v)
}

// Modes is the parsed form of PWMConfig's mode strings.
type Modes struct {
	Polarity      pca9685.OutputPolarity
	Driver        pca9685.OutputDriver
	OutNE         pca9685.OutNEMode
	OutputsChange pca9685.OutputsChangeMode
}

// Modes parses the mode fields; Load has already validated them.
func (p PWMConfig) Modes() (Modes, error) {
	var m Modes
	var err error
	if m.Polarity, err = ParseOutputPolarity(p.OutputPolarity); err != nil {
		return m, err
	}
	if m.Driver, err = ParseOutputDriver(p.OutputDriver); err != nil {
		return m, err
	}
	if m.OutNE, err = ParseOutNEMode(p.OutNE); err != nil {
		return m, err
	}
	if m.OutputsChange, err = ParseOutputsChangeMode(p.OutputsChange); err != nil {
		return m, err
	}
	return m, nil
}
