package fancontrol

import "servopwm/internal/pca9685"

// Output is the PWM output the fan is wired to. *pca9685.Channel implements
// it.
type Output interface {
	Set(duty, phase float64) error
	Off() error
}

// pwmDriver is what the control loop drives. Duty is in percent (0..100).
type pwmDriver interface {
	SetDutyPercent(p float64) error
	Close() error
}

// channelDriver runs the fan from one PCA9685 channel. The chip-wide PWM
// frequency is left to the board.
type channelDriver struct {
	out Output
}

func openChannel(out Output) (pwmDriver, error) {
	return &channelDriver{out: out}, nil
}

func (d *channelDriver) SetDutyPercent(p float64) error {
	return d.out.Set(p, pca9685.AutoPhase)
}

// Close stops the fan.
func (d *channelDriver) Close() error {
	return d.out.Off()
}
