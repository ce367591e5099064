package fancontrol

import "time"

// pidController is a textbook PID controller with a clamped output. The fan
// loop runs it with limits [-100, 0] so that a CPU hotter than the setpoint
// yields a negative value, which is negated into a duty cycle.
//
// Not safe for concurrent use.
type pidController struct {
	kp, ki, kd float64
	setpoint   float64
	outMin     float64
	outMax     float64

	integral  float64
	prevError float64
	havePrev  bool
}

func newPID(kp, ki, kd float64) *pidController {
	return &pidController{kp: kp, ki: ki, kd: kd, outMin: -100, outMax: 0}
}

func (p *pidController) SetOutputLimits(min, max float64) {
	p.outMin = min
	p.outMax = max
}

// Set changes the setpoint and clears the accumulated state.
func (p *pidController) Set(setpoint float64) {
	p.setpoint = setpoint
	p.integral = 0
	p.prevError = 0
	p.havePrev = false
}

// UpdateDuration feeds one measurement taken dt after the previous one. A
// non-positive dt leaves the state untouched and returns 0.
func (p *pidController) UpdateDuration(measurement float64, dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	sec := dt.Seconds()
	e := p.setpoint - measurement
	p.integral += e * sec

	var derivative float64
	if p.havePrev {
		derivative = (e - p.prevError) / sec
	}
	p.prevError = e
	p.havePrev = true

	return clamp(p.kp*e+p.ki*p.integral+p.kd*derivative, p.outMin, p.outMax)
}
