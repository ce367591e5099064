// Package fancontrol runs a CPU-temperature fan loop on one PWM output.
package fancontrol

import (
	"context"
	"fmt"
	"log"
	"math"
	"sync"
	"time"
)

var (
	openPWMFn  = openChannel
	readTempFn = ReadCPUTempC
	afterFn    = time.After
)

var (
	startupFullDutyDuration = 5 * time.Second
	startupMinDutyDuration  = 10 * time.Second
)

type Config struct {
	Enable bool

	// TempTargetC is the CPU temperature the loop regulates to.
	TempTargetC float64
	// PWMDutyMin is the lowest duty (0-100) that keeps the fan spinning.
	PWMDutyMin int
	// UpdateInterval is the control period.
	UpdateInterval time.Duration
	// TempPath defaults to DefaultTempPath.
	TempPath string
}

type Snapshot struct {
	Enabled bool `json:"enabled"`

	CPUValid bool    `json:"cpu_valid"`
	CPUTempC float64 `json:"cpu_temp_c"`

	PWMAvailable bool `json:"pwm_available"`
	PWMDuty      int  `json:"pwm_duty"`

	LastUpdateAt time.Time `json:"last_update_utc,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
}

type Service struct {
	cfg Config
	out Output

	mu   sync.RWMutex
	snap Snapshot

	drvMu sync.Mutex
	drv   pwmDriver

	wg sync.WaitGroup

	stopOnce sync.Once
	stopCh   chan struct{}
}

// New returns a stopped service driving out.
func New(cfg Config, out Output) *Service {
	if cfg.TempTargetC == 0 {
		cfg.TempTargetC = 50.0
	}
	if cfg.UpdateInterval <= 0 {
		cfg.UpdateInterval = 5 * time.Second
	}
	if cfg.TempPath == "" {
		cfg.TempPath = DefaultTempPath
	}
	return &Service{cfg: cfg, out: out, stopCh: make(chan struct{})}
}

func (s *Service) Snapshot() Snapshot {
	if s == nil {
		return Snapshot{}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Close stops the loop and switches the fan off. Concurrent and repeated
// calls return once the fan is off.
func (s *Service) Close() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stopCh)
		s.wg.Wait()

		s.drvMu.Lock()
		drv := s.drv
		s.drv = nil
		s.drvMu.Unlock()
		if drv == nil {
			return
		}
		if err := drv.SetDutyPercent(0); err != nil {
			log.Printf("fancontrol: stop fan: %v", err)
		}
		if err := drv.Close(); err != nil {
			log.Printf("fancontrol: close output: %v", err)
		}
		s.setState(func(sn *Snapshot) { sn.PWMDuty = 0 })
	})
}

func (s *Service) stopping() bool {
	select {
	case <-s.stopCh:
		return true
	default:
		return false
	}
}

func (s *Service) setErr(msg string) {
	s.setState(func(sn *Snapshot) { sn.LastError = msg })
}

func (s *Service) setState(update func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	update(&s.snap)
	s.snap.LastUpdateAt = time.Now().UTC()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Start opens the output and runs the startup test and control loop in the
// background. It does not block.
func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("fancontrol: service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if s.out == nil {
		return fmt.Errorf("fancontrol: no pwm output")
	}

	s.setState(func(sn *Snapshot) { sn.Enabled = true })

	drv, err := openPWMFn(s.out)
	if err != nil {
		s.setErr(err.Error())
		return err
	}
	s.drvMu.Lock()
	s.drv = drv
	s.drvMu.Unlock()
	s.setState(func(sn *Snapshot) { sn.PWMAvailable = true })
	log.Printf("fancontrol: started target=%.1fC duty_min=%d interval=%s", s.cfg.TempTargetC, s.cfg.PWMDutyMin, s.cfg.UpdateInterval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.startupAndRun(ctx, drv)
	}()

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.stopCh:
		}
	}()
	return nil
}

func (s *Service) setDuty(drv pwmDriver, duty float64) bool {
	if err := drv.SetDutyPercent(duty); err != nil {
		s.setErr(fmt.Sprintf("fancontrol: set pwm duty failed: %v", err))
		return false
	}
	s.setState(func(sn *Snapshot) { sn.PWMDuty = int(math.Round(duty)) })
	return true
}

func (s *Service) startupAndRun(ctx context.Context, drv pwmDriver) {
	defer func() {
		// Anything but a requested stop leaves the fan at full speed.
		if ctx.Err() == nil && !s.stopping() {
			s.setDuty(drv, 100)
		}
	}()

	// Spin-up test: full duty, then the minimum duty.
	if !s.setDuty(drv, 100) {
		return
	}
	select {
	case <-afterFn(startupFullDutyDuration):
	case <-ctx.Done():
		return
	case <-s.stopCh:
		return
	}
	if !s.setDuty(drv, clamp(float64(s.cfg.PWMDutyMin), 0, 100)) {
		return
	}
	select {
	case <-afterFn(startupMinDutyDuration):
	case <-ctx.Done():
		return
	case <-s.stopCh:
		return
	}

	s.runLoop(ctx, drv)
}

func (s *Service) runLoop(ctx context.Context, drv pwmDriver) {
	pid := newPID(0.2, 0.2, 0.1)
	pid.SetOutputLimits(-100, 0)
	pid.Set(s.cfg.TempTargetC)

	t := time.NewTicker(s.cfg.UpdateInterval)
	defer t.Stop()

	minDuty := clamp(float64(s.cfg.PWMDutyMin), 0, 100)
	var lastPWM float64
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-t.C:
		}

		cpuC, err := readTempFn(s.cfg.TempPath)
		if err != nil {
			s.setState(func(sn *Snapshot) {
				sn.CPUValid = false
				sn.LastError = err.Error()
			})
			// Without a temperature the fan runs flat out.
			s.setDuty(drv, 100)
			continue
		}

		duty := dutyFor(-pid.UpdateDuration(cpuC, s.cfg.UpdateInterval), &lastPWM, minDuty)
		if !s.setDuty(drv, duty) {
			continue
		}
		s.setState(func(sn *Snapshot) {
			sn.CPUValid = true
			sn.CPUTempC = cpuC
			sn.LastError = ""
		})
	}
}

// dutyFor maps the PID output into [minDuty, 100]. Below 5 % the fan idles at
// the minimum until the controller asks for more; once running it follows the
// controller down to zero.
func dutyFor(pidOut float64, lastPWM *float64, minDuty float64) float64 {
	var duty float64
	if pidOut > 5.0 || *lastPWM != 0 {
		*lastPWM = pidOut
		duty = pidOut
	} else {
		*lastPWM = 0
		duty = 1
	}
	duty = clamp(duty, 0, 100)
	if duty > 0 {
		duty = minDuty + duty*(100.0-minDuty)/100.0
	}
	return clamp(duty, 0, 100)
}
