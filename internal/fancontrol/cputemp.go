package fancontrol

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultTempPath is the SoC thermal zone on Raspberry Pi OS.
const DefaultTempPath = "/sys/class/thermal/thermal_zone0/temp"

// parseCPUTempC accepts millidegrees (52345) or whole degrees (52).
func parseCPUTempC(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("fancontrol: cpu temp empty")
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("fancontrol: parse cpu temp %q: %w", s, err)
	}
	if n > 1000 {
		return float64(n) / 1000.0, nil
	}
	return float64(n), nil
}

// ReadCPUTempC reads a sysfs thermal zone in degrees Celsius.
func ReadCPUTempC(path string) (float64, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("fancontrol: read cpu temp: %w", err)
	}
	return parseCPUTempC(string(b))
}
