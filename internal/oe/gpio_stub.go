//go:build !linux || (!arm && !arm64)

package oe

import "fmt"

func OpenGPIO(pin int) (Pin, error) {
	return nil, fmt.Errorf("oe: gpio unsupported on this platform")
}
