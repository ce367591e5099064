package pca9685

// Register map and bit layout (NXP PCA9685 datasheet, section 7.3).
const (
	regMode1    = 0x00
	regMode2    = 0x01
	regLED0OnL  = 0x06
	regLED0OnH  = 0x07
	regLED0OffL = 0x08
	regLED0OffH = 0x09
	regPrescale = 0xFE

	// Each channel occupies four consecutive registers.
	regsPerChannel = 4
)

// Mode1 bits.
const (
	mode1Restart = 0x80
	mode1Sleep   = 0x10
)

// Mode2 bits and fields.
const (
	mode2Invrt  = 0x10
	mode2Och    = 0x08
	mode2Outdrv = 0x04
	mode2Outne  = 0x03
)

// Power-cycle defaults written by Initialize and SetModeRegisterDefaults:
// Mode1 awake with auto-increment and all-call off; Mode2 totem-pole outputs
// that change on ACK.
const (
	Mode1Default = 0x00
	Mode2Default = mode2Och | mode2Outdrv
)

const (
	// NumChannels is the number of PWM outputs on one chip.
	NumChannels = 16

	// DefaultAddress is the chip address with all address pins low.
	DefaultAddress = 0x40

	// OscillatorHz is the internal oscillator frequency.
	OscillatorHz = 25_000_000

	// Steps is the counter resolution of one PWM period.
	Steps = 4096

	// fullOn is bit 4 of LEDn_ON_H / LEDn_OFF_H, which forces the output fully
	// on (ON) or fully off (OFF) and overrides the 12-bit counters.
	fullOn = 0x1000

	// PowerOnPrescale is the prescaler value the chip resets to.
	PowerOnPrescale = 0x1E
)

func channelBase(index int) byte {
	return byte(regLED0OnL + regsPerChannel*index)
}
