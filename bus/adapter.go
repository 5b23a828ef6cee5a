package bus

import "errors"

// Speed is a bus timing mode.
type Speed int

const (
	SpeedRegular Speed = iota
	SpeedFlex
	SpeedOverdrive
	SpeedHyperdrive
)

func (s Speed) String() string {
	switch s {
	case SpeedRegular:
		return "regular"
	case SpeedFlex:
		return "flex"
	case SpeedOverdrive:
		return "overdrive"
	case SpeedHyperdrive:
		return "hyperdrive"
	default:
		return "unknown"
	}
}

// Condition tells the adapter when to start a power feature.
type Condition int

const (
	ConditionNow Condition = iota
	ConditionAfterBit
	ConditionAfterByte
)

// PowerDuration selects how long a power feature stays active.
type PowerDuration int

const (
	DeliveryHalfSecond PowerDuration = iota
	DeliveryOneSecond
	DeliveryTwoSeconds
	DeliveryFourSeconds
	DeliverySmartDone
	DeliveryInfinite
	DeliveryCurrentDetect
	DeliveryEPROM
)

// ResetResult is the line state sampled after a reset pulse.
type ResetResult int

const (
	ResetNoPresence ResetResult = iota
	ResetPresence
	ResetAlarm
	ResetShort
)

// ROM level commands.
const (
	MatchROMCommand      byte = 0x55
	SkipROMCommand       byte = 0xCC
	OverdriveSkipCommand byte = 0x3C
)

var (
	// ErrNotPresent indicates that no device answered the reset or select.
	ErrNotPresent = errors.New("bus: device not present")

	// ErrShorted indicates that the line is held low.
	ErrShorted = errors.New("bus: line shorted")

	// ErrUnsupportedSpeed indicates the adapter cannot run the requested speed.
	ErrUnsupportedSpeed = errors.New("bus: unsupported speed")
)

// Adapter is the bus transport collaborator.
//
// DataBlock shifts len(buf) bytes in both directions: each byte of buf is
// written and replaced by the byte sampled from the line. Reading is done by
// writing 0xFF.
//
// Implementations are not required to be goroutine-safe; use a Port to share
// one adapter between goroutines.
type Adapter interface {
	// Select resets the bus and addresses the device with the given ROM.
	// It returns false when no device with that address answers.
	Select(addr Address) (bool, error)
	// Reset issues a reset pulse and samples the presence response.
	Reset() (ResetResult, error)
	// DataBlock shifts buf through the line in place.
	DataBlock(buf []byte) error
	// PutByte writes one byte.
	PutByte(b byte) error
	// GetByte reads one byte.
	GetByte() (byte, error)

	SetSpeed(s Speed) error
	Speed() Speed

	// CanDeliverPower reports whether a strong pull-up is available.
	CanDeliverPower() bool
	// CanProgram reports whether the EPROM programming pulse is available.
	CanProgram() bool

	SetPowerDuration(d PowerDuration) error
	// StartPowerDelivery arms or starts the strong pull-up. It returns false
	// when the adapter cannot honour the request.
	StartPowerDelivery(c Condition) (bool, error)
	// SetPowerNormal returns the line to normal pull-up.
	SetPowerNormal() error

	SetProgramPulseDuration(d PowerDuration) error
	// StartProgramPulse applies the programming pulse.
	StartProgramPulse(c Condition) (bool, error)
}

// AlarmChecker is implemented by adapters that can run a conditional search
// for a single device.
type AlarmChecker interface {
	IsAlarming(addr Address) (bool, error)
}
